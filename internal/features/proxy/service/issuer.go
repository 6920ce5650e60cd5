package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"proxy-store-backend/internal/features/proxy/models"
)

// staticIssuer generates opaque credentials locally. A real deployment
// replaces this with a client for the upstream proxy provider.
type staticIssuer struct {
	gateway string
}

// NewStaticIssuer returns an issuer handing out credentials against the given
// gateway address (host:port).
func NewStaticIssuer(gateway string) CredentialIssuer {
	if gateway == "" {
		gateway = "gate.proxy-store.local:1080"
	}
	return &staticIssuer{gateway: gateway}
}

func (i *staticIssuer) Issue(userID int64, product *models.Product, gbAmount int64, quantity int) (string, error) {
	login := fmt.Sprintf("u%d-%s", userID, shortID())
	password := shortID() + shortID()
	return fmt.Sprintf("%s:%s@%s", login, password, i.gateway), nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func newPurchaseReference() string {
	return "pur_" + uuid.NewString()
}
