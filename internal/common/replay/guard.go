// Package replay prevents duplicate processing of money-moving requests.
//
// Request identifiers are derived deterministically from the caller and the
// operation's idempotency key, so a client retry of the same request always
// maps to the same identifier. Entries live in Redis, shared across all
// serving instances.
package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

const (
	// inFlightWindow collapses concurrent duplicate submissions: a second
	// request with the same identifier inside this window is rejected even
	// before the first one finishes.
	inFlightWindow = 5 * time.Second

	// retention keeps processed markers around; older entries expire.
	retention = time.Hour

	keyPrefix = "replay:"

	stateInFlight  = "inflight"
	stateProcessed = "processed"
)

// ErrReplay is returned when a request identifier was already processed or is
// currently in flight.
var ErrReplay = errors.New("request already processed")

// Store is the minimal keyed TTL store the guard needs. The production
// implementation is Redis; tests use an in-memory fake.
type Store interface {
	// SetNX stores value under key with ttl only if key is absent and
	// reports whether the write happened.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Get returns the value for key, or "" when the key is absent/expired.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type Guard struct {
	store Store
}

func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// Key derives the deterministic request identifier for an operation. Two
// retries of the same logical request produce the same key; there is no
// random or wall-clock component.
func Key(scope string, telegramID int64, idempotencyKey string) string {
	sum := sha256.Sum256([]byte(scope + ":" + strconv.FormatInt(telegramID, 10) + ":" + idempotencyKey))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Acquire claims the identifier for processing. It fails with ErrReplay when
// the identifier was already marked processed or another request with the
// same identifier is in flight within the concurrency window.
func (g *Guard) Acquire(ctx context.Context, key string) error {
	ok, err := g.store.SetNX(ctx, key, stateInFlight, inFlightWindow)
	if err != nil {
		return err
	}
	if !ok {
		return ErrReplay
	}
	return nil
}

// MarkProcessed records completion; subsequent Acquire calls fail until the
// retention TTL expires.
func (g *Guard) MarkProcessed(ctx context.Context, key string) error {
	return g.store.Set(ctx, key, stateProcessed, retention)
}

// Release drops an in-flight claim so a failed request can be retried
// immediately. Processed markers are left untouched.
func (g *Guard) Release(ctx context.Context, key string) error {
	state, err := g.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if state != stateInFlight {
		return nil
	}
	return g.store.Del(ctx, key)
}

// IsProcessed reports whether the identifier was marked processed, or was
// seen in flight within the concurrency window.
func (g *Guard) IsProcessed(ctx context.Context, key string) (bool, error) {
	state, err := g.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return state != "", nil
}
