package models

// Status values reported to clients by the verify endpoint.
const (
	StatusVerified         = "verified"
	StatusAlreadyProcessed = "already_processed"
	StatusFailed           = "failed"
	StatusPending          = "pending"
)

type CheckoutRequest struct {
	InitData    string  `json:"init_data"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

type CheckoutResponse struct {
	CheckoutURL string  `json:"checkout_url"`
	ReferenceID string  `json:"reference_id"`
	Amount      float64 `json:"amount"`
}

// CallbackRequest is the processor-initiated webhook payload.
type CallbackRequest struct {
	ReferenceID   string  `json:"reference_id"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	TransactionID string  `json:"transaction_id"`
}

type CallbackResponse struct {
	Message string `json:"message"`
}

type VerifyRequest struct {
	InitData    string `json:"init_data"`
	ReferenceID string `json:"reference_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type VerifyResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Balance float64  `json:"balance"`
	Amount  *float64 `json:"amount,omitempty"`
}
