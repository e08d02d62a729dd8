package gateway

// Outcome vocabulary reported in data.status.
const (
	StatusPending           = "PENDING"
	StatusApproved          = "APPROVED"
	StatusDeclined          = "DECLINED"
	StatusVoided            = "VOIDED"
	StatusError             = "ERROR"
	StatusAuthorized        = "AUTHORIZED"
	StatusPendingValidation = "PENDING_VALIDATION"
)

const (
	MethodCard                = "CARD"
	MethodNequi               = "NEQUI"
	MethodPSE                 = "PSE"
	MethodBancolombiaTransfer = "BANCOLOMBIA_TRANSFER"
)

type PaymentMethod struct {
	Type         string `json:"type"`
	Installments int    `json:"installments"`
	Token        string `json:"token"`
}

// TransactionRequest is the body of POST /transactions. Signature is filled
// in by the client; callers leave it empty.
type TransactionRequest struct {
	AcceptanceToken    string         `json:"acceptance_token,omitempty"`
	AcceptPersonalAuth string         `json:"accept_personal_auth,omitempty"`
	AmountInCents      int64          `json:"amount_in_cents"`
	Currency           string         `json:"currency"`
	Reference          string         `json:"reference"`
	Signature          string         `json:"signature"`
	CustomerEmail      string         `json:"customer_email"`
	PaymentMethodType  string         `json:"payment_method_type,omitempty"`
	PaymentMethod      *PaymentMethod `json:"payment_method,omitempty"`
}

type TransactionData struct {
	ID                string  `json:"id"`
	Status            string  `json:"status"`
	Reference         string  `json:"reference"`
	AmountInCents     int64   `json:"amount_in_cents"`
	Currency          string  `json:"currency"`
	PaymentMethodType string  `json:"payment_method_type"`
	StatusMessage     *string `json:"status_message,omitempty"`
	RedirectURL       *string `json:"redirect_url,omitempty"`
}

type TransactionResponse struct {
	Data TransactionData `json:"data"`
}
