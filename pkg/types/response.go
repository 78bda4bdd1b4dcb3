package types

// SuccessEnvelope wraps every successful response body returned to the till.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the error body. Retryable tells the till it may resend the
// same request, with the same Idempotency-Key for checkouts.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
