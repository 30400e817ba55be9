package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type BalanceResponse struct {
	OrganizationID string  `json:"organization_id"`
	Centicredits   int64   `json:"centicredits"`
	Credits        float64 `json:"credits"`
}

// RotateSecretResponse is the only place the plaintext secret is ever
// returned.
type RotateSecretResponse struct {
	SecretID string `json:"secret_id"`
	Secret   string `json:"secret"`
}
