package dto

// Envelope wraps every response body.
type Envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *EnvelopeError `json:"error,omitempty"`
}

// EnvelopeError describes a failed request.
type EnvelopeError struct {
	Status  int            `json:"status"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// OK wraps data in a successful envelope.
func OK(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// Fail builds a failed envelope.
func Fail(status int, code, message string, detail map[string]any) Envelope {
	return Envelope{Error: &EnvelopeError{Status: status, Code: code, Message: message, Detail: detail}}
}
