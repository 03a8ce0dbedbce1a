package errors

// ErrorResponse is the JSON envelope for errors returned over HTTP.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the structured error fields.
type ErrorBody struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider,omitempty"`
	Retryable bool      `json:"retryable"`
}

// ToResponse converts the error to its HTTP response envelope. The cause is
// deliberately omitted so backend stack traces never reach callers.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:      e.Code,
			Message:   e.Message,
			Provider:  e.Provider,
			Retryable: e.Retryable,
		},
	}
}
