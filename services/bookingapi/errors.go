package bookingapi

import "fmt"

// APIError is a structured rejection from the booking backend ({success:false, message}).
// Message is passed through verbatim so the user sees exactly what the backend said.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s rejected (%d): %s", e.Op, e.Status, e.Message)
}

// UnexpectedStatusError is returned when the backend answers with something that is not the
// documented envelope.
type UnexpectedStatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s %s -> %d body=%q", e.Method, e.Path, e.Code, e.Body)
}
