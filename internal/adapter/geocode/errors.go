package geocode

import "fmt"

// ErrorCode is the typed failure taxonomy for reverse geocoding.
type ErrorCode string

const (
	// CodeInvalidCoordinates rejects out-of-range input before any network call.
	CodeInvalidCoordinates ErrorCode = "INVALID_COORDINATES"
	// CodeRateLimited maps an HTTP 429 from the provider.
	CodeRateLimited ErrorCode = "RATE_LIMITED"
	// CodeAPIError maps any other non-2xx provider response.
	CodeAPIError ErrorCode = "API_ERROR"
	// CodeNetworkError covers transport failures before a status was received.
	CodeNetworkError ErrorCode = "NETWORK_ERROR"
)

// Error is a typed geocoding failure. Status carries the HTTP status for
// provider errors and is zero otherwise.
type Error struct {
	Code    ErrorCode
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("geocode: %s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("geocode: %s: %s", e.Code, e.Message)
}

// AsError extracts a typed *Error, or wraps an arbitrary failure as a
// network error so callers always see the taxonomy.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if typed, ok := err.(*Error); ok {
		return typed
	}
	return &Error{Code: CodeNetworkError, Message: err.Error()}
}
