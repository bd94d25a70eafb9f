package state

import "errors"

var (
	// ErrNotFound is returned when a coordinate holds no painted cell.
	ErrNotFound = errors.New("pixel not found")

	// ErrStorageUnavailable wraps any failure of the backing grid store.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrChannel marks a failed delivery to a single realtime session.
	ErrChannel = errors.New("channel error")
)

// ValidationError is a client-caused rejection. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
