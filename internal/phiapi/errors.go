package phiapi

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidArgument is returned before any I/O when a required identifier is empty.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgument(field string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidArgument, field)
}

// BackendError normalizes every failed round trip. Status is 0 when the
// request never produced an HTTP response.
type BackendError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("phi backend %s failed: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("phi backend %s failed: API Error %d: %s", e.Op, e.Status, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a BackendError carrying a 404.
func IsNotFound(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Status == http.StatusNotFound
}
