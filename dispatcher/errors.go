package dispatcher

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/askmodel/backend"
)

// ErrorKind returns the category of the dispatch failure:
// validation, resource, backend, timeout, canceled or internal.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, backend.ErrResource):
		return "resource"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, backend.ErrBackend):
		return "backend"
	default:
		return "internal"
	}
}
