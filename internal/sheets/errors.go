package sheets

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmpty is returned when the inventory queue has no rows left.
var ErrEmpty = errors.New("inventory queue is empty")

// ErrUnavailable is returned when the remote store answers with a
// non-retryable failure.
var ErrUnavailable = errors.New("remote store unavailable")

// QuotaError is returned when the remote store reports the write quota is
// exhausted. RetryAfter is the server-suggested wait, zero when the server
// did not send one.
type QuotaError struct {
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("write quota exhausted, retry after %s", e.RetryAfter)
	}
	return "write quota exhausted"
}

// IsQuota reports whether err is a quota exhaustion signal.
func IsQuota(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}
