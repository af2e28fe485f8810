package notifications

import (
	"errors"
	"fmt"
)

// Pipeline stages.
const (
	StageRelay     = "relay"
	StageConsume   = "consume"
	StageTransport = "transport"
)

// ErrNotificationNotFound is returned by a Store when the row does not exist.
var ErrNotificationNotFound = errors.New("notifications: notification not found")

// PipelineError describes an asynchronous delivery failure. Nothing retries
// it; Retryable records whether a later attempt could succeed.
type PipelineError struct {
	Stage          string
	NotificationID uint64
	Retryable      bool
	Err            error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("notifications: %s notification %d: %v", e.Stage, e.NotificationID, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err carries a retryable PipelineError.
func IsRetryable(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Retryable
}
