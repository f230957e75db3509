package errors

import "context"

// Tracker receives errors worth a human's attention: 5xx responses,
// panics, failed training runs and audit batches that could not be written.
// Implementations must be safe for concurrent use.
type Tracker interface {
	CaptureError(ctx context.Context, err error, tags map[string]string) error
	// Flush blocks until queued events are sent or ctx is done
	Flush(ctx context.Context) error
}
