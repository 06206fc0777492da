package queue

import "context"

// Job handles one message type. Handle receives the raw JSON payload; use
// ParsePayload to decode it. A non-nil error other than context.Canceled
// schedules a retry.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload interface{}) error
}
