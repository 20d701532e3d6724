package interfaces

import "context"

// EventType identifies a job lifecycle event.
type EventType string

const (
	// EventTypeAll subscribes a handler to every event type.
	EventTypeAll EventType = "*"

	EventJobStarted   EventType = "job.started"
	EventJobProgress  EventType = "job.progress"
	EventJobCompleted EventType = "job.completed"
	EventJobCancelled EventType = "job.cancelled"
	EventJobError     EventType = "job.error"
)

// Event is one job lifecycle notification.
type Event struct {
	Type    EventType   `json:"type"`
	JobID   string      `json:"jobId"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event) error

// EventService is the in-process pub/sub bus connecting the job scheduler
// to the progress stream.
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler) error
	Publish(ctx context.Context, event Event) error
}
