package audit

import (
	"fmt"
	"time"
)

// Result represents the outcome of an audited action
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultError   Result = "error"
)

// Event represents a single audit log entry
type Event struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource,omitempty"`
	ResourceID string         `json:"resource_id,omitempty"`
	Result     Result         `json:"result"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Validate checks if the event has all required fields
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	return nil
}

// Criteria filters events on read. Zero values match everything.
type Criteria struct {
	ActorID    string
	Action     string
	Resource   string
	ResourceID string
	Limit      int
	Offset     int
}

func (c Criteria) matches(e Event) bool {
	return (c.ActorID == "" || c.ActorID == e.ActorID) &&
		(c.Action == "" || c.Action == e.Action) &&
		(c.Resource == "" || c.Resource == e.Resource) &&
		(c.ResourceID == "" || c.ResourceID == e.ResourceID)
}

// EventOption applies configuration to an Event during creation.
type EventOption func(*Event)

func WithResource(resource, id string) EventOption {
	return func(e *Event) {
		e.Resource = resource
		e.ResourceID = id
	}
}

func WithMetadata(key string, value any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

// WithChange stores before and after snapshots. Either may be nil for
// creations and deletions.
func WithChange(before, after any) EventOption {
	return func(e *Event) {
		if before != nil {
			WithMetadata("before", before)(e)
		}
		if after != nil {
			WithMetadata("after", after)(e)
		}
	}
}

func WithResult(result Result) EventOption {
	return func(e *Event) { e.Result = result }
}

// WithActor overrides the actor taken from context.
func WithActor(id string) EventOption {
	return func(e *Event) { e.ActorID = id }
}
