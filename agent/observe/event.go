package observe

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeUnknown Outcome = "unknown_tool"
	OutcomePanic   Outcome = "panic"
)

// Event describes one dispatch.
type Event struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id,omitempty"`
	Tool      string        `json:"tool"`
	Requested string        `json:"requested_tool,omitempty"`
	Query     string        `json:"query"`
	Outcome   Outcome       `json:"outcome"`
	Reason    string        `json:"reason,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	At        time.Time     `json:"at"`
}

func NewEvent(tool, query string) Event {
	return Event{
		ID:    uuid.NewString(),
		Tool:  tool,
		Query: query,
		At:    time.Now().UTC(),
	}
}

// Recorder receives dispatch events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

type RecorderFunc func(ctx context.Context, ev Event) error

func (f RecorderFunc) Record(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

type multi []Recorder

// Multi fans an event out to every recorder and joins their errors.
func Multi(recorders ...Recorder) Recorder {
	out := make(multi, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multi) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type sessionKey struct{}

// WithSessionID tags ctx so dispatch events carry the session id.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func SessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionKey{}).(string)
	return v
}
