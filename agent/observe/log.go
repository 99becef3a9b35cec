package observe

import (
	"context"

	"github.com/rs/zerolog"
)

type LogRecorder struct {
	logger zerolog.Logger
}

func NewLogRecorder(logger zerolog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(_ context.Context, ev Event) error {
	e := r.logger.Info()
	if ev.Outcome != OutcomeSuccess {
		e = r.logger.Warn()
	}
	e.Str("event_id", ev.ID).
		Str("session_id", ev.SessionID).
		Str("tool", ev.Tool).
		Str("requested_tool", ev.Requested).
		Str("query", ev.Query).
		Str("outcome", string(ev.Outcome)).
		Str("reason", ev.Reason).
		Dur("latency", ev.Latency).
		Msg("tool dispatched")
	return nil
}
