package observe

import (
	"context"
	"fmt"

	qstashx "github.com/tanpawarit/Chative-Apple-Support-Agent/pkg/qstash"
)

type publisher interface {
	PublishJSON(ctx context.Context, payload any) (qstashx.PublishResponse, error)
}

// QStashRecorder forwards events to a QStash destination.
type QStashRecorder struct {
	client publisher
}

func NewQStashRecorder(client *qstashx.Client) *QStashRecorder {
	return &QStashRecorder{client: client}
}

func (r *QStashRecorder) Record(ctx context.Context, ev Event) error {
	if _, err := r.client.PublishJSON(ctx, ev); err != nil {
		return fmt.Errorf("publish event=%s: %w", ev.ID, err)
	}
	return nil
}
