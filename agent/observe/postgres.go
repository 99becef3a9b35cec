package observe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true"`
	DialTimeout  time.Duration `split_words:"true" default:"5s"`
	WriteTimeout time.Duration `split_words:"true" default:"5s"`
}

func (c PostgresConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

type dispatchEventRow struct {
	bun.BaseModel `bun:"table:dispatch_events,alias:de"`

	ID            string    `bun:"id,pk"`
	SessionID     string    `bun:"session_id"`
	Tool          string    `bun:"tool,notnull"`
	RequestedTool string    `bun:"requested_tool"`
	Query         string    `bun:"query,notnull"`
	Outcome       string    `bun:"outcome,notnull"`
	Reason        string    `bun:"reason"`
	LatencyMS     int64     `bun:"latency_ms"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

func toRow(ev Event) *dispatchEventRow {
	return &dispatchEventRow{
		ID:            ev.ID,
		SessionID:     ev.SessionID,
		Tool:          ev.Tool,
		RequestedTool: ev.Requested,
		Query:         ev.Query,
		Outcome:       string(ev.Outcome),
		Reason:        ev.Reason,
		LatencyMS:     ev.Latency.Milliseconds(),
		CreatedAt:     ev.At.UTC(),
	}
}

// PostgresRecorder appends events to the dispatch_events table.
type PostgresRecorder struct {
	db *bun.DB
}

func NewPostgresRecorder(cfg PostgresConfig) (*PostgresRecorder, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if cfg.DialTimeout > 0 {
		opts = append(opts, pgdriver.WithDialTimeout(cfg.DialTimeout))
	}
	if cfg.WriteTimeout > 0 {
		opts = append(opts, pgdriver.WithWriteTimeout(cfg.WriteTimeout))
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
	return &PostgresRecorder{db: bun.NewDB(sqldb, pgdialect.New())}, nil
}

// EnsureSchema creates the events table when it does not exist.
func (r *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*dispatchEventRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create dispatch_events table: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) Record(ctx context.Context, ev Event) error {
	if _, err := r.db.NewInsert().Model(toRow(ev)).Exec(ctx); err != nil {
		return fmt.Errorf("insert dispatch event=%s: %w", ev.ID, err)
	}
	return nil
}

func (r *PostgresRecorder) Close() error {
	return r.db.Close()
}
