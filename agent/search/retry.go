package search

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
	tavilyx "github.com/tanpawarit/Chative-Apple-Support-Agent/pkg/tavily"
)

type RetryConfig struct {
	// Attempts includes the first call; 2 means one retry.
	Attempts int
	// Timeout bounds each attempt.
	Timeout time.Duration
	Backoff time.Duration
	// IsRetryable decides whether a failed attempt is tried again.
	IsRetryable func(error) bool
}

type retrying struct {
	inner contractx.Searcher
	cfg   RetryConfig
}

// WithRetry bounds every oracle call by a timeout and retries failed calls.
// Search is idempotent, so retrying is safe. Caller cancellation is never retried.
func WithRetry(inner contractx.Searcher, cfg RetryConfig) contractx.Searcher {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = DefaultIsRetryable
	}
	return &retrying{inner: inner, cfg: cfg}
}

func (r *retrying) Search(ctx context.Context, query string) ([]contractx.SearchHit, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hits, err := r.once(ctx, query)
		if err == nil {
			return hits, nil
		}
		lastErr = err

		// the caller gave up; the attempt timeout does not count
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == r.cfg.Attempts || !r.cfg.IsRetryable(err) {
			break
		}

		log.Debug().Err(err).Int("attempt", attempt).Msg("search attempt failed, retrying")
		if r.cfg.Backoff > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.cfg.Backoff):
			}
		}
	}
	return nil, fmt.Errorf("search failed after retries: %w", lastErr)
}

func (r *retrying) once(ctx context.Context, query string) ([]contractx.SearchHit, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	return r.inner.Search(attemptCtx, query)
}

type temporary interface {
	Temporary() bool
}

// DefaultIsRetryable retries transport failures, attempt timeouts and
// 429/5xx responses. Caller cancellation and other HTTP statuses are final.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *tavilyx.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	// url.Error and net.Error cover refused connections, resets and DNS
	// failures, whose own Temporary() is usually false.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var t temporary
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return true
}
