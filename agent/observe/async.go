package observe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultAsyncBuffer  = 256
	defaultAsyncTimeout = 5 * time.Second
)

// Async decouples event delivery from the caller. Record never blocks: when
// the buffer is full the event is dropped and counted.
type Async struct {
	inner   Recorder
	timeout time.Duration
	events  chan Event

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	done    chan struct{}
}

func NewAsync(inner Recorder, buffer int, timeout time.Duration) *Async {
	if buffer <= 0 {
		buffer = defaultAsyncBuffer
	}
	if timeout <= 0 {
		timeout = defaultAsyncTimeout
	}
	a := &Async{
		inner:   inner,
		timeout: timeout,
		events:  make(chan Event, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Record(_ context.Context, ev Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil
	}
	select {
	case a.events <- ev:
	default:
		a.dropped.Add(1)
	}
	return nil
}

// Dropped returns how many events were discarded because the buffer was full.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits for buffered ones to be delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	close(a.events)
	a.mu.Unlock()
	<-a.done
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.events {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.inner.Record(ctx, ev); err != nil {
			log.Warn().Err(err).Str("event_id", ev.ID).Msg("record dispatch event")
		}
		cancel()
	}
}
