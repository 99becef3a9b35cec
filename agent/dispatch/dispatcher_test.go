package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/observe"
	toolx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/tool"
)

type stubTool struct {
	name   string
	result contractx.ToolResult
	err    error
	panicV any
	calls  int
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub " + s.name }

func (s *stubTool) Invoke(ctx context.Context, query string) (contractx.ToolResult, error) {
	s.calls++
	if s.panicV != nil {
		panic(s.panicV)
	}
	return s.result, s.err
}

type captureRecorder struct {
	mu     sync.Mutex
	events []observe.Event
	err    error
}

func (c *captureRecorder) Record(ctx context.Context, ev observe.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.err
}

func newTestDispatcher(t *testing.T, rec observe.Recorder, cfg Config, tools ...contractx.Tool) *Dispatcher {
	t.Helper()
	reg := toolx.MustNewRegistry(toolx.NewVague(""), tools...)
	d, err := New(reg, rec, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

func TestDispatchSuccessUnchanged(t *testing.T) {
	t.Parallel()

	rec := &captureRecorder{}
	support := &stubTool{name: toolx.NameSupport, result: contractx.Success(toolx.NameSupport, "  Visit iforgot.apple.com  ")}
	d := newTestDispatcher(t, rec, Config{}, support)

	got := d.Dispatch(context.Background(), contractx.RoutingDecision{SelectedTool: toolx.NameSupport}, "reset apple id")
	if got != "  Visit iforgot.apple.com  " {
		t.Fatalf("unexpected reply: %q", got)
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected one event, got %d", len(rec.events))
	}
	ev := rec.events[0]
	if ev.Tool != toolx.NameSupport || ev.Outcome != observe.OutcomeSuccess || ev.Query != "reset apple id" {
		t.Fatalf("unexpected event: %#v", ev)
	}
}

func TestDispatchFailureUsesTemplate(t *testing.T) {
	t.Parallel()

	product := &stubTool{name: toolx.NameProduct, result: contractx.Failure(toolx.NameProduct, "search service unavailable")}
	d := newTestDispatcher(t, nil, Config{FailureTemplate: "Sorry, {tool} lookup failed ({reason})."}, product)

	got := d.Dispatch(context.Background(), contractx.RoutingDecision{SelectedTool: toolx.NameProduct}, "macbook price")
	if got != "Sorry, product lookup failed (search service unavailable)." {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestDispatchDefaultTemplate(t *testing.T) {
	t.Parallel()

	support := &stubTool{name: toolx.NameSupport, result: contractx.Failure(toolx.NameSupport, "search service unavailable")}
	d := newTestDispatcher(t, nil, Config{}, support)

	got := d.Dispatch(context.Background(), contractx.RoutingDecision{SelectedTool: toolx.NameSupport}, "q")
	if got != "Error searching for support info: search service unavailable" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestDispatchToolErrorDoesNotLeak(t *testing.T) {
	t.Parallel()

	rec := &captureRecorder{}
	support := &stubTool{name: toolx.NameSupport, err: errors.New("pq: password authentication failed for user admin")}
	d := newTestDispatcher(t, rec, Config{}, support)

	got := d.Dispatch(context.Background(), contractx.RoutingDecision{SelectedTool: toolx.NameSupport}, "q")
	if got == "" {
		t.Fatal("reply must not be empty")
	}
	if strings.Contains(got, "password authentication") {
		t.Fatalf("reply leaks internal error: %q", got)
	}
	if rec.events[0].Outcome != observe.OutcomeFailure {
		t.Fatalf("unexpected outcome: %s", rec.events[0].Outcome)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	t.Parallel()

	rec := &captureRecorder{}
	support := &stubTool{name: toolx.NameSupport, panicV: "nil map write"}
	d := newTestDispatcher(t, rec, Config{}, support)

	got := d.Dispatch(context.Background(), contractx.RoutingDecision{SelectedTool: toolx.NameSupport}, "q")
	if strings.TrimSpace(got) == "" {
		t.Fatal("reply must not be empty")
	}
	if rec.events[0].Outcome != observe.OutcomePanic {
		t.Fatalf("unexpected outcome: %s", rec.events[0].Outcome)
	}
}

func TestDispatchUnknownToolFallsBack(t *testing.T) {
	t.Parallel()

	rec := &captureRecorder{}
	d := newTestDispatcher(t, rec, Config{})

	got := d.Dispatch(context.Background(), contractx.RoutingDecision{SelectedTool: "weather"}, "will it rain?")
	if got != toolx.DefaultDeclineMessage {
		t.Fatalf("unexpected reply: %q", got)
	}
	ev := rec.events[0]
	if ev.Tool != toolx.NameVague || ev.Requested != "weather" || ev.Outcome != observe.OutcomeUnknown {
		t.Fatalf("unexpected event: %#v", ev)
	}
}

func TestDispatchEmptySuccessGetsApology(t *testing.T) {
	t.Parallel()

	support := &stubTool{name: toolx.NameSupport, result: contractx.Success(toolx.NameSupport, "   ")}
	d := newTestDispatcher(t, nil, Config{}, support)

	got := d.Dispatch(context.Background(), contractx.RoutingDecision{SelectedTool: toolx.NameSupport}, "q")
	if got != DefaultApology {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestDispatchRecorderErrorIgnored(t *testing.T) {
	t.Parallel()

	rec := &captureRecorder{err: errors.New("sink down")}
	support := &stubTool{name: toolx.NameSupport, result: contractx.Success(toolx.NameSupport, "ok")}
	d := newTestDispatcher(t, rec, Config{}, support)

	if got := d.Dispatch(context.Background(), contractx.RoutingDecision{SelectedTool: toolx.NameSupport}, "q"); got != "ok" {
		t.Fatalf("recorder failure changed reply: %q", got)
	}
}

func TestDispatchCarriesSessionID(t *testing.T) {
	t.Parallel()

	rec := &captureRecorder{}
	d := newTestDispatcher(t, rec, Config{})
	ctx := observe.WithSessionID(context.Background(), "session-1")

	d.Dispatch(ctx, contractx.RoutingDecision{SelectedTool: toolx.NameVague}, "q")
	if rec.events[0].SessionID != "session-1" {
		t.Fatalf("session id = %q", rec.events[0].SessionID)
	}
}

func TestDispatchNeverEmpty(t *testing.T) {
	t.Parallel()

	tools := []contractx.Tool{
		&stubTool{name: "ok", result: contractx.Success("ok", "fine")},
		&stubTool{name: "fail", result: contractx.ToolResult{Error: "x"}},
		&stubTool{name: "err", err: context.Canceled},
		&stubTool{name: "panic", panicV: errors.New("boom")},
		&stubTool{name: "blank", result: contractx.ToolResult{}},
	}
	d := newTestDispatcher(t, nil, Config{}, tools...)

	for _, name := range []string{"ok", "fail", "err", "panic", "blank", "missing", ""} {
		got := d.Dispatch(context.Background(), contractx.RoutingDecision{SelectedTool: name}, "q")
		if strings.TrimSpace(got) == "" {
			t.Fatalf("Dispatch(%q) returned empty reply", name)
		}
	}
}

func TestRenderFailure(t *testing.T) {
	t.Parallel()

	if got := RenderFailure("{tool}: {reason}", "support", "timeout"); got != "support: timeout" {
		t.Fatalf("unexpected render: %q", got)
	}
	if got := RenderFailure("  ", "support", "timeout"); got != DefaultApology {
		t.Fatalf("blank template should fall back to apology, got %q", got)
	}
}
