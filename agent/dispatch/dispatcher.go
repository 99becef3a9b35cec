package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/observe"
)

const (
	DefaultFailureTemplate = "Error searching for {tool} info: {reason}"
	DefaultApology         = "Sorry, something went wrong while answering your question. Please try again."

	reasonInternal = "an internal error occurred"
	reasonCanceled = "the request was canceled"
)

// Catalog is the part of the tool registry the dispatcher needs.
type Catalog interface {
	Get(name string) (contractx.Tool, error)
	Fallback() contractx.Tool
}

type Config struct {
	// FailureTemplate renders failed tool results. {tool} and {reason} are replaced.
	FailureTemplate string `split_words:"true" default:"Error searching for {tool} info: {reason}"`
	Apology         string `split_words:"true" default:"Sorry, something went wrong while answering your question. Please try again."`
}

type Dispatcher struct {
	catalog         Catalog
	recorder        observe.Recorder
	failureTemplate string
	apology         string
	now             func() time.Time
}

func New(catalog Catalog, recorder observe.Recorder, cfg Config) (*Dispatcher, error) {
	if catalog == nil {
		return nil, errors.New("tool catalog is required")
	}
	if catalog.Fallback() == nil {
		return nil, fmt.Errorf("%w: catalog has no fallback tool", contractx.ErrValidation)
	}
	if recorder == nil {
		recorder = observe.Nop{}
	}

	tmpl := strings.TrimSpace(cfg.FailureTemplate)
	if tmpl == "" {
		tmpl = DefaultFailureTemplate
	}
	apology := strings.TrimSpace(cfg.Apology)
	if apology == "" {
		apology = DefaultApology
	}

	return &Dispatcher{
		catalog:         catalog,
		recorder:        recorder,
		failureTemplate: tmpl,
		apology:         apology,
		now:             time.Now,
	}, nil
}

// Dispatch runs the selected tool and returns the text to show the user. It
// never returns an empty string and never panics because of a tool.
func (d *Dispatcher) Dispatch(ctx context.Context, decision contractx.RoutingDecision, query string) string {
	start := d.now()
	ev := observe.NewEvent(decision.SelectedTool, query)
	ev.SessionID = observe.SessionID(ctx)

	t, err := d.catalog.Get(decision.SelectedTool)
	if err != nil {
		log.Warn().Err(err).
			Str("requested_tool", decision.SelectedTool).
			Str("rationale", decision.Rationale).
			Msg("classifier selected an unknown tool, using fallback")
		t = d.catalog.Fallback()
		ev.Requested = decision.SelectedTool
		ev.Tool = t.Name()
	}

	result, outcome := d.invoke(ctx, t, query)
	reply := d.render(result)

	if ev.Requested != "" && outcome == observe.OutcomeSuccess {
		outcome = observe.OutcomeUnknown
	}
	ev.Outcome = outcome
	ev.Reason = result.Error
	ev.Latency = d.now().Sub(start)
	d.emit(ctx, ev)

	return reply
}

func (d *Dispatcher) invoke(ctx context.Context, t contractx.Tool, query string) (result contractx.ToolResult, outcome observe.Outcome) {
	name := t.Name()
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("tool", name).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("tool panicked")
			result = contractx.Failure(name, reasonInternal)
			outcome = observe.OutcomePanic
		}
	}()

	res, err := t.Invoke(ctx, query)
	if err != nil {
		log.Error().Err(err).Str("tool", name).Msg("tool returned an error")
		reason := reasonInternal
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reason = reasonCanceled
		}
		return contractx.Failure(name, reason), observe.OutcomeFailure
	}
	if res.Tool == "" {
		res.Tool = name
	}
	if !res.OK() {
		return res, observe.OutcomeFailure
	}
	return res, observe.OutcomeSuccess
}

func (d *Dispatcher) render(result contractx.ToolResult) string {
	if result.OK() {
		if strings.TrimSpace(result.Result) == "" {
			return d.apology
		}
		return result.Result
	}
	return RenderFailure(d.failureTemplate, result.Tool, result.Error)
}

// emit hands the event to the recorder without letting it fail or stall the reply.
func (d *Dispatcher) emit(ctx context.Context, ev observe.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("dispatch event recorder panicked")
		}
	}()
	if err := d.recorder.Record(context.WithoutCancel(ctx), ev); err != nil {
		log.Warn().Err(err).Str("event_id", ev.ID).Msg("record dispatch event")
	}
}

func RenderFailure(template, tool, reason string) string {
	out := strings.NewReplacer("{tool}", tool, "{reason}", reason).Replace(template)
	if strings.TrimSpace(out) == "" {
		return DefaultApology
	}
	return out
}
