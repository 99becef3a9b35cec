package assistant

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
	nodex "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/nodes"
	sessionx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/session"
)

var ErrNilSession = nodex.ErrNilSession

const DefaultHistoryWindow = 10

// Tools is the registry surface the pipeline reads from.
type Tools interface {
	List() []contractx.Tool
	Get(name string) (contractx.Tool, error)
	FallbackName() string
}

type Config struct {
	// HistoryWindow is how many prior messages the classifier sees. Zero uses
	// DefaultHistoryWindow, a negative value disables history.
	HistoryWindow int
}

// Answer is the outcome of one turn.
type Answer struct {
	Reply    string
	Decision contractx.RoutingDecision
	Tool     string
}

// Assistant answers one customer query per call: classify, dispatch, record.
type Assistant struct {
	classifier contractx.Classifier
	dispatcher nodex.Dispatcher
	tools      Tools

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	historyWindow int
	now           func() time.Time
}

func New(
	classifier contractx.Classifier,
	dispatcher nodex.Dispatcher,
	tools Tools,
	cfg Config,
) (*Assistant, error) {
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if tools == nil {
		return nil, errors.New("tool registry is required")
	}

	window := cfg.HistoryWindow
	switch {
	case window == 0:
		window = DefaultHistoryWindow
	case window < 0:
		window = -1
	}

	a := &Assistant{
		classifier:    classifier,
		dispatcher:    dispatcher,
		tools:         tools,
		historyWindow: window,
		now:           time.Now,
	}

	graphRunner, err := a.compileAnswerGraph(context.Background())
	if err != nil {
		return nil, err
	}
	a.graphRunner = graphRunner

	return a, nil
}

// Ask runs one turn against sess. On success the user and assistant messages
// are both appended to sess; on error sess is left as it was.
func (a *Assistant) Ask(ctx context.Context, sess *sessionx.Session, query string) (Answer, error) {
	if sess == nil {
		return Answer{}, ErrNilSession
	}
	out, err := a.graphRunner.Invoke(ctx, nodex.GraphInput{Session: sess, Query: query})
	if err != nil {
		return Answer{}, err
	}
	return Answer{Reply: out.Reply, Decision: out.Decision, Tool: out.Tool}, nil
}

// HandleQuery is the stateless form used when the caller keeps no session.
func (a *Assistant) HandleQuery(ctx context.Context, query string) (string, error) {
	ans, err := a.Ask(ctx, sessionx.New(""), query)
	if err != nil {
		return "", err
	}
	return ans.Reply, nil
}
