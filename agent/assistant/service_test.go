package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/classifier"
	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/dispatch"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/knowledge"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/observe"
	sessionx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/session"
	toolx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/tool"
)

type fakeSearcher struct {
	mu      sync.Mutex
	hits    []contractx.SearchHit
	err     error
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]contractx.SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type fakeClassifier struct {
	decision contractx.RoutingDecision
	err      error
	calls    int
	history  []contractx.Message
}

func (f *fakeClassifier) Classify(ctx context.Context, query string, catalog []contractx.Tool, history []contractx.Message) (contractx.RoutingDecision, error) {
	f.calls++
	f.history = append([]contractx.Message(nil), history...)
	if f.err != nil {
		return contractx.RoutingDecision{}, f.err
	}
	return f.decision, nil
}

type captureRecorder struct {
	mu     sync.Mutex
	events []observe.Event
}

func (c *captureRecorder) Record(ctx context.Context, ev observe.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

type fixture struct {
	assistant *Assistant
	kb        knowledge.Base
	support   *fakeSearcher
	product   *fakeSearcher
	recorder  *captureRecorder
}

func newRuleFixture(t *testing.T) fixture {
	t.Helper()

	kb, err := knowledge.Default()
	if err != nil {
		t.Fatalf("knowledge.Default() error = %v", err)
	}

	support := &fakeSearcher{hits: []contractx.SearchHit{{
		Title:   "If you forgot your Apple ID password",
		Snippet: "Reset your password at iforgot.apple.com.",
		URL:     "https://support.apple.com/102656",
	}}}
	product := &fakeSearcher{hits: []contractx.SearchHit{{
		Title:   "MacBook Air - Apple",
		Snippet: "MacBook Air starts at $999.",
		URL:     "https://www.apple.com/macbook-air/",
	}}}

	// Drop the static product table so product questions reach the oracle.
	kb.Product.Entries = nil
	reg, err := toolx.BuildRegistry(kb, toolx.Searchers{Support: support, Product: product})
	if err != nil {
		t.Fatalf("BuildRegistry() error = %v", err)
	}

	rules := classifier.NewRuleClassifier(
		classifier.Routes{Support: toolx.NameSupport, Product: toolx.NameProduct, Fallback: toolx.NameVague},
		classifier.Markers{Competitors: kb.Markers.Competitors, Support: kb.Markers.Support, Product: kb.Markers.Product},
	)

	rec := &captureRecorder{}
	d, err := dispatch.New(reg, rec, dispatch.Config{})
	if err != nil {
		t.Fatalf("dispatch.New() error = %v", err)
	}

	a, err := New(rules, d, reg, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return fixture{assistant: a, kb: kb, support: support, product: product, recorder: rec}
}

func TestAskSupportQuestionUsesSupportOracle(t *testing.T) {
	t.Parallel()

	f := newRuleFixture(t)
	sess := sessionx.New("s-1")

	ans, err := f.assistant.Ask(context.Background(), sess, "How do I reset my Apple ID password?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if ans.Tool != toolx.NameSupport {
		t.Fatalf("Tool = %q, want support", ans.Tool)
	}
	if !strings.Contains(ans.Reply, "iforgot.apple.com") {
		t.Fatalf("Reply = %q, want support hit", ans.Reply)
	}
	if len(f.support.queries) != 1 || !strings.HasPrefix(f.support.queries[0], "Apple support") {
		t.Fatalf("support queries = %v", f.support.queries)
	}
	if len(f.product.queries) != 0 {
		t.Fatalf("product oracle called: %v", f.product.queries)
	}

	msgs := sess.Messages()
	if len(msgs) != 2 {
		t.Fatalf("session len = %d, want 2", len(msgs))
	}
	if msgs[0].Role != contractx.RoleUser || msgs[1].Role != contractx.RoleAssistant {
		t.Fatalf("unexpected roles: %v %v", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].ToolName != toolx.NameSupport || msgs[1].Content != ans.Reply {
		t.Fatalf("assistant message = %#v", msgs[1])
	}
}

func TestAskProductQuestionUsesProductTool(t *testing.T) {
	t.Parallel()

	f := newRuleFixture(t)
	ans, err := f.assistant.Ask(context.Background(), sessionx.New("s-2"), "What's the price of the new MacBook?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if ans.Tool != toolx.NameProduct {
		t.Fatalf("Tool = %q, want product", ans.Tool)
	}
	if strings.TrimSpace(ans.Reply) == "" || !strings.Contains(ans.Reply, "$999") {
		t.Fatalf("Reply = %q", ans.Reply)
	}
}

func TestAskCompetitorQuestionDeclines(t *testing.T) {
	t.Parallel()

	f := newRuleFixture(t)
	ans, err := f.assistant.Ask(context.Background(), sessionx.New("s-3"), "Is the Samsung Galaxy better than iPhone?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if ans.Reply != f.kb.DeclineMessage {
		t.Fatalf("Reply = %q, want decline message", ans.Reply)
	}
	if ans.Tool != toolx.NameVague {
		t.Fatalf("Tool = %q, want vague", ans.Tool)
	}
	if len(f.support.queries)+len(f.product.queries) != 0 {
		t.Fatal("search oracle must not be called for competitor questions")
	}
}

func TestAskEmptyQueryRoutesToFallbackWithoutClassifier(t *testing.T) {
	t.Parallel()

	kb, err := knowledge.Default()
	if err != nil {
		t.Fatalf("knowledge.Default() error = %v", err)
	}
	reg, err := toolx.BuildRegistry(kb, toolx.Searchers{})
	if err != nil {
		t.Fatalf("BuildRegistry() error = %v", err)
	}
	d, err := dispatch.New(reg, nil, dispatch.Config{})
	if err != nil {
		t.Fatalf("dispatch.New() error = %v", err)
	}
	fc := &fakeClassifier{err: errors.New("must not be called")}
	a, err := New(fc, d, reg, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ans, err := a.Ask(context.Background(), sessionx.New("s-4"), "   ")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if fc.calls != 0 {
		t.Fatalf("classifier calls = %d, want 0", fc.calls)
	}
	if ans.Reply != kb.DeclineMessage || ans.Decision.Rationale != "empty query" {
		t.Fatalf("unexpected answer: %#v", ans)
	}
}

func TestAskPropagatesClassifierError(t *testing.T) {
	t.Parallel()

	kb, err := knowledge.Default()
	if err != nil {
		t.Fatalf("knowledge.Default() error = %v", err)
	}
	reg, err := toolx.BuildRegistry(kb, toolx.Searchers{})
	if err != nil {
		t.Fatalf("BuildRegistry() error = %v", err)
	}
	d, err := dispatch.New(reg, nil, dispatch.Config{})
	if err != nil {
		t.Fatalf("dispatch.New() error = %v", err)
	}
	fc := &fakeClassifier{err: contractx.ErrModelInvoke}
	a, err := New(fc, d, reg, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = a.Ask(context.Background(), sessionx.New("s-5"), "what is an iphone")
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("Ask() error = %v, want ErrModelInvoke", err)
	}
}

func TestAskPassesPriorHistoryWindowToClassifier(t *testing.T) {
	t.Parallel()

	kb, err := knowledge.Default()
	if err != nil {
		t.Fatalf("knowledge.Default() error = %v", err)
	}
	reg, err := toolx.BuildRegistry(kb, toolx.Searchers{})
	if err != nil {
		t.Fatalf("BuildRegistry() error = %v", err)
	}
	d, err := dispatch.New(reg, nil, dispatch.Config{})
	if err != nil {
		t.Fatalf("dispatch.New() error = %v", err)
	}
	fc := &fakeClassifier{decision: contractx.RoutingDecision{SelectedTool: toolx.NameSupport}}
	a, err := New(fc, d, reg, Config{HistoryWindow: 2})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sess := sessionx.New("s-6")
	for _, q := range []string{"first", "second"} {
		if _, err := a.Ask(context.Background(), sess, q); err != nil {
			t.Fatalf("Ask(%q) error = %v", q, err)
		}
	}

	if len(fc.history) != 2 {
		t.Fatalf("history len = %d, want 2", len(fc.history))
	}
	if fc.history[0].Content != "first" || fc.history[1].Role != contractx.RoleAssistant {
		t.Fatalf("unexpected history: %#v", fc.history)
	}
	if sess.Len() != 4 {
		t.Fatalf("session len = %d, want 4", sess.Len())
	}
}

func TestAskUnknownToolFallsBack(t *testing.T) {
	t.Parallel()

	kb, err := knowledge.Default()
	if err != nil {
		t.Fatalf("knowledge.Default() error = %v", err)
	}
	reg, err := toolx.BuildRegistry(kb, toolx.Searchers{})
	if err != nil {
		t.Fatalf("BuildRegistry() error = %v", err)
	}
	d, err := dispatch.New(reg, nil, dispatch.Config{})
	if err != nil {
		t.Fatalf("dispatch.New() error = %v", err)
	}
	fc := &fakeClassifier{decision: contractx.RoutingDecision{SelectedTool: "calculator"}}
	a, err := New(fc, d, reg, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ans, err := a.Ask(context.Background(), sessionx.New("s-7"), "what is 2+2")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if ans.Tool != toolx.NameVague || ans.Reply != kb.DeclineMessage {
		t.Fatalf("unexpected answer: %#v", ans)
	}
}

func TestHandleQueryIsStateless(t *testing.T) {
	t.Parallel()

	f := newRuleFixture(t)
	reply, err := f.assistant.HandleQuery(context.Background(), "Is the Samsung Galaxy better than iPhone?")
	if err != nil {
		t.Fatalf("HandleQuery() error = %v", err)
	}
	if reply != f.kb.DeclineMessage {
		t.Fatalf("HandleQuery() = %q", reply)
	}
}

func TestNewValidatesDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil, nil, Config{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
	f := newRuleFixture(t)
	if _, err := f.assistant.Ask(context.Background(), nil, "hi"); !errors.Is(err, ErrNilSession) {
		t.Fatalf("Ask(nil session) error = %v, want ErrNilSession", err)
	}
}

func TestAskFailedTurnLeavesSessionUnchanged(t *testing.T) {
	t.Parallel()

	kb, err := knowledge.Default()
	if err != nil {
		t.Fatalf("knowledge.Default() error = %v", err)
	}
	reg, err := toolx.BuildRegistry(kb, toolx.Searchers{})
	if err != nil {
		t.Fatalf("BuildRegistry() error = %v", err)
	}
	d, err := dispatch.New(reg, nil, dispatch.Config{})
	if err != nil {
		t.Fatalf("dispatch.New() error = %v", err)
	}
	fc := &fakeClassifier{err: context.Canceled}
	a, err := New(fc, d, reg, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sess := sessionx.New("s-8")
	if _, err := a.Ask(context.Background(), sess, "my iphone won't charge"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Ask() error = %v, want context.Canceled", err)
	}
	if sess.Len() != 0 {
		t.Fatalf("session len after failed turn = %d, want 0", sess.Len())
	}

	fc.err = nil
	fc.decision = contractx.RoutingDecision{SelectedTool: toolx.NameSupport}
	if _, err := a.Ask(context.Background(), sess, "my iphone won't charge"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if sess.Len() != 2 {
		t.Fatalf("session len = %d, want 2", sess.Len())
	}
	msgs := sess.Messages()
	if msgs[0].Role != contractx.RoleUser || msgs[1].Role != contractx.RoleAssistant {
		t.Fatalf("unexpected roles: %v %v", msgs[0].Role, msgs[1].Role)
	}
	if len(fc.history) != 0 {
		t.Fatalf("classifier saw history from the failed turn: %#v", fc.history)
	}
}
