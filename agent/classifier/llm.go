package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
	toolx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/tool"
)

const maxRationaleRunes = 200

// LLMClassifier lets a tool-calling chat model pick the tool. The model is
// called once per query; failures are not retried.
type LLMClassifier struct {
	chatModel    einomodel.ToolCallingChatModel
	systemPrompt string
	fallback     string

	mu      sync.Mutex
	runners map[string]compose.Runnable[map[string]any, *schema.Message]
}

var _ contractx.Classifier = (*LLMClassifier)(nil)

func NewLLMClassifier(
	ctx context.Context,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	fallback string,
	catalog []contractx.Tool,
) (*LLMClassifier, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(fallback) == "" {
		return nil, fmt.Errorf("%w: fallback tool name is required", contractx.ErrValidation)
	}

	c := &LLMClassifier{
		chatModel:    chatModel,
		systemPrompt: systemPrompt,
		fallback:     fallback,
		runners:      make(map[string]compose.Runnable[map[string]any, *schema.Message], 1),
	}
	if _, err := c.runnerFor(ctx, catalog); err != nil {
		return nil, err
	}
	return c, nil
}

type historyEntry struct {
	Role    contractx.Role `json:"role"`
	Content string         `json:"content"`
	Tool    string         `json:"tool,omitempty"`
}

func (c *LLMClassifier) Classify(
	ctx context.Context,
	query string,
	catalog []contractx.Tool,
	history []contractx.Message,
) (contractx.RoutingDecision, error) {
	runner, err := c.runnerFor(ctx, catalog)
	if err != nil {
		return contractx.RoutingDecision{}, err
	}

	entries := make([]historyEntry, 0, len(history))
	for _, m := range history {
		entries = append(entries, historyEntry{Role: m.Role, Content: m.Content, Tool: m.ToolName})
	}
	payload := map[string]any{
		"customer_message": query,
		"history":          entries,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return contractx.RoutingDecision{}, fmt.Errorf("%w: marshal classifier payload: %v", contractx.ErrValidation, err)
	}

	msg, err := runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return contractx.RoutingDecision{}, fmt.Errorf("%w: classifier invoke: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil {
		return contractx.RoutingDecision{}, fmt.Errorf("%w: empty classifier response", contractx.ErrSchemaViolation)
	}

	for _, call := range msg.ToolCalls {
		name := strings.TrimSpace(call.Function.Name)
		if name == "" {
			continue
		}
		if len(msg.ToolCalls) > 1 {
			log.Debug().Int("tool_calls", len(msg.ToolCalls)).Str("selected", name).Msg("classifier returned several tool calls, keeping the first")
		}
		return contractx.RoutingDecision{SelectedTool: name, Rationale: "selected by model"}, nil
	}

	return contractx.RoutingDecision{
		SelectedTool: c.fallback,
		Rationale:    "model made no tool call: " + clip(strings.TrimSpace(msg.Content), maxRationaleRunes),
	}, nil
}

func (c *LLMClassifier) runnerFor(
	ctx context.Context,
	catalog []contractx.Tool,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	key := strings.Join(toolx.Names(catalog), "\x00")

	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.runners[key]; ok {
		return r, nil
	}

	toolModel, err := c.chatModel.WithTools(toolx.Infos(catalog))
	if err != nil {
		return nil, fmt.Errorf("%w: bind classifier tools: %v", contractx.ErrModelInvoke, err)
	}
	runner, err := compileClassifierGraph(ctx, toolModel, c.systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile classifier graph: %v", contractx.ErrModelInvoke, err)
	}
	c.runners[key] = runner
	return runner, nil
}

func compileClassifierGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add classifier prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add classifier model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add classifier edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add classifier edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add classifier edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("classifier.tool_selection_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile classifier graph: %w", err)
	}
	return runner, nil
}

func clip(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}
