package assistantnode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, decision contractx.RoutingDecision, query string) string
}

// ToolResolver reports which tool actually serves a name.
type ToolResolver interface {
	Get(name string) (contractx.Tool, error)
	FallbackName() string
}

func DispatchTool(
	ctx context.Context,
	in *GraphState,
	dispatcher Dispatcher,
	tools ToolResolver,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	in.Tool = in.Decision.SelectedTool
	if _, err := tools.Get(in.Tool); err != nil {
		in.Tool = tools.FallbackName()
	}

	in.Reply = dispatcher.Dispatch(ctx, in.Decision, in.Query)
	return in, nil
}
