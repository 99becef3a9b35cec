package assistantnode

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
)

// ToolCatalog is the read side of the tool registry.
type ToolCatalog interface {
	List() []contractx.Tool
	FallbackName() string
}

func ClassifyIntent(
	ctx context.Context,
	in *GraphState,
	classifier contractx.Classifier,
	catalog ToolCatalog,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	if in.Query == "" {
		in.Decision = contractx.RoutingDecision{
			SelectedTool: catalog.FallbackName(),
			Rationale:    "empty query",
		}
		return in, nil
	}

	decision, err := classifier.Classify(ctx, in.Query, catalog.List(), in.History)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(decision.SelectedTool) == "" {
		decision.SelectedTool = catalog.FallbackName()
		if decision.Rationale == "" {
			decision.Rationale = "classifier returned no tool"
		}
	}

	in.Decision = decision
	return in, nil
}
