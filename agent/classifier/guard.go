package classifier

import (
	"context"
	"strings"

	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
)

type guarded struct {
	competitors matcher
	fallback    string
	inner       contractx.Classifier
}

// Guard puts the competitor check and the empty-query check in front of
// inner. When either matches, inner is never called.
func Guard(competitors []string, fallback string, inner contractx.Classifier) contractx.Classifier {
	return &guarded{
		competitors: newMatcher(competitors),
		fallback:    fallback,
		inner:       inner,
	}
}

func (g *guarded) Classify(ctx context.Context, query string, catalog []contractx.Tool, history []contractx.Message) (contractx.RoutingDecision, error) {
	if strings.TrimSpace(query) == "" {
		return contractx.RoutingDecision{SelectedTool: g.fallback, Rationale: "empty query"}, nil
	}
	if m := g.competitors.find(normalize(query)); m != "" {
		return contractx.RoutingDecision{SelectedTool: g.fallback, Rationale: "competitor marker: " + m}, nil
	}
	return g.inner.Classify(ctx, query, catalog, history)
}
