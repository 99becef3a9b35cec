package classifier

import (
	"context"
	"regexp"
	"sort"
	"strings"

	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
)

// Routes names the tools each intent resolves to.
type Routes struct {
	Support  string
	Product  string
	Fallback string
}

type Markers struct {
	Competitors []string
	Support     []string
	Product     []string
}

// matcher does case-insensitive whole-phrase matching over a marker set.
type matcher struct {
	re *regexp.Regexp
}

func newMatcher(phrases []string) matcher {
	cleaned := make([]string, 0, len(phrases))
	seen := make(map[string]struct{}, len(phrases))
	for _, p := range phrases {
		p = normalize(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		cleaned = append(cleaned, p)
	}
	if len(cleaned) == 0 {
		return matcher{}
	}

	// longest first so multi-word phrases take precedence in the alternation
	sort.Slice(cleaned, func(i, j int) bool { return len(cleaned[i]) > len(cleaned[j]) })
	parts := make([]string, len(cleaned))
	for i, p := range cleaned {
		parts[i] = strings.ReplaceAll(regexp.QuoteMeta(p), " ", `\s+`)
	}
	return matcher{re: regexp.MustCompile(`(?:^|[^\p{L}\p{N}])(` + strings.Join(parts, "|") + `)(?:$|[^\p{L}\p{N}])`)}
}

// find returns the first matched phrase, or "".
func (m matcher) find(text string) string {
	if m.re == nil {
		return ""
	}
	sub := m.re.FindStringSubmatch(text)
	if len(sub) < 2 {
		return ""
	}
	return sub[1]
}

func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// RuleClassifier applies the routing decision list:
// competitor → fallback, support → support, product → product, else fallback.
type RuleClassifier struct {
	routes      Routes
	competitors matcher
	support     matcher
	product     matcher
}

var _ contractx.Classifier = (*RuleClassifier)(nil)

func NewRuleClassifier(routes Routes, markers Markers) *RuleClassifier {
	return &RuleClassifier{
		routes:      routes,
		competitors: newMatcher(markers.Competitors),
		support:     newMatcher(markers.Support),
		product:     newMatcher(markers.Product),
	}
}

func (c *RuleClassifier) Classify(_ context.Context, query string, _ []contractx.Tool, _ []contractx.Message) (contractx.RoutingDecision, error) {
	text := normalize(query)
	if text == "" {
		return contractx.RoutingDecision{SelectedTool: c.routes.Fallback, Rationale: "empty query"}, nil
	}
	if m := c.competitors.find(text); m != "" {
		return contractx.RoutingDecision{SelectedTool: c.routes.Fallback, Rationale: "competitor marker: " + m}, nil
	}
	if m := c.support.find(text); m != "" {
		return contractx.RoutingDecision{SelectedTool: c.routes.Support, Rationale: "support marker: " + m}, nil
	}
	if m := c.product.find(text); m != "" {
		return contractx.RoutingDecision{SelectedTool: c.routes.Product, Rationale: "product marker: " + m}, nil
	}
	return contractx.RoutingDecision{SelectedTool: c.routes.Fallback, Rationale: "no intent matched"}, nil
}

// Competitor reports the competitor marker found in query, if any.
func (c *RuleClassifier) Competitor(query string) (string, bool) {
	m := c.competitors.find(normalize(query))
	return m, m != ""
}
