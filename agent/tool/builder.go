package tool

import (
	"fmt"

	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/knowledge"
)

// Searchers are the search oracles per tool. Either may be nil.
type Searchers struct {
	Support contractx.Searcher
	Product contractx.Searcher
}

// BuildRegistry assembles the standard catalog from a knowledge base: the
// vague fallback, support, product and, when its table has entries, weight.
func BuildRegistry(kb knowledge.Base, searchers Searchers) (*Registry, error) {
	reg, err := NewRegistry(NewVague(kb.DeclineMessage))
	if err != nil {
		return nil, err
	}

	tools := []contractx.Tool{
		NewSearch(SearchConfig{
			Name:        NameSupport,
			Description: kb.Support.Description,
			QueryPrefix: kb.Support.QueryPrefix,
			Table:       NewTable(kb.Support.Entries),
			Canned:      kb.Support.Canned,
			NoResults:   kb.Support.MissMessage,
		}, searchers.Support),
		NewSearch(SearchConfig{
			Name:        NameProduct,
			Description: kb.Product.Description,
			QueryPrefix: kb.Product.QueryPrefix,
			Table:       NewTable(kb.Product.Entries),
			Canned:      kb.Product.Canned,
			NoResults:   kb.Product.MissMessage,
		}, searchers.Product),
	}

	if weights := NewTable(kb.Weight.Entries); weights.Len() > 0 {
		tools = append(tools, NewLookup(NameWeight, kb.Weight.Description, weights, kb.Weight.MissMessage))
	}

	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return nil, fmt.Errorf("register tool=%s: %w", t.Name(), err)
		}
	}
	return reg, nil
}
