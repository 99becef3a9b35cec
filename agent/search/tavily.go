package search

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
	tavilyx "github.com/tanpawarit/Chative-Apple-Support-Agent/pkg/tavily"
)

type tavilySearcher struct {
	client  *tavilyx.Client
	domains []string
}

// Tavily adapts the Tavily client to the Searcher oracle, restricting results
// to domains when given.
func Tavily(client *tavilyx.Client, domains []string) contractx.Searcher {
	return &tavilySearcher{client: client, domains: domains}
}

func (s *tavilySearcher) Search(ctx context.Context, query string) ([]contractx.SearchHit, error) {
	results, err := s.client.Search(ctx, query, s.domains)
	if err != nil {
		return nil, fmt.Errorf("%w: tavily search: %w", contractx.ErrOracle, err)
	}
	hits := make([]contractx.SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, contractx.SearchHit{
			Title:   r.Title,
			Snippet: r.Content,
			URL:     r.URL,
			Score:   r.Score,
		})
	}
	return hits, nil
}
