package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
)

const (
	reasonSearchUnavailable = "search service unavailable"
	reasonSearchCanceled    = "search was canceled"
	maxSnippetRunes         = 280
)

type SearchConfig struct {
	Name        string
	Description string
	// QueryPrefix scopes the oracle query, e.g. "Apple support".
	QueryPrefix string
	// Table is consulted before the oracle; a hit short-circuits the search.
	Table Table
	// Canned answers when no search oracle is configured.
	Canned string
	// NoResults is returned when the oracle finds nothing.
	NoResults string
}

type searchTool struct {
	cfg      SearchConfig
	searcher contractx.Searcher
}

// NewSearch returns an oracle-backed tool. searcher may be nil, in which case
// the tool answers from its table and canned text only.
func NewSearch(cfg SearchConfig, searcher contractx.Searcher) contractx.Tool {
	if strings.TrimSpace(cfg.NoResults) == "" {
		cfg.NoResults = "I couldn't find anything relevant for that question."
	}
	return &searchTool{cfg: cfg, searcher: searcher}
}

func (t *searchTool) Name() string        { return t.cfg.Name }
func (t *searchTool) Description() string { return t.cfg.Description }

func (t *searchTool) Invoke(ctx context.Context, query string) (contractx.ToolResult, error) {
	if v, ok := t.cfg.Table.Lookup(query); ok {
		return contractx.Success(t.cfg.Name, v), nil
	}

	if t.searcher == nil {
		if t.cfg.Canned != "" {
			return contractx.Success(t.cfg.Name, t.cfg.Canned), nil
		}
		return contractx.Failure(t.cfg.Name, reasonSearchUnavailable), nil
	}

	hits, err := t.searcher.Search(ctx, scopedQuery(t.cfg.QueryPrefix, query))
	if err != nil {
		log.Warn().Err(err).Str("tool", t.cfg.Name).Msg("search oracle failed")
		if errors.Is(err, context.Canceled) {
			return contractx.Failure(t.cfg.Name, reasonSearchCanceled), nil
		}
		return contractx.Failure(t.cfg.Name, reasonSearchUnavailable), nil
	}

	if len(hits) == 0 {
		return contractx.Success(t.cfg.Name, t.cfg.NoResults), nil
	}
	return contractx.Success(t.cfg.Name, FormatHits(hits)), nil
}

func scopedQuery(prefix, query string) string {
	prefix = strings.TrimSpace(prefix)
	query = strings.TrimSpace(query)
	if prefix == "" {
		return query
	}
	if query == "" {
		return prefix
	}
	return prefix + ": " + query
}

// FormatHits renders one hit per line. Hits with no title, snippet or url are
// skipped.
func FormatHits(hits []contractx.SearchHit) string {
	var b strings.Builder
	n := 0
	for _, h := range hits {
		title := strings.TrimSpace(h.Title)
		snippet := truncate(strings.Join(strings.Fields(h.Snippet), " "), maxSnippetRunes)
		url := strings.TrimSpace(h.URL)
		if title == "" && snippet == "" && url == "" {
			continue
		}
		if title == "" {
			title = "Result"
		}

		n++
		if n > 1 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", n, title)
		if snippet != "" {
			b.WriteString(" — ")
			b.WriteString(snippet)
		}
		if url != "" {
			fmt.Fprintf(&b, " (%s)", url)
		}
	}
	if n == 0 {
		return "Search returned results without readable content."
	}
	return b.String()
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit])) + "…"
}
