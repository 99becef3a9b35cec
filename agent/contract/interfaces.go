package contract

import "context"

// Tool is a named capability the dispatcher can invoke. Implementations
// report domain failures through ToolResult; a returned error or a panic is
// treated as an internal failure by the dispatcher.
type Tool interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, query string) (ToolResult, error)
}

// Classifier picks exactly one tool for a query.
type Classifier interface {
	Classify(ctx context.Context, query string, catalog []Tool, history []Message) (RoutingDecision, error)
}

// Searcher is the web-search oracle.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchHit, error)
}

type SearcherFunc func(ctx context.Context, query string) ([]SearchHit, error)

func (f SearcherFunc) Search(ctx context.Context, query string) ([]SearchHit, error) {
	return f(ctx, query)
}
