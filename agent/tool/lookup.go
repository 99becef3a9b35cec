package tool

import (
	"context"
	"sort"
	"strings"

	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
)

// Table is a case-insensitive substring lookup. Longer keys are tried first so
// "apple watch" wins over "watch".
type Table struct {
	keys    []string
	entries map[string]string
}

func NewTable(entries map[string]string) Table {
	t := Table{entries: make(map[string]string, len(entries))}
	for k, v := range entries {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" || strings.TrimSpace(v) == "" {
			continue
		}
		t.entries[key] = strings.TrimSpace(v)
		t.keys = append(t.keys, key)
	}
	sort.Slice(t.keys, func(i, j int) bool {
		if len(t.keys[i]) != len(t.keys[j]) {
			return len(t.keys[i]) > len(t.keys[j])
		}
		return t.keys[i] < t.keys[j]
	})
	return t
}

func (t Table) Lookup(query string) (string, bool) {
	q := strings.ToLower(query)
	for _, k := range t.keys {
		if strings.Contains(q, k) {
			return t.entries[k], true
		}
	}
	return "", false
}

func (t Table) Len() int {
	return len(t.keys)
}

type lookupTool struct {
	name  string
	desc  string
	table Table
	miss  string
}

// NewLookup builds a tool answering purely from a static table.
func NewLookup(name, desc string, table Table, missMessage string) contractx.Tool {
	return &lookupTool{name: name, desc: desc, table: table, miss: strings.TrimSpace(missMessage)}
}

func (t *lookupTool) Name() string        { return t.name }
func (t *lookupTool) Description() string { return t.desc }

func (t *lookupTool) Invoke(_ context.Context, query string) (contractx.ToolResult, error) {
	if v, ok := t.table.Lookup(query); ok {
		return contractx.Success(t.name, v), nil
	}
	if t.miss != "" {
		return contractx.Success(t.name, t.miss), nil
	}
	return contractx.Failure(t.name, "no matching entry"), nil
}
