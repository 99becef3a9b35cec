package tool

import (
	"fmt"
	"strings"
	"sync"

	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
)

// Registry holds the callable tools in registration order. The fallback tool
// is registered on construction, so a registry is never without one.
type Registry struct {
	mu       sync.RWMutex
	order    []contractx.Tool
	byName   map[string]contractx.Tool
	fallback string
}

func NewRegistry(fallback contractx.Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]contractx.Tool, 4)}
	if err := r.Register(fallback); err != nil {
		return nil, fmt.Errorf("register fallback: %w", err)
	}
	r.fallback = fallback.Name()
	return r, nil
}

func MustNewRegistry(fallback contractx.Tool, tools ...contractx.Tool) *Registry {
	r, err := NewRegistry(fallback)
	if err != nil {
		panic(err)
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(t contractx.Tool) error {
	if t == nil {
		return fmt.Errorf("%w: tool is nil", contractx.ErrValidation)
	}
	name := t.Name()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: tool name is empty", contractx.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: tool=%s", contractx.ErrDuplicateTool, name)
	}
	r.byName[name] = t
	r.order = append(r.order, t)
	return nil
}

func (r *Registry) Get(name string) (contractx.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: tool=%q", contractx.ErrUnknownTool, name)
	}
	return t, nil
}

// List returns a copy of the tools in registration order.
func (r *Registry) List() []contractx.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]contractx.Tool, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Fallback() contractx.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[r.fallback]
}

func (r *Registry) FallbackName() string {
	return r.fallback
}
