package tool

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(NewVague(""))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	support := NewSearch(SearchConfig{Name: NameSupport}, nil)
	if err := reg.Register(support); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := reg.Get(NameSupport)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != support {
		t.Fatal("Get() returned a different tool than registered")
	}
	if reg.Fallback().Name() != NameVague {
		t.Fatalf("fallback = %s", reg.Fallback().Name())
	}
}

func TestRegistryDuplicateLeavesRegistryUnchanged(t *testing.T) {
	t.Parallel()

	first := NewSearch(SearchConfig{Name: NameSupport, Description: "first"}, nil)
	reg := MustNewRegistry(NewVague(""), first)
	before := reg.List()

	err := reg.Register(NewSearch(SearchConfig{Name: NameSupport, Description: "second"}, nil))
	if !errors.Is(err, contractx.ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}

	after := reg.List()
	if len(after) != len(before) {
		t.Fatalf("registry size changed: %d -> %d", len(before), len(after))
	}
	got, _ := reg.Get(NameSupport)
	if got != first || got.Description() != "first" {
		t.Fatal("duplicate registration replaced the original tool")
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	t.Parallel()

	reg := MustNewRegistry(NewVague(""))
	if _, err := reg.Get("weather"); !errors.Is(err, contractx.ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestRegistryListOrder(t *testing.T) {
	t.Parallel()

	reg := MustNewRegistry(NewVague(""),
		NewSearch(SearchConfig{Name: NameSupport}, nil),
		NewSearch(SearchConfig{Name: NameProduct}, nil),
	)

	list := reg.List()
	want := []string{NameVague, NameSupport, NameProduct}
	for i, tl := range list {
		if tl.Name() != want[i] {
			t.Fatalf("list[%d] = %s, want %s", i, tl.Name(), want[i])
		}
	}

	list[0] = nil
	if reg.List()[0] == nil {
		t.Fatal("List() must return a copy")
	}
}

func TestRegistryRejectsInvalidTools(t *testing.T) {
	t.Parallel()

	reg := MustNewRegistry(NewVague(""))
	if err := reg.Register(nil); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for nil tool, got %v", err)
	}
	if err := reg.Register(NewSearch(SearchConfig{Name: "  "}, nil)); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank name, got %v", err)
	}
}
