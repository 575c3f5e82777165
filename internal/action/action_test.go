package action

import (
	"context"
	"errors"
	"strings"
	"testing"

	xerrors "LoopGate/internal/errors"
	"LoopGate/internal/search"
)

type stubSearchProvider struct {
	results []search.Result
	err     error
	queries []string
}

func (s *stubSearchProvider) Search(_ context.Context, query string) ([]search.Result, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func TestMultiplyExecute(t *testing.T) {
	multiply := NewMultiplyAction()

	result, err := multiply.Execute(context.Background(), map[string]any{
		"first_number":  7,
		"second_number": 6,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "42" {
		t.Fatalf("expected 42, got %q", result)
	}
}

func TestMultiplyAcceptsJSONNumbers(t *testing.T) {
	multiply := NewMultiplyAction()

	// JSON 解码后的数字是 float64。
	result, err := multiply.Execute(context.Background(), map[string]any{
		"first_number":  float64(-3),
		"second_number": float64(5),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "-15" {
		t.Fatalf("expected -15, got %q", result)
	}
}

func TestMultiplyMissingArguments(t *testing.T) {
	multiply := NewMultiplyAction()

	_, err := multiply.Execute(context.Background(), map[string]any{
		"first_number": 7,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
	}
	e, ok := xerrors.From(err)
	if !ok {
		t.Fatalf("expected *xerrors.Error, got %T", err)
	}
	if e.Metadata()["fields"] != "second_number" {
		t.Fatalf("unexpected fields metadata: %q", e.Metadata()["fields"])
	}
}

func TestSearchExecuteFormatsResults(t *testing.T) {
	provider := &stubSearchProvider{results: []search.Result{
		{Title: "Go 1.24", Content: "release notes", URL: "https://go.dev"},
	}}
	action := NewSearchAction(provider)

	result, err := action.Execute(context.Background(), map[string]any{"query": "go releases"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(result, "Search results:") {
		t.Fatalf("unexpected result: %q", result)
	}
	if len(provider.queries) != 1 || provider.queries[0] != "go releases" {
		t.Fatalf("unexpected queries: %v", provider.queries)
	}
}

func TestSearchExecuteProviderFailure(t *testing.T) {
	provider := &stubSearchProvider{err: errors.New("upstream down")}
	action := NewSearchAction(provider)

	_, err := action.Execute(context.Background(), map[string]any{"query": "anything"})
	if err == nil {
		t.Fatal("expected error")
	}
	if xerrors.CodeOf(err) != xerrors.CodeExecutorFailure {
		t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
	}
}

func TestSearchExecuteWithoutProvider(t *testing.T) {
	action := NewSearchAction(nil)

	_, err := action.Execute(context.Background(), map[string]any{"query": "anything"})
	if err == nil {
		t.Fatal("expected error")
	}
	if xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
	}
}

func TestRegistryExecuteUnknownAction(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(NewMultiplyAction()); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := registry.Execute(context.Background(), "teleport", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if xerrors.CodeOf(err) != xerrors.CodeClassificationUnknown {
		t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
	}
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(NewMultiplyAction()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(NewMultiplyAction()); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(NewSearchAction(nil)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(NewMultiplyAction()); err != nil {
		t.Fatalf("register: %v", err)
	}

	names := registry.Names()
	if len(names) != 2 || names[0] != "multiply" || names[1] != "search" {
		t.Fatalf("unexpected names: %v", names)
	}
}
