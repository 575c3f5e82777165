package knowledge

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStaticProviderKeywordMatch(t *testing.T) {
	provider := NewStaticProvider([]Snippet{
		{Title: "tools", Content: "about tools", Keywords: []string{"tool", "search"}},
		{Title: "billing", Content: "about billing", Keywords: []string{"invoice"}},
	}, 3)

	results := provider.Query("which search tool do you support?")
	if len(results) != 1 || results[0].Title != "tools" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestStaticProviderNoKeywordsAlwaysMatches(t *testing.T) {
	provider := NewStaticProvider([]Snippet{
		{Title: "general", Content: "always on"},
	}, 3)

	results := provider.Query("anything at all")
	if len(results) != 1 {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestStaticProviderRespectsMaxResults(t *testing.T) {
	items := []Snippet{
		{Title: "a", Content: "x"},
		{Title: "b", Content: "y"},
		{Title: "c", Content: "z"},
	}
	provider := NewStaticProvider(items, 2)

	if results := provider.Query("whatever"); len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestLoadStaticProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	content := `[{"title":"t","content":"c","keywords":["hello"]}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write knowledge file: %v", err)
	}

	provider, err := LoadStaticProvider(path, 3)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if results := provider.Query("hello there"); len(results) != 1 {
		t.Fatalf("unexpected results: %+v", results)
	}
}
