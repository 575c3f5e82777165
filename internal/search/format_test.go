package search

import (
	"strings"
	"testing"
)

func TestFormatResultsEmpty(t *testing.T) {
	if got := FormatResults(nil); got != "Search returned no results." {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestFormatResultsKeepsTopThree(t *testing.T) {
	results := []Result{
		{Title: "one", Content: "a", URL: "https://1"},
		{Title: "two", Content: "b", URL: "https://2"},
		{Title: "three", Content: "c", URL: "https://3"},
		{Title: "four", Content: "d", URL: "https://4"},
	}

	got := FormatResults(results)
	if !strings.HasPrefix(got, "Search results:") {
		t.Fatalf("unexpected prefix: %q", got)
	}
	if !strings.Contains(got, "3. three") {
		t.Fatalf("third result missing: %q", got)
	}
	if strings.Contains(got, "four") {
		t.Fatalf("fourth result must be dropped: %q", got)
	}
}

func TestFormatResultsTruncatesContent(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := FormatResults([]Result{{Title: "t", Content: long, URL: "https://x"}})

	if !strings.Contains(got, strings.Repeat("a", 200)+"...") {
		t.Fatalf("content was not truncated: %q", got)
	}
	if strings.Contains(got, strings.Repeat("a", 201)) {
		t.Fatalf("content exceeds the limit: %q", got)
	}
}

func TestFormatResultsFillsMissingFields(t *testing.T) {
	got := FormatResults([]Result{{URL: "https://x"}})
	if !strings.Contains(got, "No title") || !strings.Contains(got, "No content") {
		t.Fatalf("placeholders missing: %q", got)
	}
}
