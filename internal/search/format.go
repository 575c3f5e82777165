package search

import (
	"fmt"
	"strings"
)

const (
	formatTopN          = 3
	formatContentLength = 200
)

// FormatResults 将搜索结果整理为适合对话展示的文本，仅保留前几条。
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return "Search returned no results."
	}

	var builder strings.Builder
	builder.WriteString("Search results:\n\n")
	for i, item := range results {
		if i >= formatTopN {
			break
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = "No title"
		}
		content := strings.TrimSpace(item.Content)
		if content == "" {
			content = "No content"
		}
		if runes := []rune(content); len(runes) > formatContentLength {
			content = string(runes[:formatContentLength]) + "..."
		}
		builder.WriteString(fmt.Sprintf("%d. %s\n%s\n%s\n\n", i+1, title, content, item.URL))
	}
	return strings.TrimRight(builder.String(), "\n") + "\n"
}
