package search

import "context"

// Result 是搜索服务返回的一条结果。
type Result struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// Provider 定义了对接外部搜索服务的统一接口。查询进，排序结果列表出，
// 服务内部不关心其实现细节。
type Provider interface {
	Search(ctx context.Context, query string) ([]Result, error)
}
