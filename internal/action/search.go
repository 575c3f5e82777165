package action

import (
	"context"

	xerrors "LoopGate/internal/errors"
	"LoopGate/internal/search"
)

// SearchAction 调用外部搜索服务。涉及对外的数据访问，默认走审批路径。
type SearchAction struct {
	provider search.Provider
}

// NewSearchAction 创建搜索动作。
func NewSearchAction(provider search.Provider) *SearchAction {
	return &SearchAction{provider: provider}
}

// Name 实现 Action 接口。
func (a *SearchAction) Name() string { return "search" }

// Description 实现 Action 接口。
func (a *SearchAction) Description() string {
	return "Perform web search on the user query"
}

// Parameters 实现 Action 接口。
func (a *SearchAction) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
		"required": []string{"query"},
	}
}

// Execute 实现 Action 接口。
func (a *SearchAction) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, ok := stringArg(args, "query")
	if !ok {
		return "", invalidArguments("query")
	}
	if a.provider == nil {
		return "", xerrors.New(xerrors.CodeInitializationFailure, "未配置搜索服务")
	}

	results, err := a.provider.Search(ctx, query)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeExecutorFailure, err, "搜索执行失败")
	}
	return search.FormatResults(results), nil
}

var _ Action = (*SearchAction)(nil)
