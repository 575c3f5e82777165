package action

import (
	"context"
	"strconv"
)

// MultiplyAction 计算两个整数的乘积。纯函数、无副作用，是自动执行路径
// 的代表动作。
type MultiplyAction struct{}

// NewMultiplyAction 创建乘法动作。
func NewMultiplyAction() *MultiplyAction {
	return &MultiplyAction{}
}

// Name 实现 Action 接口。
func (a *MultiplyAction) Name() string { return "multiply" }

// Description 实现 Action 接口。
func (a *MultiplyAction) Description() string {
	return "Multiply two integer numbers"
}

// Parameters 实现 Action 接口。
func (a *MultiplyAction) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"first_number":  map[string]any{"type": "integer"},
			"second_number": map[string]any{"type": "integer"},
		},
		"required": []string{"first_number", "second_number"},
	}
}

// Execute 实现 Action 接口。
func (a *MultiplyAction) Execute(_ context.Context, args map[string]any) (string, error) {
	var missing []string
	first, ok := intArg(args, "first_number")
	if !ok {
		missing = append(missing, "first_number")
	}
	second, ok := intArg(args, "second_number")
	if !ok {
		missing = append(missing, "second_number")
	}
	if len(missing) > 0 {
		return "", invalidArguments(missing...)
	}
	return strconv.Itoa(first * second), nil
}

var _ Action = (*MultiplyAction)(nil)
