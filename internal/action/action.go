package action

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	xerrors "LoopGate/internal/errors"
)

// Action 表示一个可被智能体提案、由执行器运行的动作。动作集合是封闭的：
// 每个动作自带名称、参数结构与执行逻辑，新增动作必须显式注册。
type Action interface {
	// Name 返回动作的唯一名称。
	Name() string
	// Description 是暴露给大模型的动作说明。
	Description() string
	// Parameters 返回参数的 JSON Schema，供大模型构造调用。
	Parameters() map[string]any
	// Execute 校验参数并运行动作。参数不合法时返回 INVALID_ARGUMENT，
	// 外部依赖失败时返回 EXECUTOR_FAILURE。
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Registry 持有全部已注册动作，并充当执行器入口。
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry 创建空的动作注册表。
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register 注册一个动作。重复注册同名动作会失败。
func (r *Registry) Register(a Action) error {
	if a == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "action 不能为空")
	}
	name := strings.TrimSpace(a.Name())
	if name == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "动作名称不能为空")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actions[name]; ok {
		return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("动作 %s 已注册", name))
	}
	r.actions[name] = a
	return nil
}

// Get 返回指定名称的动作。
func (r *Registry) Get(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	return a, ok
}

// Names 返回全部已注册动作的名称，按字典序排列。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All 返回全部已注册动作，按名称排序。
func (r *Registry) All() []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	actions := make([]Action, 0, len(r.actions))
	for _, a := range r.actions {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].Name() < actions[j].Name() })
	return actions
}

// Execute 运行指定动作。动作未注册时返回 CLASSIFICATION_UNKNOWN，
// 其余失败语义由动作自身决定。
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	a, ok := r.Get(name)
	if !ok {
		return "", xerrors.New(xerrors.CodeClassificationUnknown, fmt.Sprintf("未注册的动作: %s", name))
	}
	return a.Execute(ctx, args)
}

// invalidArguments 构造携带具体字段名的参数错误。
func invalidArguments(fields ...string) error {
	return xerrors.New(
		xerrors.CodeInvalidArgument,
		fmt.Sprintf("参数不合法: %s", strings.Join(fields, ", ")),
		xerrors.WithMetadata("fields", strings.Join(fields, ",")),
	)
}

// intArg 从参数表取整数。JSON 解码出的数字是 float64，这里统一收敛。
func intArg(args map[string]any, key string) (int, bool) {
	raw, ok := args[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// stringArg 从参数表取非空字符串。
func stringArg(args map[string]any, key string) (string, bool) {
	raw, ok := args[key]
	if !ok {
		return "", false
	}
	value, ok := raw.(string)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
