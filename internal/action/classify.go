package action

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Route 表示分类器对动作的路由结论。
type Route string

const (
	// RouteAuto 表示动作无副作用，可直接执行。
	RouteAuto Route = "auto"
	// RouteGated 表示动作有外部影响，必须经人工审批。
	RouteGated Route = "gated"
	// RouteUnknown 表示动作不在路由表中，直接回落到兜底回复。
	RouteUnknown Route = "unknown"
)

// Policy 对应 configs/gatepolicy.yaml 的结构。路由表是显式配置而非从
// 动作签名推断，保证可审计。
type Policy struct {
	Actions map[string]string `yaml:"actions"`
}

// Classifier 持有静态路由表。表在构造后不再变化，分类结果完全确定。
type Classifier struct {
	routes map[string]Route
}

// NewClassifier 根据路由表构造分类器。表中的取值只允许 auto 或 gated。
func NewClassifier(routes map[string]Route) (*Classifier, error) {
	cloned := make(map[string]Route, len(routes))
	for name, route := range routes {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("路由表中存在空动作名")
		}
		switch route {
		case RouteAuto, RouteGated:
			cloned[name] = route
		default:
			return nil, fmt.Errorf("动作 %s 的路由取值非法: %s", name, route)
		}
	}
	return &Classifier{routes: cloned}, nil
}

// Classify 返回动作的路由结论。未登记的名称一律返回 RouteUnknown。
func (c *Classifier) Classify(actionName string) Route {
	if route, ok := c.routes[strings.TrimSpace(actionName)]; ok {
		return route
	}
	return RouteUnknown
}

// DefaultRoutes 返回内置路由表：乘法自动执行，搜索与链上查询需要审批。
func DefaultRoutes() map[string]Route {
	return map[string]Route{
		"multiply":     RouteAuto,
		"search":       RouteGated,
		"chain_lookup": RouteGated,
	}
}

// LoadPolicy 解析 YAML 路由策略文件。路径为空时返回内置路由表。
func LoadPolicy(path string) (map[string]Route, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRoutes(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取路由策略失败: %w", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(content, &policy); err != nil {
		return nil, fmt.Errorf("解析路由策略失败: %w", err)
	}
	if len(policy.Actions) == 0 {
		return nil, fmt.Errorf("路由策略为空: %s", path)
	}

	routes := make(map[string]Route, len(policy.Actions))
	for name, raw := range policy.Actions {
		routes[name] = Route(strings.ToLower(strings.TrimSpace(raw)))
	}
	return routes, nil
}
