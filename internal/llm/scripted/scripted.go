package scripted

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"LoopGate/internal/llm"
)

// Client 是基于规则的推理实现，不依赖外部模型服务。用于离线开发与测试，
// 行为完全确定：同一句话总是产生同一个提案。
type Client struct{}

// NewClient 创建规则推理客户端。
func NewClient() *Client {
	return &Client{}
}

var (
	multiplyPattern = regexp.MustCompile(`(-?\d+)\s*(?:times|x|\*|乘以?)\s*(-?\d+)`)
	searchPattern   = regexp.MustCompile(`(?i)^(?:search(?:\s+for)?|查询|搜索)\s+(.+)$`)
	addressPattern  = regexp.MustCompile(`0x[0-9a-fA-F]{40}`)
)

// Generate 按规则解析用户输入并产生动作提案或直接回复。
func (c *Client) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	utterance := strings.TrimSpace(req.Utterance)
	lower := strings.ToLower(utterance)

	if match := multiplyPattern.FindStringSubmatch(lower); match != nil {
		first, _ := strconv.Atoi(match[1])
		second, _ := strconv.Atoi(match[2])
		return &llm.Response{Actions: []llm.ProposedAction{{
			Name: "multiply",
			Args: map[string]any{
				"first_number":  first,
				"second_number": second,
			},
		}}}, nil
	}

	if match := searchPattern.FindStringSubmatch(utterance); match != nil {
		return &llm.Response{Actions: []llm.ProposedAction{{
			Name: "search",
			Args: map[string]any{"query": strings.TrimSpace(match[1])},
		}}}, nil
	}

	if strings.Contains(lower, "balance") || strings.Contains(lower, "余额") ||
		strings.Contains(lower, "chain") || strings.Contains(lower, "链上") {
		args := map[string]any{}
		if address := addressPattern.FindString(utterance); address != "" {
			args["address"] = address
		}
		return &llm.Response{Actions: []llm.ProposedAction{{
			Name: "chain_lookup",
			Args: args,
		}}}, nil
	}

	return &llm.Response{
		Reply: fmt.Sprintf("I can multiply numbers, search the web, or look up chain state. You said: %s", utterance),
	}, nil
}

var _ llm.Client = (*Client)(nil)
