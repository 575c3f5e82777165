package action

import (
	"context"
	"fmt"

	xerrors "LoopGate/internal/errors"
	"LoopGate/internal/web3"
)

// ChainLookupAction 查询链上状态：链 ID、最新区块高度，以及可选地址的
// 余额。只读操作，但访问外部网络，默认走审批路径。
type ChainLookupAction struct {
	client web3.Client
}

// NewChainLookupAction 创建链上查询动作。
func NewChainLookupAction(client web3.Client) *ChainLookupAction {
	return &ChainLookupAction{client: client}
}

// Name 实现 Action 接口。
func (a *ChainLookupAction) Name() string { return "chain_lookup" }

// Description 实现 Action 接口。
func (a *ChainLookupAction) Description() string {
	return "Look up chain id, head block and optionally the balance of an address"
}

// Parameters 实现 Action 接口。
func (a *ChainLookupAction) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"address": map[string]any{
				"type":        "string",
				"description": "optional 0x-prefixed account address",
			},
		},
	}
}

// Execute 实现 Action 接口。
func (a *ChainLookupAction) Execute(ctx context.Context, args map[string]any) (string, error) {
	if a.client == nil {
		return "", xerrors.New(xerrors.CodeInitializationFailure, "未配置链上客户端")
	}

	snapshot, err := a.client.FetchChainSnapshot(ctx)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeExecutorFailure, err, "查询链上状态失败")
	}

	summary := fmt.Sprintf("chain_id=%s block=%s", snapshot.ChainID, snapshot.BlockNumber)
	if address, ok := stringArg(args, "address"); ok {
		balance, err := a.client.BalanceOf(ctx, address)
		if err != nil {
			return "", xerrors.Wrap(xerrors.CodeExecutorFailure, err, "查询地址余额失败")
		}
		summary = fmt.Sprintf("%s balance(%s)=%s wei", summary, address, balance)
	}
	return summary, nil
}

var _ Action = (*ChainLookupAction)(nil)
