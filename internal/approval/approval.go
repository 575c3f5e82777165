package approval

import (
	"context"

	xerrors "LoopGate/internal/errors"
)

// Request 是一条待审批记录。Token 是唯一且不可猜测的检索键；SessionID
// 指向发起会话，动作名与参数用于审批通过后恢复执行现场。
type Request struct {
	Token     string         `json:"token"`
	SessionID string         `json:"session_id"`
	Action    string         `json:"action"`
	Args      map[string]any `json:"args,omitempty"`
	Rationale string         `json:"rationale"`
	FiledAt   int64          `json:"filed_at"`
}

// Ledger 保存全部未决审批。语义要求：File 总是成功并返回新 token；
// Resolve 必须原子地取出并删除记录——同一 token 的两次 Resolve 只能有
// 一次成功，token 一经取出永不复用。
type Ledger interface {
	// File 登记一条审批请求，返回新生成的 token。
	File(ctx context.Context, sessionID, actionName string, args map[string]any, rationale string) (string, error)
	// Resolve 原子地取出并删除指定 token 的记录。token 不存在（从未登记、
	// 已被取出或已过期）时返回 ErrUnknownToken。
	Resolve(ctx context.Context, token string) (*Request, error)
	// Close 释放底层资源。
	Close() error
}

// ErrUnknownToken 表示 token 不在台账中。
var ErrUnknownToken = xerrors.New(xerrors.CodeUnknownToken, "approval token not found")
