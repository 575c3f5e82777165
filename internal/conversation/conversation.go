package conversation

import (
	"context"

	xerrors "LoopGate/internal/errors"
)

// Role 表示一条消息的发言方。
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Turn 是会话中的一条消息。写入后不可变，顺序即到达顺序。
type Turn struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// Store 抽象会话记录的存取。实现必须保证：同一会话内 Append 的顺序被
// 严格保留，不同会话之间的操作互不阻塞。
type Store interface {
	// Ensure 保证指定会话存在。sessionID 为空时生成新的会话标识。
	// 返回最终的会话标识以及会话是否为本次新建。
	Ensure(ctx context.Context, sessionID string) (string, bool, error)
	// Append 向既有会话追加一条消息。会话不存在时返回 ErrSessionNotFound。
	Append(ctx context.Context, sessionID string, turn Turn) error
	// History 按写入顺序返回会话消息。limit <= 0 表示不限制条数。
	History(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	// Close 释放底层资源。
	Close() error
}

// ErrSessionNotFound 表示指定的会话不存在。
var ErrSessionNotFound = xerrors.New(CodeSessionNotFound, "session not found")

const (
	CodeSessionNotFound xerrors.Code = "SESSION_NOT_FOUND"
)

func init() {
	xerrors.Register(CodeSessionNotFound, xerrors.Attributes{
		Message:  "session not found",
		Severity: xerrors.SeverityInfo,
		Alert:    false,
	})
}
