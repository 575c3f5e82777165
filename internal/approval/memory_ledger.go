package approval

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger 以内存方式保存审批台账，是默认实现。
type MemoryLedger struct {
	mu      sync.Mutex
	pending map[string]*Request
}

// NewMemoryLedger 创建 MemoryLedger。
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{pending: make(map[string]*Request)}
}

// File 实现 Ledger 接口。
func (m *MemoryLedger) File(_ context.Context, sessionID, actionName string, args map[string]any, rationale string) (string, error) {
	token := uuid.NewString()
	request := &Request{
		Token:     token,
		SessionID: sessionID,
		Action:    actionName,
		Args:      cloneArgs(args),
		Rationale: rationale,
		FiledAt:   time.Now().Unix(),
	}

	m.mu.Lock()
	m.pending[token] = request
	m.mu.Unlock()
	return token, nil
}

// Resolve 实现 Ledger 接口。取出与删除在同一临界区内完成，并发调用
// 同一 token 时只有一个调用者能看到记录。
func (m *MemoryLedger) Resolve(_ context.Context, token string) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	request, ok := m.pending[token]
	if !ok {
		return nil, ErrUnknownToken
	}
	delete(m.pending, token)

	clone := *request
	clone.Args = cloneArgs(request.Args)
	return &clone, nil
}

// Close 对内存台账无需操作。
func (m *MemoryLedger) Close() error {
	return nil
}

func cloneArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	clone := make(map[string]any, len(args))
	for k, v := range args {
		clone[k] = v
	}
	return clone
}

// ensure interface compliance at compile time
var _ Ledger = (*MemoryLedger)(nil)
