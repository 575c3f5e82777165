package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore 以内存方式保存会话记录，是默认实现，也用于测试。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Turn)}
}

// Ensure 实现 Store 接口。
func (m *MemoryStore) Ensure(_ context.Context, sessionID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if _, ok := m.sessions[sessionID]; ok {
		return sessionID, false, nil
	}
	m.sessions[sessionID] = nil
	return sessionID, true, nil
}

// Append 实现 Store 接口。
func (m *MemoryStore) Append(_ context.Context, sessionID string, turn Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if turn.CreatedAt == 0 {
		turn.CreatedAt = time.Now().Unix()
	}
	m.sessions[sessionID] = append(turns, turn)
	return nil
}

// History 实现 Store 接口。
func (m *MemoryStore) History(_ context.Context, sessionID string, limit int) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	turns, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	results := make([]Turn, len(turns))
	copy(results, turns)
	return results, nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

// ensure interface compliance at compile time
var _ Store = (*MemoryStore)(nil)
