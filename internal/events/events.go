package events

import (
	"context"
	"time"
)

// Type 表示审批生命周期事件的类型。
type Type string

const (
	TypeFiled    Type = "filed"
	TypeApproved Type = "approved"
	TypeDenied   Type = "denied"
)

// Event 描述一次审批生命周期变化，供外部审批面板与审计消费方订阅。
// 事件只携带标识信息，不包含动作参数。
type Event struct {
	Type       Type   `json:"type"`
	Token      string `json:"token"`
	SessionID  string `json:"session_id"`
	Action     string `json:"action"`
	OccurredAt int64  `json:"occurred_at"`
}

// Publisher 负责对外发布审批事件。发布失败不得影响审批流程本身。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NewEvent 构造一个带时间戳的事件。
func NewEvent(eventType Type, token, sessionID, action string) Event {
	return Event{
		Type:       eventType,
		Token:      token,
		SessionID:  sessionID,
		Action:     action,
		OccurredAt: time.Now().Unix(),
	}
}

// NopPublisher 丢弃全部事件，是未启用事件通道时的默认实现。
type NopPublisher struct{}

// Publish 实现 Publisher 接口。
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close 实现 Publisher 接口。
func (NopPublisher) Close() error { return nil }

var _ Publisher = NopPublisher{}
