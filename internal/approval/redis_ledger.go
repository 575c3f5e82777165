package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	xerrors "LoopGate/internal/errors"
)

// RedisLedgerConfig 描述 Redis 台账的连接参数。TTL 大于零时，未决审批
// 在超时后自动过期；过期的 token 与从未登记的 token 对调用方不可区分，
// 一律返回 ErrUnknownToken。
type RedisLedgerConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisLedger 使用 Redis 保存审批台账。GETDEL 保证取出与删除原子完成。
type RedisLedger struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLedger 创建 Redis 台账实例。
func NewRedisLedger(cfg RedisLedgerConfig) (*RedisLedger, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "loopgate:approvals:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &RedisLedger{client: client, prefix: prefix, ttl: cfg.TTL}, nil
}

// File 实现 Ledger 接口。
func (r *RedisLedger) File(ctx context.Context, sessionID, actionName string, args map[string]any, rationale string) (string, error) {
	token := uuid.NewString()
	request := &Request{
		Token:     token,
		SessionID: sessionID,
		Action:    actionName,
		Args:      args,
		Rationale: rationale,
		FiledAt:   time.Now().Unix(),
	}

	encoded, err := json.Marshal(request)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化审批记录失败")
	}
	if err := r.client.Set(ctx, r.prefix+token, encoded, r.ttl).Err(); err != nil {
		return "", xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入审批记录失败")
	}
	return token, nil
}

// Resolve 实现 Ledger 接口。
func (r *RedisLedger) Resolve(ctx context.Context, token string) (*Request, error) {
	encoded, err := r.client.GetDel(ctx, r.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUnknownToken
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取审批记录失败")
	}

	var request Request
	if err := json.Unmarshal([]byte(encoded), &request); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析审批记录失败")
	}
	return &request, nil
}

// Close 关闭 Redis 连接。
func (r *RedisLedger) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

var _ Ledger = (*RedisLedger)(nil)
