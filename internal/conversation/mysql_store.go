package conversation

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"LoopGate/deploy/migrations"
	xerrors "LoopGate/internal/errors"
)

// MySQLStore 使用 MySQL 保存会话记录。自增主键保证同一会话内消息的
// 写入顺序在读取时被还原。
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore 创建一个新的 MySQLStore。
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}

	store := &MySQLStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MySQLStore) initSchema() error {
	statements, err := migrations.Statements()
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取迁移文件失败")
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "执行迁移语句失败")
		}
	}
	return nil
}

// Ensure 实现 Store 接口。
func (s *MySQLStore) Ensure(ctx context.Context, sessionID string) (string, bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	const stmt = `INSERT INTO conversation_sessions (id, created_at) VALUES (?, ?)`
	_, err := s.db.ExecContext(ctx, stmt, sessionID, time.Now().Unix())
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return sessionID, false, nil
		}
		return "", false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建会话失败")
	}
	return sessionID, true, nil
}

// Append 实现 Store 接口。
func (s *MySQLStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	exists, err := s.sessionExists(ctx, sessionID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrSessionNotFound
	}

	if turn.CreatedAt == 0 {
		turn.CreatedAt = time.Now().Unix()
	}
	const stmt = `INSERT INTO conversation_turns (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, stmt, sessionID, string(turn.Role), turn.Content, turn.CreatedAt); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入会话消息失败")
	}
	return nil
}

// History 实现 Store 接口。
func (s *MySQLStore) History(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	exists, err := s.sessionExists(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrSessionNotFound
	}

	query := `SELECT role, content, created_at FROM conversation_turns WHERE session_id = ? ORDER BY seq ASC`
	args := []any{sessionID}
	if limit > 0 {
		// 取最近 limit 条，但仍按写入顺序返回。
		query = `SELECT role, content, created_at FROM (
            SELECT seq, role, content, created_at FROM conversation_turns
            WHERE session_id = ? ORDER BY seq DESC LIMIT ?
        ) latest ORDER BY seq ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询会话消息失败")
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var turn Turn
		var role string
		if err := rows.Scan(&role, &turn.Content, &turn.CreatedAt); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析会话消息失败")
		}
		turn.Role = Role(role)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历会话消息失败")
	}
	return turns, nil
}

// Close 关闭数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *MySQLStore) sessionExists(ctx context.Context, sessionID string) (bool, error) {
	const stmt = `SELECT 1 FROM conversation_sessions WHERE id = ?`
	var one int
	err := s.db.QueryRowContext(ctx, stmt, sessionID).Scan(&one)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询会话失败")
	}
	return true, nil
}

var _ Store = (*MySQLStore)(nil)
