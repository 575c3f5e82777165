package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Config 描述了 LoopGate 在启动阶段需要加载的核心配置。
type Config struct {
	Server  ServerConfig  `json:"server"`
	Storage StorageConfig `json:"storage"`
	LLM     LLMConfig     `json:"llm"`
	Search  SearchConfig  `json:"search"`
	Web3    Web3Config    `json:"web3"`
	Events  EventsConfig  `json:"events"`
	Gate    GateConfig    `json:"gate"`
	Logging LoggingConfig `json:"logging"`
	Runtime RuntimeConfig `json:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// StorageConfig 统一描述会话存储与审批台账的后端。
type StorageConfig struct {
	Conversations ConversationStoreConfig `json:"conversations"`
	Approvals     ApprovalLedgerConfig    `json:"approvals"`
}

// ConversationStoreConfig 选择会话存储驱动：memory 或 mysql。
type ConversationStoreConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// ApprovalLedgerConfig 选择审批台账驱动：memory 或 redis。
type ApprovalLedgerConfig struct {
	Driver string      `json:"driver"`
	Redis  RedisConfig `json:"redis"`
}

// RedisConfig 描述 Redis 台账的连接信息。TTLSeconds 为 0 表示不过期。
type RedisConfig struct {
	Address    string `json:"address"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	KeyPrefix  string `json:"key_prefix"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// LLMConfig 用于配置大模型推理的调用方式。
type LLMConfig struct {
	Provider       string       `json:"provider"`
	TimeoutSeconds int          `json:"timeout_seconds"`
	OpenAI         OpenAIConfig `json:"openai"`
}

// OpenAIConfig 描述通过 OpenAI 完成推理所需的信息。
type OpenAIConfig struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// SearchConfig 描述外部搜索服务的接入方式。
type SearchConfig struct {
	Tavily TavilyConfig `json:"tavily"`
}

// TavilyConfig 描述 Tavily Search API 的连接信息。
type TavilyConfig struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	MaxResults     int    `json:"max_results"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Web3Config 包含访问区块链节点所需的 RPC 地址。为空时不注册链上动作。
type Web3Config struct {
	RPCURL string `json:"rpc_url"`
}

// EventsConfig 选择审批事件通道：none 或 rabbitmq。
type EventsConfig struct {
	Driver   string         `json:"driver"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 事件通道的连接信息。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// GateConfig 指向审批路由策略与知识库文件。
type GateConfig struct {
	PolicyPath    string `json:"policy_path"`
	KnowledgePath string `json:"knowledge_path"`
	HistoryDepth  int    `json:"history_depth"`
}

// LoggingConfig 控制应用日志与审计日志。
type LoggingConfig struct {
	Level       string      `json:"level"`
	Format      string      `json:"format"`
	OutputPaths []string    `json:"output_paths"`
	Audit       AuditConfig `json:"audit"`
}

// AuditConfig 控制审批决定的审计日志输出。
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Storage.Conversations.Driver == "" {
		c.Storage.Conversations.Driver = "memory"
	}
	if c.Storage.Approvals.Driver == "" {
		c.Storage.Approvals.Driver = "memory"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "scripted"
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}

	if c.Gate.PolicyPath != "" && !filepath.IsAbs(c.Gate.PolicyPath) {
		c.Gate.PolicyPath = filepath.Join(baseDir, c.Gate.PolicyPath)
	}
	if c.Gate.KnowledgePath != "" && !filepath.IsAbs(c.Gate.KnowledgePath) {
		c.Gate.KnowledgePath = filepath.Join(baseDir, c.Gate.KnowledgePath)
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
}
