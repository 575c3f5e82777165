package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"LoopGate/internal/action"
	"LoopGate/internal/api"
	"LoopGate/internal/approval"
	"LoopGate/internal/arbiter"
	"LoopGate/internal/config"
	"LoopGate/internal/conversation"
	"LoopGate/internal/events"
	"LoopGate/internal/knowledge"
	"LoopGate/internal/llm"
	"LoopGate/internal/llm/openai"
	"LoopGate/internal/llm/scripted"
	"LoopGate/internal/search"
	"LoopGate/internal/web3"
	"LoopGate/internal/web3/ethereum"
	"LoopGate/pkg/logger"
)

// main 是 loopgated 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("loopgated 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("LOOPGATE_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "loopgate.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// 初始化会话存储。
	var conversations conversation.Store
	switch cfg.Storage.Conversations.Driver {
	case "", "memory":
		conversations = conversation.NewMemoryStore()
	case "mysql":
		store, err := conversation.NewMySQLStore(cfg.Storage.Conversations.DSN)
		if err != nil {
			return err
		}
		conversations = store
	default:
		return fmt.Errorf("未知的会话存储驱动: %s", cfg.Storage.Conversations.Driver)
	}
	defer func() { _ = conversations.Close() }()

	// 初始化审批台账。
	var ledger approval.Ledger
	switch cfg.Storage.Approvals.Driver {
	case "", "memory":
		ledger = approval.NewMemoryLedger()
	case "redis":
		redisLedger, err := approval.NewRedisLedger(approval.RedisLedgerConfig{
			Address:   cfg.Storage.Approvals.Redis.Address,
			Password:  cfg.Storage.Approvals.Redis.Password,
			DB:        cfg.Storage.Approvals.Redis.DB,
			KeyPrefix: cfg.Storage.Approvals.Redis.KeyPrefix,
			TTL:       time.Duration(cfg.Storage.Approvals.Redis.TTLSeconds) * time.Second,
		})
		if err != nil {
			return err
		}
		ledger = redisLedger
	default:
		return fmt.Errorf("未知的审批台账驱动: %s", cfg.Storage.Approvals.Driver)
	}
	defer func() { _ = ledger.Close() }()

	// 初始化审批事件通道。
	var publisher events.Publisher = events.NopPublisher{}
	switch cfg.Events.Driver {
	case "", "none":
	case "rabbitmq":
		rabbit, err := events.NewRabbitMQPublisher(events.RabbitMQConfig{
			URL:        cfg.Events.RabbitMQ.URL,
			Queue:      cfg.Events.RabbitMQ.Queue,
			Durable:    cfg.Events.RabbitMQ.Durable,
			AutoDelete: cfg.Events.RabbitMQ.AutoDelete,
		})
		if err != nil {
			return err
		}
		publisher = rabbit
	default:
		return fmt.Errorf("未知的事件通道驱动: %s", cfg.Events.Driver)
	}
	defer func() { _ = publisher.Close() }()

	// 注册动作集合。
	registry, chainClient, err := buildRegistry(ctx, cfg)
	if chainClient != nil {
		defer chainClient.Close()
	}
	if err != nil {
		return err
	}

	// 加载审批路由策略。
	routes, err := action.LoadPolicy(cfg.Gate.PolicyPath)
	if err != nil {
		return err
	}
	classifier, err := action.NewClassifier(routes)
	if err != nil {
		return err
	}

	// 初始化大模型客户端。
	llmClient, err := createLLMClient(cfg, registry)
	if err != nil {
		return err
	}

	opts := []arbiter.Option{
		arbiter.WithEventPublisher(publisher),
		arbiter.WithHistoryDepth(cfg.Gate.HistoryDepth),
	}
	if cfg.LLM.TimeoutSeconds > 0 {
		opts = append(opts, arbiter.WithLLMTimeout(time.Duration(cfg.LLM.TimeoutSeconds)*time.Second))
	}
	if cfg.Gate.KnowledgePath != "" {
		provider, err := knowledge.LoadStaticProvider(cfg.Gate.KnowledgePath, 3)
		if err != nil {
			return err
		}
		opts = append(opts, arbiter.WithKnowledgeProvider(provider))
	}

	engine := arbiter.New(llmClient, classifier, registry, ledger, conversations, opts...)

	logger.L().Info("loopgated 启动", "address", cfg.Server.Address)
	return api.NewServer(cfg.Server.Address, engine).Start(ctx)
}

// buildRegistry 注册全部动作。链上动作仅在配置了 RPC 地址时接入真实客户端，
// 返回的 web3.Client 由调用方负责关闭。
func buildRegistry(ctx context.Context, cfg *config.Config) (*action.Registry, web3.Client, error) {
	registry := action.NewRegistry()

	if err := registry.Register(action.NewMultiplyAction()); err != nil {
		return nil, nil, err
	}

	var searchProvider search.Provider
	if cfg.Search.Tavily.APIKey != "" {
		tavily, err := search.NewTavilyClient(search.TavilyConfig{
			APIKey:     cfg.Search.Tavily.APIKey,
			BaseURL:    cfg.Search.Tavily.BaseURL,
			MaxResults: cfg.Search.Tavily.MaxResults,
			Timeout:    time.Duration(cfg.Search.Tavily.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		searchProvider = tavily
	}
	if err := registry.Register(action.NewSearchAction(searchProvider)); err != nil {
		return nil, nil, err
	}

	var chainClient web3.Client
	if cfg.Web3.RPCURL != "" {
		client, err := ethereum.NewClient(ctx, ethereum.Config{RPCURL: cfg.Web3.RPCURL})
		if err != nil {
			return nil, nil, err
		}
		chainClient = client
	}
	if err := registry.Register(action.NewChainLookupAction(chainClient)); err != nil {
		return nil, chainClient, err
	}

	return registry, chainClient, nil
}

// createLLMClient 根据配置选择推理实现。
func createLLMClient(cfg *config.Config, registry *action.Registry) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "scripted":
		return scripted.NewClient(), nil
	case "openai":
		tools := make([]openai.ToolSpec, 0)
		for _, a := range registry.All() {
			tools = append(tools, openai.ToolSpec{
				Name:        a.Name(),
				Description: a.Description(),
				Parameters:  a.Parameters(),
			})
		}
		return openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.OpenAI.APIKey,
			BaseURL:     cfg.LLM.OpenAI.BaseURL,
			Model:       cfg.LLM.OpenAI.Model,
			Temperature: cfg.LLM.OpenAI.Temperature,
			MaxTokens:   cfg.LLM.OpenAI.MaxTokens,
			Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		}, tools)
	default:
		return nil, fmt.Errorf("未知的大模型提供方: %s", cfg.LLM.Provider)
	}
}
