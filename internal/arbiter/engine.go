package arbiter

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"LoopGate/internal/action"
	"LoopGate/internal/approval"
	"LoopGate/internal/conversation"
	xerrors "LoopGate/internal/errors"
	"LoopGate/internal/events"
	"LoopGate/internal/knowledge"
	"LoopGate/internal/llm"
	"LoopGate/pkg/logger"
)

// 固定回复文案。挂起与恢复两端共用，保持与前端展示一致。
const (
	fallbackReply     = "I'm not sure how to handle that request."
	cancelledReply    = "Action cancelled by user."
	autoReplyFormat   = "The result is: %s"
	executedFormat    = "Tool executed successfully: %s"
	failureFormat     = "Error executing action: %s"
	searchPromptShape = "I want to search for: '%s'. Do you approve?"
	genericPromptFmt  = "I want to run '%s' (%s). Do you approve?"
)

// defaultHistoryDepth 是调用大模型时携带的历史消息数量的默认值。
const defaultHistoryDepth = 10

// Engine 是人机协同仲裁的核心：接收用户输入，获取智能体的下一步提案，
// 分类后要么立即执行，要么登记审批并挂起；人工决定到达后从台账恢复
// 现场并完成收尾。两个入口之间 Engine 自身不保留任何请求状态，恢复
// 所需的全部上下文仅来自台账记录。
type Engine struct {
	llmClient     llm.Client
	classifier    *action.Classifier
	registry      *action.Registry
	ledger        approval.Ledger
	conversations conversation.Store
	publisher     events.Publisher
	knowledge     knowledge.Provider
	historyDepth  int
	llmTimeout    time.Duration
}

// Option 定义可选的 Engine 配置。
type Option func(*Engine)

// WithKnowledgeProvider 配置知识库，用于在推理前补充上下文。
func WithKnowledgeProvider(provider knowledge.Provider) Option {
	return func(e *Engine) {
		e.knowledge = provider
	}
}

// WithHistoryDepth 设置大模型调用时携带的历史消息数量。
func WithHistoryDepth(depth int) Option {
	return func(e *Engine) {
		e.historyDepth = depth
	}
}

// WithLLMTimeout 设置调用大模型的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout <= 0 {
			e.llmTimeout = 0
			return
		}
		e.llmTimeout = timeout
	}
}

// WithEventPublisher 配置审批事件发布器。
func WithEventPublisher(publisher events.Publisher) Option {
	return func(e *Engine) {
		if publisher != nil {
			e.publisher = publisher
		}
	}
}

// New 创建一个 Engine。
func New(llmClient llm.Client, classifier *action.Classifier, registry *action.Registry,
	ledger approval.Ledger, conversations conversation.Store, opts ...Option) *Engine {
	engine := &Engine{
		llmClient:     llmClient,
		classifier:    classifier,
		registry:      registry,
		ledger:        ledger,
		conversations: conversations,
		publisher:     events.NopPublisher{},
		historyDepth:  defaultHistoryDepth,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	if engine.historyDepth <= 0 {
		engine.historyDepth = defaultHistoryDepth
	}
	return engine
}

// HandleUtterance 处理一条用户输入。返回直接回复或审批请求描述；
// 审批请求本身不写入会话记录，最终的决定结果才会落账。
func (e *Engine) HandleUtterance(ctx context.Context, sessionID, text string) (*Outcome, error) {
	if e.llmClient == nil || e.registry == nil || e.classifier == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "仲裁引擎未完整初始化")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "用户输入不能为空")
	}

	sessionID, created, err := e.conversations.Ensure(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if created {
		logger.L().Debug("创建新会话", slog.String("session_id", sessionID))
	}

	history := e.loadHistory(ctx, sessionID)

	if err := e.conversations.Append(ctx, sessionID, conversation.Turn{
		Role:    conversation.RoleUser,
		Content: text,
	}); err != nil {
		return nil, err
	}

	response, err := e.infer(ctx, text, history)
	if err != nil {
		return nil, err
	}

	// 模型未提出动作，直接回复。
	if len(response.Actions) == 0 {
		return e.completeWithReply(ctx, sessionID, response.Reply)
	}

	// 模型可能一次提出多个动作，仅采纳第一个，其余丢弃。
	proposed := response.Actions[0]
	if len(response.Actions) > 1 {
		logger.L().Warn("模型提出多个动作，仅采纳第一个",
			slog.String("session_id", sessionID),
			slog.String("action", proposed.Name),
			slog.Int("dropped", len(response.Actions)-1),
		)
	}

	switch e.classifier.Classify(proposed.Name) {
	case action.RouteAuto:
		return e.executeNow(ctx, sessionID, proposed)
	case action.RouteGated:
		return e.fileApproval(ctx, sessionID, proposed)
	default:
		logger.L().Info("动作不在路由表中，回落到兜底回复",
			slog.String("session_id", sessionID),
			slog.String("action", proposed.Name),
		)
		return e.completeWithReply(ctx, sessionID, fallbackReply)
	}
}

// HandleDecision 处理一条人工决定。token 无效时返回 ErrUnknownToken，
// 且不产生任何会话变更。
func (e *Engine) HandleDecision(ctx context.Context, token string, approved bool) (*Outcome, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "token 不能为空")
	}

	request, err := e.ledger.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	decision := "denied"
	eventType := events.TypeDenied
	if approved {
		decision = "approved"
		eventType = events.TypeApproved
	}
	logger.Audit().Info("审批决定",
		slog.String("token", request.Token),
		slog.String("session_id", request.SessionID),
		slog.String("action", request.Action),
		slog.String("decision", decision),
	)
	e.publish(ctx, events.NewEvent(eventType, request.Token, request.SessionID, request.Action))

	if !approved {
		return e.completeWithReply(ctx, request.SessionID, cancelledReply)
	}

	result, execErr := e.registry.Execute(ctx, request.Action, request.Args)
	if execErr != nil {
		return e.completeWithReply(ctx, request.SessionID, formatFailure(execErr))
	}

	reply := fmt.Sprintf(executedFormat, result)
	if request.Action == "search" {
		// 搜索结果已经是排版后的文本，直接展示。
		reply = result
	}
	return e.completeWithReply(ctx, request.SessionID, reply)
}

// executeNow 处理自动路径：同步执行并把结果转成回复。执行失败同样以
// 对话内容的形式呈现，不向上抛出。
func (e *Engine) executeNow(ctx context.Context, sessionID string, proposed llm.ProposedAction) (*Outcome, error) {
	result, err := e.registry.Execute(ctx, proposed.Name, proposed.Args)
	if err != nil {
		logger.L().Warn("自动执行失败",
			slog.String("session_id", sessionID),
			slog.String("action", proposed.Name),
			slog.String("code", string(xerrors.CodeOf(err))),
			slog.Any("error", err),
		)
		return e.completeWithReply(ctx, sessionID, formatFailure(err))
	}
	return e.completeWithReply(ctx, sessionID, fmt.Sprintf(autoReplyFormat, result))
}

// fileApproval 处理审批路径：登记台账并立即返回，状态机在此挂起。
func (e *Engine) fileApproval(ctx context.Context, sessionID string, proposed llm.ProposedAction) (*Outcome, error) {
	summary := querySummary(proposed)
	prompt := fmt.Sprintf(genericPromptFmt, proposed.Name, summary)
	if proposed.Name == "search" {
		prompt = fmt.Sprintf(searchPromptShape, summary)
	}

	token, err := e.ledger.File(ctx, sessionID, proposed.Name, proposed.Args, prompt)
	if err != nil {
		return nil, err
	}

	logger.L().Info("登记审批请求",
		slog.String("session_id", sessionID),
		slog.String("action", proposed.Name),
		slog.String("token", token),
	)
	e.publish(ctx, events.NewEvent(events.TypeFiled, token, sessionID, proposed.Name))

	return &Outcome{
		Type:      OutcomeApprovalRequest,
		SessionID: sessionID,
		Approval: &ApprovalPrompt{
			Token:        token,
			ActionName:   proposed.Name,
			QuerySummary: summary,
			PromptText:   prompt,
		},
	}, nil
}

// completeWithReply 把回复写入会话并构造最终返回。
func (e *Engine) completeWithReply(ctx context.Context, sessionID, reply string) (*Outcome, error) {
	if err := e.conversations.Append(ctx, sessionID, conversation.Turn{
		Role:    conversation.RoleAgent,
		Content: reply,
	}); err != nil {
		return nil, err
	}
	return &Outcome{
		Type:      OutcomeDirectReply,
		SessionID: sessionID,
		Text:      reply,
	}, nil
}

func (e *Engine) infer(ctx context.Context, text string, history []llm.HistoryEntry) (*llm.Response, error) {
	llmCtx := ctx
	if e.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, e.llmTimeout)
		defer cancel()
	}

	response, err := e.llmClient.Generate(llmCtx, llm.Request{
		Utterance: text,
		History:   history,
		Knowledge: e.collectKnowledge(text),
	})
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return nil, xerrors.Wrap(xerrors.CodeTimeout, err, "大模型推理超时")
		}
		return nil, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "大模型推理失败")
	}
	return response, nil
}

func (e *Engine) loadHistory(ctx context.Context, sessionID string) []llm.HistoryEntry {
	turns, err := e.conversations.History(ctx, sessionID, e.historyDepth)
	if err != nil {
		logger.L().Warn("加载会话历史失败", slog.String("session_id", sessionID), slog.Any("error", err))
		return nil
	}
	history := make([]llm.HistoryEntry, 0, len(turns))
	for _, turn := range turns {
		history = append(history, llm.HistoryEntry{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	return history
}

func (e *Engine) collectKnowledge(utterance string) []llm.KnowledgeCard {
	if e.knowledge == nil {
		return nil
	}
	snippets := e.knowledge.Query(utterance)
	if len(snippets) == 0 {
		return nil
	}
	cards := make([]llm.KnowledgeCard, 0, len(snippets))
	for _, snippet := range snippets {
		if strings.TrimSpace(snippet.Title) == "" && strings.TrimSpace(snippet.Content) == "" {
			continue
		}
		cards = append(cards, llm.KnowledgeCard{
			Title:   snippet.Title,
			Content: snippet.Content,
		})
	}
	return cards
}

// publish 发布审批事件。事件通道故障只记日志，不影响仲裁结果。
func (e *Engine) publish(ctx context.Context, event events.Event) {
	if err := e.publisher.Publish(ctx, event); err != nil {
		logger.L().Warn("发布审批事件失败",
			slog.String("token", event.Token),
			slog.String("type", string(event.Type)),
			slog.Any("error", err),
		)
	}
}

// querySummary 提取供人阅读的动作摘要。
func querySummary(proposed llm.ProposedAction) string {
	if query, ok := proposed.Args["query"].(string); ok && strings.TrimSpace(query) != "" {
		return strings.TrimSpace(query)
	}
	if address, ok := proposed.Args["address"].(string); ok && strings.TrimSpace(address) != "" {
		return strings.TrimSpace(address)
	}
	if len(proposed.Args) == 0 {
		return proposed.Name
	}
	parts := make([]string, 0, len(proposed.Args))
	for key, value := range proposed.Args {
		parts = append(parts, fmt.Sprintf("%s=%v", key, value))
	}
	return strings.Join(parts, " ")
}

// formatFailure 把执行失败转成面向用户的回复文本。
func formatFailure(err error) string {
	if e, ok := xerrors.From(err); ok {
		return fmt.Sprintf(failureFormat, e.Message())
	}
	return fmt.Sprintf(failureFormat, err.Error())
}
