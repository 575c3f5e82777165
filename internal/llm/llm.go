package llm

import "context"

// Request 描述发送给大模型的一轮对话上下文。
type Request struct {
	Utterance string
	History   []HistoryEntry
	Knowledge []KnowledgeCard
}

// ProposedAction 是大模型建议执行的一个动作。仅作为推理结果短暂存在，
// 不会被落库。
type ProposedAction struct {
	Name string
	Args map[string]any
}

// Response 是大模型推理得到的结构化输出。Reply 与 Actions 至多一个有效：
// 若 Actions 非空则表示模型希望执行动作，Reply 作为直接回复被忽略。
type Response struct {
	Reply   string
	Actions []ProposedAction
}

// KnowledgeCard 表示提供给大模型的知识切片，帮助生成更加准确的回复。
type KnowledgeCard struct {
	Title   string
	Content string
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// HistoryEntry 描述了会话中的一条历史消息，用于为大模型提供上下文记忆。
type HistoryEntry struct {
	Role    string
	Content string
}
