package arbiter

// OutcomeType 表示一次仲裁的结果类型。
type OutcomeType string

const (
	// OutcomeDirectReply 表示本轮直接得到了可展示的回复文本。
	OutcomeDirectReply OutcomeType = "direct_reply"
	// OutcomeApprovalRequest 表示本轮挂起，等待人工决定。
	OutcomeApprovalRequest OutcomeType = "approval_request"
)

// ApprovalPrompt 是返回给调用方的审批请求描述。
type ApprovalPrompt struct {
	Token        string `json:"token"`
	ActionName   string `json:"action_name"`
	QuerySummary string `json:"query_summary"`
	PromptText   string `json:"prompt_text"`
}

// Outcome 是两个入口共同的返回结构。Type 为 OutcomeApprovalRequest 时
// Approval 非空，否则 Text 携带回复文本。
type Outcome struct {
	Type      OutcomeType     `json:"type"`
	SessionID string          `json:"session_id"`
	Text      string          `json:"text,omitempty"`
	Approval  *ApprovalPrompt `json:"approval,omitempty"`
}
