package arbiter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"LoopGate/internal/action"
	"LoopGate/internal/approval"
	"LoopGate/internal/conversation"
	xerrors "LoopGate/internal/errors"
	"LoopGate/internal/events"
	"LoopGate/internal/llm"
	"LoopGate/internal/search"
)

type stubLLM struct {
	resp *llm.Response
	err  error
	wait time.Duration
}

func (s *stubLLM) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

type stubSearch struct {
	results []search.Result
	err     error
}

func (s *stubSearch) Search(context.Context, string) ([]search.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newTestEngine(t *testing.T, llmClient llm.Client, provider search.Provider, opts ...Option) (*Engine, conversation.Store, approval.Ledger) {
	t.Helper()

	registry := action.NewRegistry()
	if err := registry.Register(action.NewMultiplyAction()); err != nil {
		t.Fatalf("register multiply: %v", err)
	}
	if err := registry.Register(action.NewSearchAction(provider)); err != nil {
		t.Fatalf("register search: %v", err)
	}

	classifier, err := action.NewClassifier(action.DefaultRoutes())
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}

	store := conversation.NewMemoryStore()
	ledger := approval.NewMemoryLedger()
	engine := New(llmClient, classifier, registry, ledger, store, opts...)
	return engine, store, ledger
}

func transcript(t *testing.T, store conversation.Store, sessionID string) []conversation.Turn {
	t.Helper()
	turns, err := store.History(context.Background(), sessionID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	return turns
}

func TestHandleUtteranceAutoAction(t *testing.T) {
	llmClient := &stubLLM{resp: &llm.Response{Actions: []llm.ProposedAction{{
		Name: "multiply",
		Args: map[string]any{"first_number": 9, "second_number": 8},
	}}}}
	engine, store, _ := newTestEngine(t, llmClient, nil)

	outcome, err := engine.HandleUtterance(context.Background(), "", "what is 9 times 8?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Type != OutcomeDirectReply {
		t.Fatalf("unexpected outcome type: %s", outcome.Type)
	}
	if outcome.Text != "The result is: 72" {
		t.Fatalf("unexpected reply: %q", outcome.Text)
	}

	turns := transcript(t, store, outcome.SessionID)
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != conversation.RoleUser || turns[0].Content != "what is 9 times 8?" {
		t.Fatalf("unexpected first turn: %+v", turns[0])
	}
	if turns[1].Role != conversation.RoleAgent || turns[1].Content != "The result is: 72" {
		t.Fatalf("unexpected second turn: %+v", turns[1])
	}
}

func TestHandleUtteranceGatedActionSuspends(t *testing.T) {
	llmClient := &stubLLM{resp: &llm.Response{Actions: []llm.ProposedAction{{
		Name: "search",
		Args: map[string]any{"query": "today's news"},
	}}}}
	publisher := &recordingPublisher{}
	engine, store, _ := newTestEngine(t, llmClient, &stubSearch{}, WithEventPublisher(publisher))

	outcome, err := engine.HandleUtterance(context.Background(), "sess-1", "search for today's news")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Type != OutcomeApprovalRequest {
		t.Fatalf("unexpected outcome type: %s", outcome.Type)
	}
	if outcome.Approval == nil || outcome.Approval.Token == "" {
		t.Fatalf("expected an approval token, got %+v", outcome.Approval)
	}
	want := "I want to search for: 'today's news'. Do you approve?"
	if outcome.Approval.PromptText != want {
		t.Fatalf("unexpected prompt: %q", outcome.Approval.PromptText)
	}

	// 挂起本身不写入会话，只有用户输入落账。
	turns := transcript(t, store, "sess-1")
	if len(turns) != 1 || turns[0].Role != conversation.RoleUser {
		t.Fatalf("unexpected transcript while suspended: %+v", turns)
	}

	if len(publisher.events) != 1 || publisher.events[0].Type != events.TypeFiled {
		t.Fatalf("unexpected events: %+v", publisher.events)
	}
}

func TestHandleDecisionApprovedRunsSearch(t *testing.T) {
	llmClient := &stubLLM{resp: &llm.Response{Actions: []llm.ProposedAction{{
		Name: "search",
		Args: map[string]any{"query": "go releases"},
	}}}}
	provider := &stubSearch{results: []search.Result{
		{Title: "Go 1.24 released", Content: "details", URL: "https://go.dev"},
	}}
	publisher := &recordingPublisher{}
	engine, store, _ := newTestEngine(t, llmClient, provider, WithEventPublisher(publisher))

	outcome, err := engine.HandleUtterance(context.Background(), "sess-1", "search for go releases")
	if err != nil {
		t.Fatalf("utterance: %v", err)
	}

	final, err := engine.HandleDecision(context.Background(), outcome.Approval.Token, true)
	if err != nil {
		t.Fatalf("decision: %v", err)
	}
	if final.Type != OutcomeDirectReply {
		t.Fatalf("unexpected outcome type: %s", final.Type)
	}
	if !strings.HasPrefix(final.Text, "Search results:") {
		t.Fatalf("unexpected reply: %q", final.Text)
	}
	if !strings.Contains(final.Text, "Go 1.24 released") {
		t.Fatalf("reply is missing the search hit: %q", final.Text)
	}

	turns := transcript(t, store, "sess-1")
	if len(turns) != 2 || turns[1].Role != conversation.RoleAgent {
		t.Fatalf("unexpected transcript after approval: %+v", turns)
	}
	if len(publisher.events) != 2 || publisher.events[1].Type != events.TypeApproved {
		t.Fatalf("unexpected events: %+v", publisher.events)
	}
}

func TestHandleDecisionDenied(t *testing.T) {
	llmClient := &stubLLM{resp: &llm.Response{Actions: []llm.ProposedAction{{
		Name: "search",
		Args: map[string]any{"query": "secrets"},
	}}}}
	publisher := &recordingPublisher{}
	engine, store, _ := newTestEngine(t, llmClient, &stubSearch{}, WithEventPublisher(publisher))

	outcome, err := engine.HandleUtterance(context.Background(), "sess-1", "search for secrets")
	if err != nil {
		t.Fatalf("utterance: %v", err)
	}

	final, err := engine.HandleDecision(context.Background(), outcome.Approval.Token, false)
	if err != nil {
		t.Fatalf("decision: %v", err)
	}
	if final.Text != "Action cancelled by user." {
		t.Fatalf("unexpected reply: %q", final.Text)
	}

	// 拒绝后 token 即被回收。
	_, err = engine.HandleDecision(context.Background(), outcome.Approval.Token, false)
	if !errors.Is(err, approval.ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken on reuse, got %v", err)
	}

	turns := transcript(t, store, "sess-1")
	if len(turns) != 2 || turns[1].Content != "Action cancelled by user." {
		t.Fatalf("unexpected transcript after denial: %+v", turns)
	}
	if len(publisher.events) != 2 || publisher.events[1].Type != events.TypeDenied {
		t.Fatalf("unexpected events: %+v", publisher.events)
	}
}

func TestHandleDecisionUnknownToken(t *testing.T) {
	engine, store, _ := newTestEngine(t, &stubLLM{resp: &llm.Response{Reply: "hi"}}, nil)

	_, err := engine.HandleDecision(context.Background(), "never-issued", true)
	if !errors.Is(err, approval.ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}

	// 无效 token 不产生任何会话变更。
	if _, err := store.History(context.Background(), "never-issued", 0); !errors.Is(err, conversation.ErrSessionNotFound) {
		t.Fatalf("expected no session to exist, got %v", err)
	}
}

func TestHandleUtteranceUnknownActionFallsBack(t *testing.T) {
	llmClient := &stubLLM{resp: &llm.Response{Actions: []llm.ProposedAction{{
		Name: "teleport",
		Args: map[string]any{"destination": "moon"},
	}}}}
	engine, store, _ := newTestEngine(t, llmClient, nil)

	outcome, err := engine.HandleUtterance(context.Background(), "sess-1", "teleport me to the moon")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Text != "I'm not sure how to handle that request." {
		t.Fatalf("unexpected reply: %q", outcome.Text)
	}

	turns := transcript(t, store, "sess-1")
	if len(turns) != 2 {
		t.Fatalf("expected both turns recorded, got %+v", turns)
	}
}

func TestHandleUtteranceDirectReply(t *testing.T) {
	llmClient := &stubLLM{resp: &llm.Response{Reply: "hello there"}}
	engine, _, _ := newTestEngine(t, llmClient, nil)

	outcome, err := engine.HandleUtterance(context.Background(), "", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Type != OutcomeDirectReply || outcome.Text != "hello there" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestHandleUtteranceFirstActionWins(t *testing.T) {
	llmClient := &stubLLM{resp: &llm.Response{Actions: []llm.ProposedAction{
		{Name: "multiply", Args: map[string]any{"first_number": 2, "second_number": 3}},
		{Name: "search", Args: map[string]any{"query": "ignored"}},
	}}}
	engine, _, ledger := newTestEngine(t, llmClient, &stubSearch{})

	outcome, err := engine.HandleUtterance(context.Background(), "sess-1", "do both")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Text != "The result is: 6" {
		t.Fatalf("expected the first action to run, got %q", outcome.Text)
	}

	// 第二个动作不应产生审批记录。
	if _, err := ledger.Resolve(context.Background(), "any"); !errors.Is(err, approval.ErrUnknownToken) {
		t.Fatalf("expected empty ledger, got %v", err)
	}
}

func TestHandleUtteranceAutoFailureBecomesReply(t *testing.T) {
	llmClient := &stubLLM{resp: &llm.Response{Actions: []llm.ProposedAction{{
		Name: "multiply",
		Args: map[string]any{"first_number": 2},
	}}}}
	engine, store, _ := newTestEngine(t, llmClient, nil)

	outcome, err := engine.HandleUtterance(context.Background(), "sess-1", "multiply 2 by nothing")
	if err != nil {
		t.Fatalf("execution failure must not surface as an error: %v", err)
	}
	if !strings.HasPrefix(outcome.Text, "Error executing action: ") {
		t.Fatalf("unexpected reply: %q", outcome.Text)
	}

	turns := transcript(t, store, "sess-1")
	if len(turns) != 2 {
		t.Fatalf("failure reply must be recorded, got %+v", turns)
	}
}

func TestHandleDecisionExecutionFailureBecomesReply(t *testing.T) {
	llmClient := &stubLLM{resp: &llm.Response{Actions: []llm.ProposedAction{{
		Name: "search",
		Args: map[string]any{"query": "flaky"},
	}}}}
	provider := &stubSearch{err: errors.New("upstream down")}
	engine, _, _ := newTestEngine(t, llmClient, provider)

	outcome, err := engine.HandleUtterance(context.Background(), "sess-1", "search for flaky")
	if err != nil {
		t.Fatalf("utterance: %v", err)
	}

	final, err := engine.HandleDecision(context.Background(), outcome.Approval.Token, true)
	if err != nil {
		t.Fatalf("execution failure must not surface as an error: %v", err)
	}
	if !strings.HasPrefix(final.Text, "Error executing action: ") {
		t.Fatalf("unexpected reply: %q", final.Text)
	}
}

func TestHandleUtteranceEmptyInput(t *testing.T) {
	engine, _, _ := newTestEngine(t, &stubLLM{resp: &llm.Response{Reply: "hi"}}, nil)

	_, err := engine.HandleUtterance(context.Background(), "sess-1", "   ")
	if err == nil {
		t.Fatal("expected error")
	}
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
	}
}

func TestHandleUtteranceLLMTimeout(t *testing.T) {
	llmClient := &stubLLM{wait: 50 * time.Millisecond}
	engine, _, _ := newTestEngine(t, llmClient, nil, WithLLMTimeout(10*time.Millisecond))

	_, err := engine.HandleUtterance(context.Background(), "sess-1", "slow question")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline exceeded, got %v", err)
	}
	if xerrors.CodeOf(err) != xerrors.CodeTimeout {
		t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
	}
}

func TestHandleUtteranceCarriesHistory(t *testing.T) {
	var captured llm.Request
	llmClient := &captureLLM{resp: &llm.Response{Reply: "ok"}, captured: &captured}
	engine, _, _ := newTestEngine(t, llmClient, nil)

	first, err := engine.HandleUtterance(context.Background(), "", "first message")
	if err != nil {
		t.Fatalf("first utterance: %v", err)
	}
	if _, err := engine.HandleUtterance(context.Background(), first.SessionID, "second message"); err != nil {
		t.Fatalf("second utterance: %v", err)
	}

	// 第二轮应携带第一轮的完整往返，但不含当前输入。
	if len(captured.History) != 2 {
		t.Fatalf("expected 2 history entries, got %+v", captured.History)
	}
	if captured.History[0].Content != "first message" || captured.History[1].Content != "ok" {
		t.Fatalf("unexpected history: %+v", captured.History)
	}
	if captured.Utterance != "second message" {
		t.Fatalf("unexpected utterance: %q", captured.Utterance)
	}
}

type captureLLM struct {
	resp     *llm.Response
	captured *llm.Request
}

func (c *captureLLM) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	*c.captured = req
	return c.resp, nil
}
