package api

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"net/http"
	"strings"
	"time"

	"LoopGate/internal/approval"
	"LoopGate/internal/arbiter"
	xerrors "LoopGate/internal/errors"
	"LoopGate/internal/observability/metrics"
)

// Server 负责暴露 REST 接口：提交用户输入与提交审批决定。
type Server struct {
	addr   string
	engine *arbiter.Engine
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, engine *arbiter.Engine) *Server {
	return &Server{addr: addr, engine: engine}
}

// ChatRequest 是提交用户输入的请求体。SessionID 为空表示新建会话。
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ApproveRequest 是提交审批决定的请求体。
type ApproveRequest struct {
	Token    string `json:"token"`
	Approved bool   `json:"approved"`
}

// ChatResponse 是两个接口共同的响应结构。
type ChatResponse struct {
	Type            string                  `json:"type"`
	SessionID       string                  `json:"session_id"`
	Message         string                  `json:"message,omitempty"`
	ApprovalRequest *arbiter.ApprovalPrompt `json:"approval_request,omitempty"`
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 启动服务器并监听关闭信号。
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Routes 返回服务的全部路由。
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleFrontend)
	mux.HandleFunc("/api/v1/chat", instrument("chat", s.handleChat))
	mux.HandleFunc("/api/v1/approve", instrument("approve", s.handleApprove))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// handleChat 处理用户输入，返回直接回复或审批请求。
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.engine == nil {
		http.Error(w, "仲裁引擎未初始化", http.StatusServiceUnavailable)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message 不能为空", http.StatusBadRequest)
		return
	}

	outcome, err := s.engine.HandleUtterance(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeOutcome(w, outcome)
}

// handleApprove 处理人工审批决定。
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.engine == nil {
		http.Error(w, "仲裁引擎未初始化", http.StatusServiceUnavailable)
		return
	}

	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		http.Error(w, "token 不能为空", http.StatusBadRequest)
		return
	}

	outcome, err := s.engine.HandleDecision(r.Context(), req.Token, req.Approved)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeOutcome(w, outcome)
}

func writeOutcome(w http.ResponseWriter, outcome *arbiter.Outcome) {
	resp := ChatResponse{
		Type:      string(outcome.Type),
		SessionID: outcome.SessionID,
	}
	switch outcome.Type {
	case arbiter.OutcomeApprovalRequest:
		resp.ApprovalRequest = outcome.Approval
	default:
		resp.Message = outcome.Text
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// writeEngineError 把引擎错误映射为 HTTP 状态码。
func writeEngineError(w http.ResponseWriter, err error) {
	switch xerrors.CodeOf(err) {
	case xerrors.CodeUnknownToken:
		http.Error(w, approval.ErrUnknownToken.Message(), http.StatusNotFound)
	case xerrors.CodeInvalidArgument:
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// instrument 记录每个业务接口的请求指标。
func instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
