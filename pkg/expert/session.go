package expert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	sageerr "github.com/jllopis/sage/pkg/errors"
	"github.com/jllopis/sage/pkg/manifest"
	sagemcp "github.com/jllopis/sage/pkg/mcp"
	"github.com/jllopis/sage/pkg/planner"
	"github.com/jllopis/sage/pkg/telemetry"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// Query modes accepted by the expert entry point.
const (
	ModeDiscover = "discover"
	ModeExecute  = "execute"
	ModeExplain  = "explain"
)

// State tracks the session lifecycle. Loading or Connected failures
// terminate the session before Serving is ever entered.
type State string

const (
	StateUnstarted    State = "unstarted"
	StateLoading      State = "loading"
	StateConnected    State = "connected"
	StateServing      State = "serving"
	StateShuttingDown State = "shutting-down"
	StateStopped      State = "stopped"
)

// QueryPlanner is the slice of the planner the session needs.
type QueryPlanner interface {
	Plan(ctx context.Context, guidance string, tools []manifest.Tool, query string) (*planner.Plan, error)
}

// CallResult is the outcome of one planned call: result on success, error on
// failure. A failed call never aborts the calls after it.
type CallResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ExecuteResponse answers an execute-mode query.
type ExecuteResponse struct {
	Explanation string       `json:"explanation"`
	Results     []CallResult `json:"results"`
}

// DiscoverResponse answers a discover-mode query with a fresh enumeration.
type DiscoverResponse struct {
	ToolCount     int                 `json:"toolCount"`
	ResourceCount int                 `json:"resourceCount"`
	PromptCount   int                 `json:"promptCount"`
	Tools         []manifest.Tool     `json:"tools"`
	Resources     []manifest.Resource `json:"resources"`
	Prompts       []manifest.Prompt   `json:"prompts"`
}

// ExplainResponse answers an explain-mode query.
type ExplainResponse struct {
	Description string `json:"description"`
	Guidance    string `json:"guidance"`
	Tools       string `json:"tools"`
	Usage       string `json:"usage"`
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDialer overrides how the wrapped server is reached.
func WithDialer(dial Dialer) SessionOption {
	return func(s *Session) {
		s.dial = dial
	}
}

// WithAudit records coordination passes into the given store.
func WithAudit(store planner.AuditStore) SessionOption {
	return func(s *Session) {
		s.audit = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMetrics records per-query and per-call metrics.
func WithMetrics(metrics *telemetry.SessionMetrics) SessionOption {
	return func(s *Session) {
		s.metrics = metrics
	}
}

// WithServeIO overrides the serving transport's streams. Tests pipe them.
func WithServeIO(in io.Reader, out io.Writer) SessionOption {
	return func(s *Session) {
		s.stdin = in
		s.stdout = out
	}
}

// Session serves one long-lived expert: one descriptor, one connection to the
// wrapped server, one exposed entry point, one query at a time.
type Session struct {
	descriptor *manifest.Descriptor
	entryPoint string
	peer       Peer
	planner    QueryPlanner
	dial       Dialer
	audit      planner.AuditStore
	logger     *slog.Logger
	metrics    *telemetry.SessionMetrics
	mcpServer  *server.MCPServer
	stdin      io.Reader
	stdout     io.Writer

	mu      sync.Mutex // serializes state transitions and shutdown
	queryMu sync.Mutex // one coordination pass at a time
	state   State
	cancel  context.CancelFunc
}

// NewSession loads and validates the descriptor at path, connects to the
// wrapped server, and registers the expert's single entry point. Credential
// is checked before any network activity.
func NewSession(path, credential string, qp QueryPlanner, opts ...SessionOption) (*Session, error) {
	s := &Session{
		planner: qp,
		dial:    StdioDialer,
		logger:  slog.Default(),
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		state:   StateUnstarted,
	}
	for _, opt := range opts {
		opt(s)
	}

	if credential == "" {
		return nil, sageerr.New(sageerr.CodeConfig, "planner credential missing", nil)
	}

	s.setState(StateLoading)
	descriptor, err := manifest.Load(path)
	if err != nil {
		s.setState(StateStopped)
		return nil, err
	}
	s.descriptor = descriptor
	s.entryPoint = manifest.EntryPointName(descriptor.Name)

	peer, err := s.dial(descriptor.ConnectionSpec.Command, descriptor.ConnectionSpec.Args)
	if err != nil {
		s.setState(StateStopped)
		return nil, sageerr.New(sageerr.CodeConnection, "failed to connect to wrapped server", err).
			WithContext("command", descriptor.ConnectionSpec.Command)
	}
	s.peer = peer
	s.setState(StateConnected)

	s.mcpServer = server.NewMCPServer(s.entryPoint, "0.1.0")
	s.mcpServer.AddTool(s.entryPointTool(), s.handleQuery)

	s.logger.Info("session.ready",
		slog.String("expert", descriptor.Name),
		slog.String("entry_point", s.entryPoint),
	)
	return s, nil
}

// EntryPoint returns the single exposed tool name.
func (s *Session) EntryPoint() string {
	return s.entryPoint
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) entryPointTool() mcp.Tool {
	return mcp.NewTool(s.entryPoint,
		mcp.WithDescription(s.descriptor.Description),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language request for this expert"),
		),
		mcp.WithString("mode",
			mcp.Description("discover: list current capabilities; execute: plan and run tool calls (default); explain: describe this expert"),
			mcp.Enum(ModeDiscover, ModeExecute, ModeExplain),
		),
	)
}

// Serve answers queries until ctx is cancelled or the transport closes.
func (s *Session) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.state = StateServing
	s.mu.Unlock()

	err := server.NewStdioServer(s.mcpServer).Listen(ctx, s.stdin, s.stdout)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		err = nil
	}

	if shutdownErr := s.Shutdown(context.Background()); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}

// Shutdown closes the wrapped-server connection and stops the serving
// transport. Both are attempted even if one errors. Safe to call more than
// once; signal wiring belongs to the hosting process.
func (s *Session) Shutdown(_ context.Context) error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}
	s.state = StateShuttingDown
	cancel := s.cancel
	s.mu.Unlock()

	var errs []error
	if s.peer != nil {
		if err := s.peer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close wrapped server: %w", err))
		}
	}
	if cancel != nil {
		cancel()
	}

	s.setState(StateStopped)
	s.logger.Info("session.stopped", slog.String("expert", s.descriptor.Name))
	return errors.Join(errs...)
}

// handleQuery is the single entry point. Mode validation happens before any
// peer or planner activity; queries are processed one at a time.
func (s *Session) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	mode := req.GetString("mode", ModeExecute)

	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	switch mode {
	case ModeDiscover, ModeExecute, ModeExplain:
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown mode %q: expected discover, execute or explain", mode)), nil
	}

	s.queryMu.Lock()
	defer s.queryMu.Unlock()

	started := time.Now()
	response, callCount, err := s.dispatch(ctx, mode, query)
	s.recordAudit(ctx, started, mode, query, callCount, err)
	if s.metrics != nil {
		s.metrics.RecordQuery(ctx, mode, err)
	}

	if err != nil {
		s.logger.Error("session.query_failed",
			slog.String("mode", mode),
			slog.String("error", err.Error()),
		)
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, sageerr.New(sageerr.CodeInternal, "failed to encode response", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Session) dispatch(ctx context.Context, mode, query string) (any, int, error) {
	switch mode {
	case ModeDiscover:
		response, err := s.discover(ctx)
		return response, 0, err
	case ModeExplain:
		response, err := s.explain(ctx)
		return response, 0, err
	default:
		response, err := s.execute(ctx, query)
		calls := 0
		if response != nil {
			calls = len(response.Results)
		}
		return response, calls, err
	}
}

// discover re-enumerates the wrapped server's current capabilities. The three
// reads are independent and run concurrently; no planner call is made, so
// this path works even when planner state is exhausted or stale.
func (s *Session) discover(ctx context.Context) (*DiscoverResponse, error) {
	response := &DiscoverResponse{
		Tools:     []manifest.Tool{},
		Resources: []manifest.Resource{},
		Prompts:   []manifest.Prompt{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tools, err := s.peer.ListTools(gctx)
		if err != nil {
			return sageerr.New(sageerr.CodeConnection, "failed to enumerate tools", err)
		}
		response.Tools = manifest.FromMCPTools(tools)
		return nil
	})
	g.Go(func() error {
		resources, err := s.peer.ListResources(gctx)
		if err != nil {
			s.logger.Warn("session.resources_unsupported", slog.String("error", err.Error()))
			return nil
		}
		response.Resources = manifest.FromMCPResources(resources)
		return nil
	})
	g.Go(func() error {
		prompts, err := s.peer.ListPrompts(gctx)
		if err != nil {
			s.logger.Warn("session.prompts_unsupported", slog.String("error", err.Error()))
			return nil
		}
		response.Prompts = manifest.FromMCPPrompts(prompts)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	response.ToolCount = len(response.Tools)
	response.ResourceCount = len(response.Resources)
	response.PromptCount = len(response.Prompts)
	return response, nil
}

// explain describes the expert from its descriptor plus a fresh tool listing.
func (s *Session) explain(ctx context.Context) (*ExplainResponse, error) {
	tools, err := s.peer.ListTools(ctx)
	if err != nil {
		return nil, sageerr.New(sageerr.CodeConnection, "failed to enumerate tools", err)
	}
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	return &ExplainResponse{
		Description: s.descriptor.Description,
		Guidance:    s.descriptor.Guidance,
		Tools:       strings.Join(names, ", "),
		Usage: fmt.Sprintf("Call %s with a natural-language query; use mode=discover to list capabilities or mode=explain for this summary.",
			s.entryPoint),
	}, nil
}

// execute plans against a fresh tool list and runs the plan strictly in
// sequence. A parse or planner failure fails the whole query with no call
// executed; a single call's failure is captured in its result entry and the
// remaining calls still run.
func (s *Session) execute(ctx context.Context, query string) (*ExecuteResponse, error) {
	mcpTools, err := s.peer.ListTools(ctx)
	if err != nil {
		return nil, sageerr.New(sageerr.CodeConnection, "failed to enumerate tools", err)
	}
	tools := manifest.FromMCPTools(mcpTools)

	plannerStarted := time.Now()
	plan, err := s.planner.Plan(ctx, s.descriptor.Guidance, tools, query)
	if s.metrics != nil {
		s.metrics.RecordPlannerLatency(ctx, time.Since(plannerStarted))
	}
	if err != nil {
		return nil, err
	}

	results := make([]CallResult, 0, len(plan.Calls))
	for _, call := range plan.Calls {
		entry := s.invoke(ctx, call)
		if s.metrics != nil {
			s.metrics.RecordToolCall(ctx, call.Tool, entry.Error != "")
		}
		results = append(results, entry)
	}
	return &ExecuteResponse{
		Explanation: plan.Explanation,
		Results:     results,
	}, nil
}

func (s *Session) invoke(ctx context.Context, call planner.Call) CallResult {
	entry := CallResult{Tool: call.Tool}
	result, err := s.peer.CallTool(ctx, call.Tool, call.Arguments)
	if err != nil {
		entry.Error = sageerr.New(sageerr.CodeInvocation, "tool call failed", err).Error()
		return entry
	}
	if result != nil && result.StructuredContent != nil {
		entry.Result = result.StructuredContent
		return entry
	}
	text, err := sagemcp.ResultText(result)
	if err != nil {
		entry.Error = sageerr.New(sageerr.CodeInvocation, "tool call failed", err).Error()
		return entry
	}
	entry.Result = text
	return entry
}

func (s *Session) recordAudit(ctx context.Context, started time.Time, mode, query string, callCount int, queryErr error) {
	if s.audit == nil {
		return
	}
	event := planner.AuditEvent{
		ID:         uuid.NewString(),
		Kind:       "query",
		Expert:     s.descriptor.Name,
		Mode:       mode,
		Query:      query,
		CallCount:  callCount,
		Status:     "ok",
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if queryErr != nil {
		event.Status = "error"
		event.Error = queryErr.Error()
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn("session.audit_failed", slog.String("error", err.Error()))
	}
}
