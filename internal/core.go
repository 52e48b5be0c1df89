// Package internal wires the agent server: configuration, the Scratchpad
// client, the session cache, the task manager, and the HTTP/websocket
// surface.
package internal

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/scratchpad-ai/agent-server/internal/agent"
	"github.com/scratchpad-ai/agent-server/internal/api"
	"github.com/scratchpad-ai/agent-server/internal/auth"
	"github.com/scratchpad-ai/agent-server/internal/config"
	"github.com/scratchpad-ai/agent-server/internal/llm"
	"github.com/scratchpad-ai/agent-server/internal/prompt"
	"github.com/scratchpad-ai/agent-server/internal/scratchpad"
	"github.com/scratchpad-ai/agent-server/internal/session"
	"github.com/scratchpad-ai/agent-server/internal/tools"
	"github.com/scratchpad-ai/agent-server/internal/ws"
	"github.com/scratchpad-ai/agent-server/pkg/logger"
)

// preloadTake is the first-page size fetched into the run context when a
// table context does not advertise its own page size.
const preloadTake = 50

// Server is the top-level agent server.
type Server struct {
	log    *logrus.Entry
	config *config.Config

	echo      *echo.Echo
	client    *scratchpad.Client
	sessions  *session.Service
	runs      *agent.RunStateManager
	tasks     *agent.TaskManager
	conns     *ws.ConnectionManager
	prompts   *prompt.Builder
	registry  *tools.Registry
	validator *auth.Validator
}

// NewServer assembles the server from configuration. It fails fast on
// configuration errors such as a missing prompt template.
func NewServer(cfg *config.Config) (*Server, error) {
	prompts, err := prompt.NewBuilder()
	if err != nil {
		return nil, errors.Wrap(err, "loading prompt library")
	}

	client := scratchpad.NewClient(cfg.ScratchpadServerURL, cfg.ScratchpadAuthToken)

	s := &Server{
		log:       logrus.WithField("component", "server"),
		config:    cfg,
		client:    client,
		sessions:  session.NewService(client),
		runs:      agent.NewRunStateManager(),
		conns:     ws.NewConnectionManager(),
		prompts:   prompts,
		registry:  tools.NewRegistry(client),
		validator: auth.NewValidator(cfg.JWTSecret),
	}
	s.tasks = agent.NewTaskManager(s.sessions, s.runs, s.runTurn)

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Logger = logger.New()
	s.echo.HTTPErrorHandler = api.JSONErrorHandler
	s.echo.Use(middleware.Recover())
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", api.Route(s.getRoot))
	s.echo.GET("/health", api.Route(s.getHealth))

	s.echo.GET("/debug/websocket/status", api.Route(s.getWebsocketStatus))
	s.echo.GET("/debug/agent/run-state/status", api.Route(s.getRunStateStatus))
	s.echo.GET("/debug/agent/task-manager/status", api.Route(s.getTaskManagerStatus))

	authed := s.echo.Group("", s.validator.Middleware())
	authed.POST("/sessions", api.Route(s.postSession))
	authed.GET("/sessions", api.Route(s.getSessions))
	authed.GET("/sessions/:session_id", api.Route(s.getSession))
	authed.DELETE("/sessions/:session_id", api.Route(s.deleteSession))
	authed.POST("/sessions/:session_id/messages", api.Route(s.postMessage))
	authed.POST("/sessions/:session_id/cancel", api.Route(s.postCancel))
	authed.GET("/tasks/:task_id", api.Route(s.getTaskStatus))
	authed.POST("/cleanup", api.Route(s.postCleanup))
	authed.GET("/ws/:session_id", s.handleWebsocket)
}

// Run starts the HTTP server and blocks until the context ends.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.log.WithField("addr", addr).Info("agent server listening")

	errs := make(chan error, 1)
	go func() { errs <- s.echo.Start(addr) }()

	select {
	case err := <-errs:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
		s.log.Info("shutting down")
		if err := s.echo.Shutdown(context.Background()); err != nil {
			return errors.Wrap(err, "shutting down http server")
		}
		s.tasks.Wait()
		return nil
	}
}

// runTurn is the turn body injected into the task manager: it assembles the
// run context, prompt, and tool set, then drives the model loop.
func (s *Server) runTurn(
	ctx context.Context,
	sess *session.Session,
	req *agent.TurnRequest,
	runID string,
	onProgress agent.ProgressFunc,
) (*agent.RunResult, error) {
	scope := req.DataScope
	if scope == "" {
		scope = agent.ScopeTable
	}
	if !scope.Valid() {
		return nil, api.AsValidationError("unknown data scope %q", scope)
	}

	workbook, err := s.client.GetWorkbook(ctx, sess.UserID, sess.WorkbookID)
	if err != nil {
		return nil, errors.Wrapf(err, "loading workbook %s", sess.WorkbookID)
	}

	rc := &agent.RunContext{
		Session:           sess,
		UserID:            sess.UserID,
		Workbook:          workbook,
		ActiveTableID:     req.ActiveTableID,
		ActiveRecordID:    req.RecordID,
		ActiveColumnID:    req.ColumnID,
		Scope:             scope,
		ReadFocus:         req.ReadFocus,
		WriteFocus:        req.WriteFocus,
		Preloaded:         map[string][]scratchpad.Record{},
		FilteredCounts:    map[string]int{},
		ViewID:            req.ViewID,
		CredentialID:      req.CredentialID,
		MentionedTableIDs: req.MentionedTableIDs,
		RunID:             runID,
		Runs:              s.runs,
	}
	if scope != agent.ScopeFile {
		s.preloadRecords(ctx, rc)
	}

	caps := map[string]bool{}
	for _, c := range req.CapabilitySet() {
		if !c.Valid() {
			s.log.WithField("capability", c).Warn("ignoring unknown capability")
			continue
		}
		caps[string(c)] = true
	}

	assets := make([]prompt.Asset, 0, len(req.StyleGuides))
	for _, guide := range req.StyleGuides {
		assets = append(assets, prompt.Asset{Name: guide.Name, Content: guide.Content})
	}
	system := s.prompts.Build(prompt.Params{
		Scope:        string(scope),
		Capabilities: caps,
		Assets:       assets,
	})

	toolset := s.registry.Toolset(req.CapabilitySet(), scope, req.ToolOverrides)
	model := s.modelFor(req)

	runner := agent.NewRunner(model, system, toolset, func(rc *agent.RunContext) string {
		return tools.FormatSnapshot(rc, 0)
	})
	return runner.Run(ctx, rc, req.Message, onProgress)
}

// preloadRecords fetches the first page of the tables the turn involves into
// the run context. Preload failures degrade to an empty snapshot; the model
// can still fetch explicitly.
func (s *Server) preloadRecords(ctx context.Context, rc *agent.RunContext) {
	tableIDs := map[string]bool{}
	if rc.ActiveTableID != "" {
		tableIDs[rc.ActiveTableID] = true
	}
	for _, id := range rc.MentionedTableIDs {
		if id != "" {
			tableIDs[id] = true
		}
	}

	for id := range tableIDs {
		table := rc.Workbook.TableByID(id)
		if table == nil {
			continue
		}
		take := table.Context.PageSize
		if take <= 0 {
			take = preloadTake
		}
		page, err := s.client.ListRecordsForAI(ctx, rc.UserID, rc.Workbook.ID, id, nil, take)
		if err != nil {
			s.log.WithError(err).WithField("table_id", id).Warn("preloading records failed")
			continue
		}
		rc.Preloaded[id] = page.Records
		rc.FilteredCounts[id] = page.FilteredCount
	}
}

// modelFor resolves the turn's model driver, honoring per-turn overrides of
// the model name and advertised context length.
func (s *Server) modelFor(req *agent.TurnRequest) llm.Model {
	name := req.Model
	if name == "" {
		name = s.config.ModelName
	}
	return llm.NewHTTPModel(s.config.LLMProviderURL, s.config.LLMProviderKey, name, req.ModelContextLength)
}
