// Package server exposes the automation engine over HTTP. REST endpoints
// start tasks and poll their status, websocket endpoints carry live event
// streams, and an embedded viewer page drives interactive sessions with
// EXECUTE commands. Task outcome metrics ride the same event stream through
// a prometheus Reporter decorator.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/entrhq/drover/pkg/config"
	"github.com/entrhq/drover/pkg/engine"
	"github.com/entrhq/drover/pkg/logging"
	"github.com/entrhq/drover/pkg/task"
	"github.com/entrhq/drover/pkg/types"
)

var serverLog *logging.Logger

func init() {
	var err error
	serverLog, err = logging.NewLogger("server")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		serverLog.Warnf("failed to initialize server logger, using stderr fallback: %v", err)
	}
}

// writeWait bounds every websocket write so a stalled client cannot wedge a
// pump goroutine.
const writeWait = 10 * time.Second

// TaskStarter starts automation tasks and resolves running ones by id.
// *engine.Engine satisfies it.
type TaskStarter interface {
	StartTask(ctx context.Context, instruction string) (*task.Handle, error)
	Task(id string) (*task.Handle, bool)
}

// Server serves the REST API, the websocket event streams, and the embedded
// viewer page. It does not own the engine lifecycle: callers shut down the
// HTTP surface first, then the engine behind it.
type Server struct {
	starter  TaskStarter
	cfg      config.ServerConfig
	router   *gin.Engine
	http     *http.Server
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// New builds a server around the given starter. The config's zero values are
// filled by config.Validate, so cfg can come straight from a loaded file.
func New(starter TaskStarter, cfg config.ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		starter: starter,
		cfg:     cfg,
		router:  gin.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[*websocket.Conn]struct{}),
	}
	s.router.Use(gin.Recovery())
	s.registerRoutes()
	s.http = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.router,
	}
	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/", s.handleViewer)
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws", s.handleSession)

	api := s.router.Group("/api")
	api.POST("/tasks", s.handleStartTask)
	api.GET("/tasks/:id", s.handleTaskStatus)
	api.GET("/tasks/:id/stream", s.handleTaskStream)
}

// Run serves until ctx is cancelled, then shuts down within the configured
// shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		serverLog.Infof("listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown stops accepting connections, closes every open websocket, and
// waits for in-flight HTTP requests up to ctx's deadline. Websockets are
// hijacked connections, so http.Server.Shutdown alone would never reclaim
// them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

func (s *Server) addConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeConn(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type startTaskRequest struct {
	Instruction string `json:"instruction"`
}

type startTaskResponse struct {
	TaskID string `json:"taskId"`
}

type taskStatusResponse struct {
	TaskID string            `json:"taskId"`
	Status types.TaskStatus  `json:"status"`
	Result *types.TaskResult `json:"result,omitempty"`
}

// handleStartTask starts a task detached from the request context so it
// outlives the POST. Clients follow up via /api/tasks/:id or the stream
// endpoint.
func (s *Server) handleStartTask(c *gin.Context) {
	var req startTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "instruction is empty"})
		return
	}
	handle, err := s.starter.StartTask(s.ctx, req.Instruction)
	if err != nil {
		if errors.Is(err, engine.ErrShutdown) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		serverLog.Errorf("failed to start task: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	serverLog.Infof("task %s started: %s", handle.ID(), req.Instruction)
	c.JSON(http.StatusAccepted, startTaskResponse{TaskID: handle.ID()})
}

func (s *Server) handleTaskStatus(c *gin.Context) {
	handle, ok := s.starter.Task(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, taskStatusResponse{
		TaskID: handle.ID(),
		Status: handle.Status(),
		Result: handle.Result(),
	})
}

// handleTaskStream upgrades to a websocket and forwards the task's events,
// one JSON text frame per event, until the task reaches a terminal state.
// Events are consumed from the handle's single channel, so one stream per
// task sees the full feed.
func (s *Server) handleTaskStream(c *gin.Context) {
	handle, ok := s.starter.Task(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		serverLog.Warnf("websocket upgrade failed: %v", err)
		return
	}
	s.addConn(conn)
	defer s.removeConn(conn)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-handle.Events():
			if !ok {
				closeGracefully(conn, "task finished")
				return
			}
			if err := writeEvent(conn, event); err != nil {
				serverLog.Debugf("stream write for task %s failed: %v", handle.ID(), err)
				return
			}
		case <-closed:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, event *types.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func closeGracefully(conn *websocket.Conn, reason string) {
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
}
