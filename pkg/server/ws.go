package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/entrhq/drover/pkg/task"
	"github.com/entrhq/drover/pkg/types"
)

// executePrefix marks an inbound text frame as a task command. Everything
// after the prefix is the free-text instruction.
const executePrefix = "EXECUTE:"

// session is one interactive websocket connection. A single writer goroutine
// drains outbound so frames from the read loop and the event forwarder never
// interleave mid-write, and arrive in the order they were queued.
type session struct {
	server   *Server
	conn     *websocket.Conn
	outbound chan *types.Event
	closed   chan struct{}

	// running is owned by the read loop. It is closed by the forwarder when
	// the active task's event channel drains.
	running chan struct{}
	active  *task.Handle
}

// handleSession upgrades to a websocket and runs the command protocol:
// EXECUTE:<instruction> starts one task and streams its events back over the
// same connection. Commands that cannot be parsed produce a single error
// event and leave the connection open. One task runs at a time per
// connection; a disconnect aborts whatever is still running.
func (s *Server) handleSession(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		serverLog.Warnf("websocket upgrade failed: %v", err)
		return
	}
	s.addConn(conn)
	defer s.removeConn(conn)

	sess := &session{
		server:   s,
		conn:     conn,
		outbound: make(chan *types.Event, 64),
		closed:   make(chan struct{}),
	}
	go sess.writePump()
	sess.readLoop()
}

// readLoop consumes frames until the client disconnects, then tears the
// session down.
func (sess *session) readLoop() {
	defer func() {
		close(sess.closed)
		if sess.active != nil && sess.active.Status() == types.TaskStatusRunning {
			serverLog.Infof("connection closed, aborting task %s", sess.active.ID())
			sess.active.Abort()
		}
	}()
	for {
		kind, payload, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			sess.reportError("expected a text frame")
			continue
		}
		sess.handleCommand(string(payload))
	}
}

func (sess *session) handleCommand(raw string) {
	if !strings.HasPrefix(raw, executePrefix) {
		sess.reportError(fmt.Sprintf("unrecognized command %q, expected EXECUTE:<instruction>", truncateCommand(raw)))
		return
	}
	instruction := strings.TrimSpace(strings.TrimPrefix(raw, executePrefix))
	if instruction == "" {
		sess.reportError("instruction is empty")
		return
	}
	if sess.busy() {
		sess.reportError(fmt.Sprintf("task %s is still running on this connection", sess.active.ID()))
		return
	}
	handle, err := sess.server.starter.StartTask(sess.server.ctx, instruction)
	if err != nil {
		sess.reportError(fmt.Sprintf("failed to start task: %v", err))
		return
	}
	serverLog.Infof("session task %s started: %s", handle.ID(), instruction)
	sess.active = handle
	sess.running = make(chan struct{})
	go sess.forward(handle, sess.running)
}

// busy reports whether the previous task's event stream is still draining.
func (sess *session) busy() bool {
	if sess.running == nil {
		return false
	}
	select {
	case <-sess.running:
		sess.running = nil
		return false
	default:
		return true
	}
}

// forward copies the task's events into the session's outbound queue,
// preserving their order.
func (sess *session) forward(handle *task.Handle, done chan struct{}) {
	defer close(done)
	for event := range handle.Events() {
		select {
		case sess.outbound <- event:
		case <-sess.closed:
			return
		case <-sess.server.ctx.Done():
			return
		}
	}
}

func (sess *session) writePump() {
	for {
		select {
		case event := <-sess.outbound:
			if err := writeEvent(sess.conn, event); err != nil {
				serverLog.Debugf("session write failed: %v", err)
				_ = sess.conn.Close()
				return
			}
		case <-sess.closed:
			return
		case <-sess.server.ctx.Done():
			return
		}
	}
}

// reportError queues a protocol-level error event. These carry no task id and
// are never terminal: the connection stays usable.
func (sess *session) reportError(message string) {
	event := &types.Event{
		Type: types.EventTypeError,
		At:   time.Now(),
		Data: &types.EventData{Message: message},
	}
	select {
	case sess.outbound <- event:
	case <-sess.closed:
	}
}

func truncateCommand(raw string) string {
	const limit = 48
	if len(raw) <= limit {
		return raw
	}
	return raw[:limit] + "..."
}
