package server

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed viewer.html
var viewerHTML []byte

// handleViewer serves the single-page session viewer. The page connects to
// /ws, sends EXECUTE commands, and renders the event stream: URL display,
// page snapshot, element highlights, and an action log.
func (s *Server) handleViewer(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", viewerHTML)
}
