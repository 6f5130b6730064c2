package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jonesrussell/north-search/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The summary id is an unguessable UUID minted per search; origin
	// checks add nothing here.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// SummarySocket upgrades the connection and attaches it to the summary
// task named in the path. The coordinator owns all writes and closes
// the connection when the stream finishes.
func (h *Handler) SummarySocket(c *gin.Context) {
	id := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed",
			logger.Error(err),
			logger.String("request_id", id),
		)
		return
	}

	if err := h.summaries.Attach(id, conn); err != nil {
		h.log.Debug("Summary attach rejected",
			logger.Error(err),
			logger.String("request_id", id),
		)
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown summary request"),
			deadline,
		)
		_ = conn.Close()
		return
	}

	// Drain the read side so close and pong control frames are
	// processed while the coordinator streams.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
