package public

import (
	"net/http"
	"strconv"

	"github.com/DOMjudge/scorekeeper/internal/database"
	"github.com/DOMjudge/scorekeeper/internal/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleScoreboardWs streams scoreboard update notifications for one
// contest. Clients re-fetch the scoreboard when they receive one.
func (h *Handler) handleScoreboardWs(c *gin.Context) {
	cid, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid contest id")
		return
	}
	if _, err := database.GetContest(h.db, uint(cid)); err != nil {
		c.String(http.StatusNotFound, "contest not found")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.S().Errorf("failed to upgrade websocket: %v", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.broker.Subscribe(pubsub.ScoreboardTopic(uint(cid)))
	defer unsubscribe()

	// Reader goroutine to detect the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				zap.S().Debugf("websocket write failed: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
