package research

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"research-backend/internal/shared/server/middleware"
	"research-backend/internal/shared/telemetry"
)

// Application close codes sent alongside the websocket close frame.
const (
	wsCloseBadTaskID    = 4000
	wsCloseUnauthorized = 4003
	wsCloseNotFound     = 4004
	wsCloseInternal     = 4500
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the CORS layer in front of the upgrade.
	CheckOrigin: func(*http.Request) bool { return true },
}

func wsClose(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(wsWriteWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

// subscribe upgrades the connection and streams task events until the task
// reaches a terminal state or the client goes away. The current record state
// is always sent first so late subscribers never miss the outcome.
func (h *Handler) subscribe(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()

	taskID := c.Param("task_id")
	if _, err := uuid.Parse(taskID); err != nil {
		wsClose(conn, wsCloseBadTaskID, "task id must be a UUID")
		return
	}
	desc, ok := LookupCategory(c.Param("category"))
	if !ok {
		wsClose(conn, wsCloseBadTaskID, "unknown analysis category")
		return
	}

	// Subscribe before the snapshot read so no event can fall in between.
	events := h.Notifier.Subscribe(taskID)
	defer h.Notifier.Unsubscribe(taskID, events)

	rec, err := h.Dispatcher.Repo.GetByTask(c.Request.Context(), taskID, desc.Category)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			wsClose(conn, wsCloseNotFound, "analysis not found")
		} else {
			telemetry.Error("research.ws.load_failed", map[string]any{"taskId": taskID, "error": err.Error()})
			wsClose(conn, wsCloseInternal, "internal error")
		}
		return
	}
	if rec.UserID != middleware.UserIDFromContext(c) {
		wsClose(conn, wsCloseUnauthorized, "not authorized for this analysis")
		return
	}

	snapshot := Event{TaskID: rec.TaskID, Category: rec.Category, Status: rec.Status, Insights: rec.Insights}
	if rec.Error != nil {
		snapshot.Error = *rec.Error
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(snapshot); err != nil {
		return
	}
	if rec.Status != StatusProcessing {
		wsClose(conn, websocket.CloseNormalClosure, "analysis already finished")
		return
	}

	// Drain the reader so close frames and pongs are processed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-clientGone:
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Status == EventCompleted || ev.Status == EventError {
				wsClose(conn, websocket.CloseNormalClosure, "analysis finished")
				return
			}
		}
	}
}
