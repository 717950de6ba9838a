package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/regulateai/platform/internal/api/middleware"
	"github.com/regulateai/platform/internal/store"
)

// LogStreamHandler pushes newly ingested log entries to dashboard clients
// over a websocket. The store is polled; entries are delivered oldest first.
type LogStreamHandler struct {
	store    store.Store
	logger   *slog.Logger
	interval time.Duration
}

// NewLogStreamHandler creates a new log stream handler.
func NewLogStreamHandler(st store.Store, logger *slog.Logger) *LogStreamHandler {
	return &LogStreamHandler{
		store:    st,
		logger:   logger,
		interval: time.Second,
	}
}

const (
	streamBatchLimit = 100
	pingInterval     = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// Stream handles GET /v1/projects/{projectID}/logs/stream.
func (h *LogStreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err, "project_id", project.ID)
		return
	}
	defer conn.Close()

	h.logger.Info("log stream started", "project_id", project.ID)

	// Drain client frames so close messages are processed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	pingTicker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer pingTicker.Stop()

	ctx := r.Context()
	lastSeen := time.Now().UTC()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("log stream closed", "project_id", project.ID)
			return
		case <-clientGone:
			h.logger.Info("log stream client disconnected", "project_id", project.ID)
			return
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ticker.C:
			entries, err := h.store.Logs().ListAfter(ctx, project.ID, lastSeen, streamBatchLimit)
			if err != nil {
				h.logger.Error("failed to fetch new logs", "error", err, "project_id", project.ID)
				continue
			}

			for _, entry := range entries {
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(entry); err != nil {
					h.logger.Debug("websocket write failed", "error", err, "project_id", project.ID)
					return
				}
				if entry.CreatedAt.After(lastSeen) {
					lastSeen = entry.CreatedAt
				}
			}
		}
	}
}
