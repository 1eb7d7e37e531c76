package presence

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/worldindex/core/internal/pkg/response"
)

// keepaliveInterval is how long a push stream may stay silent before an idle
// heartbeat goes out.
const keepaliveInterval = 30 * time.Second

// Handler exposes the heartbeat endpoint and the push stream.
type Handler struct {
	tracker *Tracker
}

func NewHandler(tracker *Tracker) *Handler {
	return &Handler{tracker: tracker}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/session", h.Heartbeat)
	r.GET("/events/sessions", h.Events)
}

type heartbeatRequest struct {
	SessionID   string `json:"session_id" binding:"required"`
	URL         string `json:"url" binding:"required"`
	TimestampMS int64  `json:"timestamp_ms"`
}

// Heartbeat records one session sighting.
func (h *Handler) Heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid heartbeat: "+err.Error())
		return
	}
	ts := req.TimestampMS
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	isNew := h.tracker.Heartbeat(req.SessionID, req.URL, ts)
	response.OK(c, gin.H{"new_session": isNew})
}

// Events streams join notifications as server-sent events, with an idle
// heartbeat every 30s so proxies keep the connection open.
func (h *Handler) Events(c *gin.Context) {
	events, cancel := h.tracker.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	keepalive := time.NewTimer(keepaliveInterval)
	defer keepalive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			if !keepalive.Stop() {
				select {
				case <-keepalive.C:
				default:
				}
			}
			keepalive.Reset(keepaliveInterval)
			c.SSEvent("session", ev)
			return true
		case <-keepalive.C:
			keepalive.Reset(keepaliveInterval)
			c.SSEvent("heartbeat", Event{Kind: EventHeartbeat})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
