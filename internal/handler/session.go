package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ridemeter/internal/domain"
	"ridemeter/internal/service"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxEventLength = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SessionHandler handles HTTP requests for driver sessions.
type SessionHandler struct {
	registry     *service.SessionRegistry
	tickInterval time.Duration
	logger       *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(registry *service.SessionRegistry, tickInterval time.Duration, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		registry:     registry,
		tickInterval: tickInterval,
		logger:       logger,
	}
}

// EventRequest is the HTTP request body for applying an event.
type EventRequest struct {
	Event string `json:"event" binding:"required"`
}

// EventResponse is the HTTP response for an applied event.
type EventResponse struct {
	Changed bool                   `json:"changed"`
	Settled []domain.BillingRecord `json:"settled,omitempty"`
	View    domain.ViewState       `json:"view"`
	Error   string                 `json:"error,omitempty"`
}

// StreamMessage is pushed over the session websocket.
type StreamMessage struct {
	Type    string            `json:"type"`
	Changed *bool             `json:"changed,omitempty"`
	View    *domain.ViewState `json:"view,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// ApplyEvent handles POST /v1/drivers/:id/session/events
func (h *SessionHandler) ApplyEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	session, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := session.ApplyNamed(c.Request.Context(), req.Event)
	if err != nil && result.View.State.IsZero() {
		respondError(c, err)
		return
	}

	response := EventResponse{
		Changed: result.Changed,
		Settled: result.Settled,
		View:    result.View,
	}
	if err != nil {
		// The transition happened; only the durable write did not.
		_ = c.Error(err)
		response.Error = err.Error()
		respondJSON(c, mapErrorToHTTPStatus(err), response)
		return
	}

	respondJSON(c, http.StatusOK, response)
}

// GetView handles GET /v1/drivers/:id/session
func (h *SessionHandler) GetView(c *gin.Context) {
	session, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := session.View(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, view)
}

// Stream handles GET /v1/drivers/:id/session/ws. It pushes a fresh view
// every tick and applies {"event": "..."} messages sent by the client.
func (h *SessionHandler) Stream(c *gin.Context) {
	session, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "driver_id", session.DriverID(), "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events := make(chan string)
	go h.readEvents(ctx, cancel, conn, events)

	tick := time.NewTicker(h.tickInterval)
	defer tick.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	h.logger.Info("session stream opened", "driver_id", session.DriverID())
	defer h.logger.Info("session stream closed", "driver_id", session.DriverID())

	if !h.pushView(ctx, conn, session) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case name := <-events:
			result, err := session.ApplyNamed(ctx, name)
			msg := StreamMessage{Type: "event", Changed: &result.Changed}
			if !result.View.State.IsZero() {
				msg.View = &result.View
			}
			if err != nil {
				msg.Error = err.Error()
			}
			if !write(conn, msg) {
				return
			}
		case <-tick.C:
			if !h.pushView(ctx, conn, session) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *SessionHandler) pushView(ctx context.Context, conn *websocket.Conn, session *service.SessionFacade) bool {
	view, err := session.View(ctx)
	if err != nil {
		return write(conn, StreamMessage{Type: "error", Error: err.Error()})
	}
	return write(conn, StreamMessage{Type: "view", View: &view})
}

// readEvents forwards client messages until the connection fails.
func (h *SessionHandler) readEvents(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, events chan<- string) {
	defer cancel()

	conn.SetReadLimit(maxEventLength)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req EventRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("session stream read failed", "error", err)
			}
			return
		}
		select {
		case events <- req.Event:
		case <-ctx.Done():
			return
		}
	}
}

func write(conn *websocket.Conn, msg StreamMessage) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg) == nil
}
