package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/s1d40/empathy-hub-backend/internal/domain/chat"
	"github.com/s1d40/empathy-hub-backend/internal/domain/user"
	"github.com/s1d40/empathy-hub-backend/internal/events"
	"github.com/s1d40/empathy-hub-backend/internal/services"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"
	"github.com/s1d40/empathy-hub-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxCloseReasonBytes = 123

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (user.User, error)
}

type RoomService interface {
	AuthorizeRoomConnect(ctx context.Context, userID, roomID uuid.UUID) (chat.Room, error)
	SendMessage(ctx context.Context, senderID, roomID uuid.UUID, content string) (chat.Message, error)
}

// inboundFrame is the only message a client may send, on room sockets.
type inboundFrame struct {
	Content         string `json:"content" validate:"required,max=2000"`
	ClientMessageID string `json:"clientMessageId" validate:"omitempty,max=64"`
}

// Handler accepts the three socket streams.
type Handler struct {
	auth     IdentityResolver
	chat     RoomService
	limiter  services.MessageLimiter
	hub      *Hub
	validate *validator.Validate
	log      *WebSocketLogger
}

// NewHandler builds the socket handler. limiter may be nil.
func NewHandler(auth IdentityResolver, chat RoomService, limiter services.MessageLimiter, hub *Hub, l *logger.Logger) *Handler {
	return &Handler{
		auth:     auth,
		chat:     chat,
		limiter:  limiter,
		hub:      hub,
		validate: validator.New(),
		log:      NewWebSocketLogger(l),
	}
}

// ChatRoom serves GET /v1/chat/ws/:room_id.
func (h *Handler) ChatRoom(c *gin.Context) {
	conn, ctx, cancel, ok := h.accept(c)
	if !ok {
		return
	}
	defer cancel()

	u, err := h.auth.ResolveIdentity(ctx, extractToken(c))
	if err != nil {
		h.reject(conn, err)
		return
	}
	roomID, err := uuid.Parse(c.Param("room_id"))
	if err != nil {
		h.reject(conn, hub_errors.ErrRoomNotFound)
		return
	}
	if _, err := h.chat.AuthorizeRoomConnect(ctx, u.ID, roomID); err != nil {
		h.log.Warn("room connect refused", u.ID, "", roomID.String(), zap.Error(err))
		h.reject(conn, err)
		return
	}

	client := NewClient(conn, u.ID)
	h.serve(client, h.hub.registries.Rooms, roomID.String(), func(frame []byte) {
		h.handleRoomFrame(ctx, client, roomID, frame)
	})
}

// ChatUpdates serves GET /v1/chat/ws/updates.
func (h *Handler) ChatUpdates(c *gin.Context) {
	h.personalStream(c, h.hub.registries.Updates)
}

// Notifications serves GET /v1/notifications/ws.
func (h *Handler) Notifications(c *gin.Context) {
	h.personalStream(c, h.hub.registries.Notifications)
}

func (h *Handler) personalStream(c *gin.Context, registry *Registry) {
	conn, ctx, cancel, ok := h.accept(c)
	if !ok {
		return
	}
	defer cancel()

	u, err := h.auth.ResolveIdentity(ctx, extractToken(c))
	if err != nil {
		h.reject(conn, err)
		return
	}

	client := NewClient(conn, u.ID)
	// Inbound frames are ignored on personal streams; reading only keeps the
	// keep-alive and close handshake working.
	h.serve(client, registry, u.ID.String(), nil)
}

// accept upgrades the request. Authentication happens after the upgrade so
// failures can be reported with a policy-violation close code.
func (h *Handler) accept(c *gin.Context) (*websocket.Conn, context.Context, context.CancelFunc, bool) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", uuid.Nil, "", c.Request.URL.Path, err)
		return nil, nil, nil, false
	}
	// The hijacked request context must not end the socket's work early.
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	return conn, ctx, cancel, true
}

// serve registers client, runs its pumps and unregisters it on every exit.
func (h *Handler) serve(client *Client, registry *Registry, key string, onFrame func([]byte)) {
	for _, old := range registry.Register(key, client.UserID(), client) {
		old.Close(websocket.CloseNormalClosure, "replaced")
	}
	defer registry.Unregister(key, client.UserID(), client)

	h.log.Info("connected", client.UserID(), client.ID(), registry.Name()+":"+key)
	go client.writePump()
	err := client.readPump(onFrame)
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		h.log.Warn("unexpected close", client.UserID(), client.ID(), registry.Name()+":"+key, zap.Error(err))
	}
	h.log.Info("disconnected", client.UserID(), client.ID(), registry.Name()+":"+key)
}

func (h *Handler) handleRoomFrame(ctx context.Context, client *Client, roomID uuid.UUID, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.pushError(client, "invalid message format", "")
		return
	}
	if err := h.validate.Struct(frame); err != nil {
		h.pushError(client, "content must be between 1 and 2000 characters", frame.ClientMessageID)
		return
	}

	if h.limiter != nil {
		res, err := h.limiter.AllowMessage(ctx, client.UserID().String())
		if err != nil {
			h.log.Warn("rate limit check failed", client.UserID(), client.ID(), roomID.String(), zap.Error(err))
		} else if !res.Allowed {
			h.pushError(client, hub_errors.ErrRateLimited.Error(), frame.ClientMessageID)
			return
		}
	}

	if _, err := h.chat.SendMessage(ctx, client.UserID(), roomID, frame.Content); err != nil {
		if hub_errors.HTTPStatus(err) == http.StatusInternalServerError {
			h.log.Error("send message failed", client.UserID(), client.ID(), roomID.String(), err)
			h.pushError(client, "could not send message", frame.ClientMessageID)
			return
		}
		h.pushError(client, err.Error(), frame.ClientMessageID)
	}
}

func (h *Handler) pushError(client *Client, detail, clientMessageID string) {
	_ = client.Send(events.ErrorFrame(detail, clientMessageID))
}

// reject closes an accepted socket. Caller errors close with policy
// violation, anything else with internal error.
func (h *Handler) reject(conn *websocket.Conn, err error) {
	code := websocket.ClosePolicyViolation
	reason := err.Error()
	switch {
	case errors.Is(err, hub_errors.ErrUnauthorized):
		reason = "authentication failed"
	case hub_errors.HTTPStatus(err) == http.StatusInternalServerError:
		code = websocket.CloseInternalServerErr
		reason = "internal error"
	}
	msg := websocket.FormatCloseMessage(code, truncateReason(reason))
	_ = conn.WriteControl(websocket.CloseMessage, msg, deadlineNow())
	conn.Close()
}

func truncateReason(reason string) string {
	for len(reason) > maxCloseReasonBytes {
		_, size := utf8.DecodeLastRuneInString(reason)
		reason = reason[:len(reason)-size]
	}
	return reason
}

func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
