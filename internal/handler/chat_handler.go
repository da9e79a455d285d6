package handler

import (
	"context"
	"net/http"

	"github.com/s1d40/empathy-hub-backend/internal/domain/chat"
	"github.com/s1d40/empathy-hub-backend/internal/services"
	"github.com/s1d40/empathy-hub-backend/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ChatHandler struct {
	service *services.ChatService
}

func NewChatHandler(service *services.ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// InitiateDirect answers 201 when a room or request was created and 200 when
// an existing one was returned.
func (h *ChatHandler) InitiateDirect(c *gin.Context) {
	var req httpdto.InitiateDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, err := uuid.Parse(req.TargetUserID)
	if err != nil {
		badRequest(c, "invalid target_user_id")
		return
	}

	res, err := h.service.InitiateDirect(c.Request.Context(), actorID, targetID, req.InitialMessage)
	if err != nil {
		fail(c, err)
		return
	}

	out := httpdto.InitiateDirectResponse{IsNew: res.IsNew}
	if res.Room != nil {
		room := httpdto.FromRoom(*res.Room, actorID)
		out.Kind, out.Room = httpdto.InitiateKindRoom, &room
	} else {
		request := httpdto.FromRequest(*res.Request)
		out.Kind, out.Request = httpdto.InitiateKindRequest, &request
	}
	status := http.StatusOK
	if res.IsNew {
		status = http.StatusCreated
	}
	c.JSON(status, httpdto.NewSuccessResponse(out))
}

func (h *ChatHandler) CreateGroup(c *gin.Context) {
	var req httpdto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	creatorID, ok := currentUser(c)
	if !ok {
		return
	}
	memberIDs := make([]uuid.UUID, 0, len(req.MemberIDs))
	for _, raw := range req.MemberIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid member id")
			return
		}
		memberIDs = append(memberIDs, id)
	}

	room, err := h.service.CreateGroupRoom(c.Request.Context(), creatorID, req.Name, memberIDs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromRoom(room, creatorID)))
}

func (h *ChatHandler) ListRooms(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var page httpdto.PageQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, "invalid pagination")
		return
	}

	rooms, err := h.service.ListRooms(c.Request.Context(), userID, page.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromRooms(rooms, userID)))
}

func (h *ChatHandler) GetRoom(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "room_id")
	if !ok {
		return
	}

	room, err := h.service.GetRoom(c.Request.Context(), userID, roomID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromRoom(room, userID)))
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "room_id")
	if !ok {
		return
	}
	var page httpdto.PageQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, "invalid pagination")
		return
	}

	msgs, err := h.service.GetMessages(c.Request.Context(), userID, roomID, page.Limit, page.Offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMessages(msgs)))
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "content must be between 1 and 2000 characters")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "room_id")
	if !ok {
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), userID, roomID, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromMessage(msg)))
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "room_id")
	if !ok {
		return
	}

	if err := h.service.MarkRoomRead(c.Request.Context(), userID, roomID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) ListPendingRequests(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var page httpdto.PageQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, "invalid pagination")
		return
	}

	reqs, err := h.service.ListPendingRequests(c.Request.Context(), userID, page.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromRequests(reqs)))
}

func (h *ChatHandler) AcceptRequest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c, "request_id")
	if !ok {
		return
	}

	room, err := h.service.AcceptRequest(c.Request.Context(), userID, requestID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromRoom(room, userID)))
}

func (h *ChatHandler) DeclineRequest(c *gin.Context) {
	h.respond(c, h.service.DeclineRequest)
}

func (h *ChatHandler) CancelRequest(c *gin.Context) {
	h.respond(c, h.service.CancelRequest)
}

func (h *ChatHandler) respond(c *gin.Context, op func(ctx context.Context, userID, requestID uuid.UUID) (chat.Request, error)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c, "request_id")
	if !ok {
		return
	}

	request, err := op(c.Request.Context(), userID, requestID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromRequest(request)))
}
