package handlers

import (
	"net/http"

	"nxfs_api/internal/http/response"
	"nxfs_api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ChatPresence reports which users have a room open over the websocket.
type ChatPresence interface {
	RoomMembers(roomID uuid.UUID) []int64
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Validation(c, name, "Must be a valid UUID.")
		return uuid.Nil, false
	}
	return id, true
}

// chatRoute resolves the caller and the :id room parameter.
func chatRoute(c *gin.Context) (int64, uuid.UUID, bool) {
	userID, ok := getUserID(c)
	if !ok {
		return 0, uuid.Nil, false
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return 0, uuid.Nil, false
	}
	return userID, roomID, true
}

func (h *Handler) ListChatRooms(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	rooms, err := h.Chat.ListRooms(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *Handler) GetChatRoom(c *gin.Context) {
	userID, roomID, ok := chatRoute(c)
	if !ok {
		return
	}
	room, err := h.Chat.GetRoom(c.Request.Context(), userID, roomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) CreateChatRoom(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var in service.RoomInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BindError(c, err)
		return
	}
	room, err := h.Chat.CreateRoom(c.Request.Context(), userID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

type directRoomRequest struct {
	UserID int64 `json:"user_id" binding:"required,gt=0"`
}

func (h *Handler) DirectChatRoom(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req directRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	room, created, err := h.Chat.DirectRoom(c.Request.Context(), userID, req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, room)
}

func (h *Handler) LeaveChatRoom(c *gin.Context) {
	userID, roomID, ok := chatRoute(c)
	if !ok {
		return
	}
	if err := h.Chat.LeaveRoom(c.Request.Context(), userID, roomID); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left room"})
}

func (h *Handler) MarkChatRoomRead(c *gin.Context) {
	userID, roomID, ok := chatRoute(c)
	if !ok {
		return
	}
	n, err := h.Chat.MarkRoomRead(c.Request.Context(), userID, roomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "marked as read", "count": n})
}

func (h *Handler) ChatTypingUsers(c *gin.Context) {
	userID, roomID, ok := chatRoute(c)
	if !ok {
		return
	}
	users, err := h.Chat.TypingUsers(c.Request.Context(), userID, roomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) ChatOnlineUsers(c *gin.Context) {
	userID, roomID, ok := chatRoute(c)
	if !ok {
		return
	}
	if err := h.Chat.CanJoin(c.Request.Context(), userID, roomID); err != nil {
		response.Error(c, err)
		return
	}
	online := []int64{}
	if h.Presence != nil {
		online = h.Presence.RoomMembers(roomID)
	}
	c.JSON(http.StatusOK, gin.H{"room": roomID, "online": online})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	userID, roomID, ok := chatRoute(c)
	if !ok {
		return
	}
	msgs, err := h.Chat.ListMessages(c.Request.Context(), userID, roomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	userID, roomID, ok := chatRoute(c)
	if !ok {
		return
	}
	var in service.MessageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BindError(c, err)
		return
	}
	m, err := h.Chat.SendMessage(c.Request.Context(), userID, roomID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) EditChatMessage(c *gin.Context) {
	userID, roomID, ok := chatRoute(c)
	if !ok {
		return
	}
	msgID, ok := pathUUID(c, "message_id")
	if !ok {
		return
	}
	var in service.MessageUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BindError(c, err)
		return
	}
	m, err := h.Chat.EditMessage(c.Request.Context(), userID, roomID, msgID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteChatMessage(c *gin.Context) {
	userID, roomID, ok := chatRoute(c)
	if !ok {
		return
	}
	msgID, ok := pathUUID(c, "message_id")
	if !ok {
		return
	}
	if err := h.Chat.DeleteMessage(c.Request.Context(), userID, roomID, msgID); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ReactChatMessage(c *gin.Context) {
	userID, roomID, ok := chatRoute(c)
	if !ok {
		return
	}
	msgID, ok := pathUUID(c, "message_id")
	if !ok {
		return
	}
	var in service.ReactionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BindError(c, err)
		return
	}
	reactions, err := h.Chat.React(c.Request.Context(), userID, roomID, msgID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactions": reactions, "message": "Reaction " + in.Action + "ed"})
}

func (h *Handler) MarkChatMessageRead(c *gin.Context) {
	userID, roomID, ok := chatRoute(c)
	if !ok {
		return
	}
	msgID, ok := pathUUID(c, "message_id")
	if !ok {
		return
	}
	already, err := h.Chat.MarkMessageRead(c.Request.Context(), userID, roomID, msgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "marked as read", "was_already_read": already})
}

func (h *Handler) SearchChatMessages(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	msgs, err := h.Chat.SearchMessages(c.Request.Context(), userID, c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) SearchChatRooms(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	rooms, err := h.Chat.SearchRooms(c.Request.Context(), userID, c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}
