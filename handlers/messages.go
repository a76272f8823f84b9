package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"huntzen-care/services"
)

type SendMessageRequest struct {
	ReceiverID     uint   `json:"receiver_id" binding:"required"`
	Content        string `json:"content" binding:"required,max=5000"`
	ConsultationID *uint  `json:"consultation_id"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	msg, err := h.svc.Messages.Send(c.Request.Context(), actor(c), services.SendMessageInput{
		ReceiverID:     req.ReceiverID,
		Content:        req.Content,
		ConsultationID: req.ConsultationID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageResponse(msg))
}

func (h *Handler) ListConversations(c *gin.Context) {
	list, err := h.svc.Messages.Conversations(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toList(list, toConversationResponse))
}

func (h *Handler) GetConversation(c *gin.Context) {
	otherID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := h.svc.Messages.Conversation(c.Request.Context(), actor(c), otherID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toList(msgs, toMessageResponse))
}

func (h *Handler) UnreadMessages(c *gin.Context) {
	n, err := h.svc.Messages.UnreadCount(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}
