package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/http/middleware"
	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/store"
)

// MessageHandler is the stateless REST surface over the durable message log,
// used for initial page load, pagination and history when no realtime
// connection is active.
type MessageHandler struct {
	Store *store.Store
}

func (h *MessageHandler) ListConversations(c *gin.Context) {
	ident := middleware.MustIdentity(c)

	convs, err := h.Store.UserConversations(c.Request.Context(), ident.ID)
	if err != nil {
		log.Printf("list conversations: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": convs})
}

func (h *MessageHandler) GetConversation(c *gin.Context) {
	ident := middleware.MustIdentity(c)

	partnerID := c.Param("userId")
	if partnerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing user id"})
		return
	}

	page := 1
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	msgs, err := h.Store.Conversation(c.Request.Context(), ident.ID, partnerID, limit, (page-1)*limit)
	if err != nil {
		log.Printf("load conversation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load conversation"})
		return
	}

	// Viewing the conversation acknowledges everything the partner sent.
	if err := h.Store.MarkConversationRead(c.Request.Context(), partnerID, ident.ID); err != nil {
		log.Printf("mark conversation read: %v", err)
	}

	// Query is newest-first; reverse so the UI renders chronologically.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	c.JSON(http.StatusOK, gin.H{"data": msgs})
}

func (h *MessageHandler) MarkMessageRead(c *gin.Context) {
	ident := middleware.MustIdentity(c)

	id, err := strconv.ParseUint(c.Param("messageId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "message not found"})
		return
	}

	msg, err := h.Store.MarkMessageRead(c.Request.Context(), id, ident.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "message not found"})
	case errors.Is(err, store.ErrNotRecipient):
		c.JSON(http.StatusForbidden, gin.H{"message": "not authorized to mark this message as read"})
	case err != nil:
		log.Printf("mark message read: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to mark message as read"})
	default:
		c.JSON(http.StatusOK, gin.H{"data": msg})
	}
}
