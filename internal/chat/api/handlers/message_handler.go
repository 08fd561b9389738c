package handlers

import (
	"direct_chat_service/internal/chat/app"
	"direct_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// MessageHandler /api/messages
type MessageHandler struct {
	msgUC app.MessageUseCase
}

// NewMessageHandler create MessageHandler
func NewMessageHandler(msgUC app.MessageUseCase) *MessageHandler {
	return &MessageHandler{msgUC: msgUC}
}

// CreateMessageRequest body of POST /api/messages
type CreateMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// History 取得對話訊息
// @Summary Conversation history
// @Description oldest first; the peer's messages are marked read after the fetch
// @Tags Messages
// @Produce json
// @Param conversationId path string true "conversation id"
// @Success 200 {array} domain.Message
// @Failure 403 {object} map[string]string "not a participant"
// @Router /api/messages/{conversationId} [get]
func (h *MessageHandler) History(c *fiber.Ctx) error {
	id, ok := middlewares.MemberID(c)
	if !ok {
		return unauthorized(c)
	}
	msgs, err := h.msgUC.History(c.UserContext(), id, c.Params("conversationId"))
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(msgs)
}

// Create 送出訊息, 之後由 client 透過 websocket 發 new_message 做即時投遞
// @Summary Create message
// @Tags Messages
// @Accept json
// @Produce json
// @Param request body CreateMessageRequest true "message"
// @Success 201 {object} domain.Message
// @Failure 400 {object} map[string]string "empty content"
// @Failure 403 {object} map[string]string "not a participant"
// @Router /api/messages [post]
func (h *MessageHandler) Create(c *fiber.Ctx) error {
	id, ok := middlewares.MemberID(c)
	if !ok {
		return unauthorized(c)
	}
	var req CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	msg, err := h.msgUC.Create(c.UserContext(), id, req.ConversationID, req.Content)
	if err != nil {
		return replyError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}
