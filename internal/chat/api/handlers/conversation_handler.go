package handlers

import (
	"direct_chat_service/internal/chat/app"
	"direct_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// ConversationHandler /api/conversations
type ConversationHandler struct {
	convUC app.ConversationUseCase
}

// NewConversationHandler create ConversationHandler
func NewConversationHandler(convUC app.ConversationUseCase) *ConversationHandler {
	return &ConversationHandler{convUC: convUC}
}

// OpenConversationRequest body of POST /api/conversations
type OpenConversationRequest struct {
	Recipient string `json:"recipient"`
}

// List 取得自己的對話
// @Summary List conversations
// @Description newest first, lastMessage populated, unreadCount per conversation
// @Tags Conversations
// @Produce json
// @Success 200 {array} domain.Conversation
// @Router /api/conversations [get]
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	id, ok := middlewares.MemberID(c)
	if !ok {
		return unauthorized(c)
	}
	convs, err := h.convUC.List(c.UserContext(), id)
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(convs)
}

// Open 取得或建立與 recipient 的對話
// @Summary Open conversation
// @Tags Conversations
// @Accept json
// @Produce json
// @Param request body OpenConversationRequest true "recipient member id"
// @Success 200 {object} domain.Conversation
// @Failure 400 {object} map[string]string "invalid recipient"
// @Router /api/conversations [post]
func (h *ConversationHandler) Open(c *fiber.Ctx) error {
	id, ok := middlewares.MemberID(c)
	if !ok {
		return unauthorized(c)
	}
	var req OpenConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	conv, err := h.convUC.Open(c.UserContext(), id, req.Recipient)
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(conv)
}
