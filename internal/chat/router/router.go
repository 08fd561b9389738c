package router

import (
	"context"

	"direct_chat_service/internal/chat/api/handlers"
	"direct_chat_service/internal/chat/app"
	"direct_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
)

// Handlers everything the routes dispatch to
type Handlers struct {
	Member        *handlers.MemberHandler
	Conversation  *handlers.ConversationHandler
	Message       *handlers.MessageHandler
	ChatWebsocket *app.ChatWebsocketHandler
	Sessions      middlewares.SessionChecker
}

// RegisterRoutes 注册 REST 與 websocket 路由
// @title Direct Chat Service API
// @version 1.0
// @description Two party chat: REST for persistence, /ws for presence, typing and delivery
// @host localhost:8080
// @BasePath /
func RegisterRoutes(r *fiber.App, h Handlers) {
	r.Get("/swagger/*", swagger.HandlerDefault)
	r.Get("/", handlers.ConnectCheck)
	r.Post("/debug", handlers.DebugLogFlag)

	api := r.Group("/api")
	auth := api.Group("/auth")
	auth.Post("/register", h.Member.Register)
	auth.Post("/login", h.Member.Login)

	jwt := middlewares.JWTMiddleware()
	session := middlewares.SessionMiddleware(h.Sessions)
	auth.Post("/logout", jwt, session, h.Member.Logout)

	users := api.Group("/users", jwt, session)
	users.Get("/me", h.Member.Me)
	users.Get("/search", h.Member.Search)
	users.Post("/avatar", h.Member.UploadAvatar)

	conversations := api.Group("/conversations", jwt, session)
	conversations.Get("/", h.Conversation.List)
	conversations.Post("/", h.Conversation.Open)

	messages := api.Group("/messages", jwt, session)
	messages.Get("/:conversationId", h.Message.History)
	messages.Post("/", h.Message.Create)

	r.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}, jwt, session)

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		h.ChatWebsocket.HandleConnection(context.Background(), c)
	}))
}
