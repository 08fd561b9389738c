package main

import (
	"direct_chat_service/internal/chat/router"

	"github.com/gofiber/fiber/v2"
)

// swag init 的入口, 只為了讓 swag 掃到路由上的註解
// swag init --output ./docs
// 真正的服務在 cmd/chat_service
func main() {
	app := fiber.New()

	router.RegisterRoutes(app, router.Handlers{})
}
