package main

import (
	"video_ingest_service/internal/ingest/api/handlers"
	"video_ingest_service/internal/ingest/api/router"

	"github.com/gofiber/fiber/v2"
)

// 此程式只用於 init swagger，服務本體在 cmd/ingest_service
// swag init output ./docs
func main() {
	app := fiber.New()

	router.RegisterRoutes(app, handlers.NewVideoHandler(nil), nil)
}
