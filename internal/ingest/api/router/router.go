package router

import (
	"video_ingest_service/internal/ingest/api/handlers"
	"video_ingest_service/pkg/metrics"
	"video_ingest_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
)

// RegisterRoutes 注册影片相关的路由
// @title Video Ingest Service API
// @version 1.0
// @description Splits oversized videos into parts, uploads them with retries and deletes them with reconciliation
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func RegisterRoutes(app *fiber.App, videoHandler *handlers.VideoHandler, m *metrics.Metrics) {
	app.Use(m.Middleware())

	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Get("/", handlers.ConnectCheck)
	app.Post("/debug", handlers.DebugLogFlag)
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	videoRoutes := app.Group("/videos", middlewares.JWTMiddleware())
	videoRoutes.Post("/", videoHandler.UploadVideo)
	videoRoutes.Get("/:id", videoHandler.GetVideo)
	videoRoutes.Get("/:id/playback", videoHandler.GetPlayback)
	videoRoutes.Patch("/:id", videoHandler.UpdateVideo)
	videoRoutes.Delete("/:id", videoHandler.DeleteVideo)

	runRoutes := app.Group("/ingest-runs", middlewares.JWTMiddleware())
	runRoutes.Get("/", videoHandler.ListRuns)
}
