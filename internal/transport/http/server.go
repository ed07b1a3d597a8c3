package http

import (
	"github.com/gin-gonic/gin"

	"vidyai-rag/internal/bootstrap"
	"vidyai-rag/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	adminHandler := handler.NewAdminHandler(app.Jobs, app.Chapters)
	chapterHandler := handler.NewChapterHandler(app.Retrieval, app.Generation)
	Register(router, adminHandler, chapterHandler)

	return router
}

// Register mounts the API routes on router.
func Register(router gin.IRouter, admin *handler.AdminHandler, chapters *handler.ChapterHandler) {
	v1 := router.Group("/api/v1")

	adminGroup := v1.Group("/admin")
	adminGroup.POST("/chapters/:id/ingest", admin.Ingest)
	adminGroup.POST("/chapters/:id/ensure", admin.Ensure)
	adminGroup.GET("/chapters/:id/stats", admin.Stats)
	adminGroup.GET("/jobs/:id", admin.GetJob)

	chapterGroup := v1.Group("/chapters")
	chapterGroup.POST("/:id/context", chapters.Context)
	chapterGroup.POST("/:id/questions", chapters.Questions)
}
