package http

import (
	"github.com/gin-gonic/gin"

	"deepresearch/internal/bootstrap"
	"deepresearch/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	researchHandler := handler.NewResearchHandler(app.Research)

	v1 := router.Group("/api/v1")
	research := v1.Group("/research")
	research.POST("", researchHandler.Start)
	research.GET("", researchHandler.History)
	research.GET("/:id", researchHandler.Detail)
	research.POST("/:id/continue", researchHandler.Continue)
	research.POST("/:id/documents", researchHandler.Upload)

	return router
}
