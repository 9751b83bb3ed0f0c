package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func SetupRoutes(router *gin.Engine, controller SessionController, history HistoryStore, logger *logrus.Logger) {
	handler := NewHandler(controller, history, logger)

	api := router.Group("/api")
	{
		api.POST("/search", handler.StartSearch)
		api.GET("/state", handler.GetState)
		api.POST("/select", handler.Select)
		api.POST("/deselect", handler.Deselect)
		api.GET("/stream", handler.StreamState)
		api.GET("/heatmap", handler.GetHeatmap)
		api.GET("/history", handler.GetHistory)
	}
}
