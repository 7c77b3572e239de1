package api

import (
	"github.com/gin-gonic/gin"

	"github.com/calebreid/mapweave/internal/handlers"
)

func registerMapRoutes(api *gin.RouterGroup, handler *handlers.MapHandler) {
	maps := api.Group("/maps")
	{
		maps.POST("", handler.Create)
		maps.GET("", handler.List)
		maps.GET("/:id", handler.Get)
		maps.PATCH("/:id", handler.Update)
		maps.DELETE("/:id", handler.Delete)
	}
}
