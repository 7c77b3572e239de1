package api

import (
	"github.com/gin-gonic/gin"

	"github.com/calebreid/mapweave/internal/handlers"
)

func registerSharingRoutes(api *gin.RouterGroup, handler *handlers.SharingHandler) {
	maps := api.Group("/maps/:id")
	{
		maps.POST("/invitations", handler.CreateInvitation)
		maps.GET("/invitations", handler.ListInvitations)
		maps.GET("/shares", handler.ListShares)
	}

	invitations := api.Group("/invitations")
	{
		invitations.GET("/lookup", handler.LookupInvitation)
		invitations.POST("/:id/accept", handler.AcceptInvitation)
		invitations.POST("/:id/decline", handler.DeclineInvitation)
		invitations.POST("/:id/revoke", handler.RevokeInvitation)
		invitations.DELETE("/:id", handler.DeleteInvitation)
	}

	shares := api.Group("/shares")
	{
		shares.PATCH("/:id", handler.UpdateShare)
		shares.POST("/:id/revoke", handler.RevokeShare)
	}
}
