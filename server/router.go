// Package server is the HTTP surface: dashboard REST routes under /api, the
// webhook endpoint and the websocket endpoint, all on one gin engine.
package server

import (
	"net/http"
	"time"

	"github.com/Luismorlan/pagemux/app_config"
	"github.com/Luismorlan/pagemux/realtime"
	"github.com/Luismorlan/pagemux/server/middlewares"
	"github.com/Luismorlan/pagemux/webhook"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Routes struct {
	Dashboard *Dashboard
	Webhook   *webhook.Handler
	Socket    *realtime.SocketHandler
}

// NewRouter wires every route. With bypassAuth the dashboard trusts the
// "sub" header instead of a JWT.
func NewRouter(c app_config.Config, routes Routes, bypassAuth bool) *gin.Engine {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{c.ClientURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	router.GET("/webhook", webhook.HandleVerification(c.WebhookVerifyToken))
	router.POST("/webhook", webhook.RequireSignature(c.FacebookAppSecret), routes.Webhook.HandleDelivery)
	router.GET("/socket", routes.Socket.Handle)

	auth := middlewares.JWT(c.JWTSecret)
	if bypassAuth {
		auth = middlewares.DevAuth()
	}
	h := NewHandlers(routes.Dashboard)
	api := router.Group("/api", middlewares.ErrorHandler(), auth)

	api.GET("/fanpages", h.ListFanpages)
	api.POST("/fanpages/connect", h.ConnectFanpage)
	api.DELETE("/fanpages/:id", h.DisconnectFanpage)
	api.POST("/fanpages/:id/refresh-token", h.RefreshFanpageToken)
	api.GET("/fanpages/:id/posts", h.ListPosts)

	api.POST("/posts/:fanpageId", h.CreatePost)
	api.PUT("/posts/:id", h.UpdatePost)
	api.DELETE("/posts/:id", h.DeletePost)

	api.GET("/comments/:postId", h.ListComments)
	api.POST("/comments/:id/reply", h.ReplyToComment)
	api.POST("/comments/:id/hide", h.HideComment)

	// :id is the fanpage id on conversation routes and the message id on
	// follow.
	api.POST("/messages/:id/follow", h.FollowMessage)
	api.GET("/messages/:id/:conversationId", h.ListMessages)
	api.POST("/messages/:id/:conversationId", h.SendMessage)

	api.GET("/notifications", h.ListNotifications)
	api.POST("/notifications/:id/read", h.MarkNotificationRead)

	return router
}
