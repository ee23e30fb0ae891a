package controller

import (
	"fmt"
	"log"
	"net/http"

	"chat-sync-client/conf"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the local bridge routes a UI shell drives.
func NewRouter(ctl *ChatController) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(Cors())
	router.Use(Logger())

	v1 := router.Group("/v1")
	{
		chatGroup := v1.Group("/chat")
		{
			chatGroup.POST("/open", ctl.OpenConversation)
			chatGroup.POST("/close", ctl.CloseConversation)
			chatGroup.GET("/messages", ctl.GetMessages)
			chatGroup.GET("/presence", ctl.GetPresence)
			chatGroup.POST("/send", ctl.SendText)
			chatGroup.POST("/typing", ctl.InputChanged)
			chatGroup.POST("/location", ctl.ShareLocation)
			chatGroup.GET("/attachments", ctl.GetPendingAttachments)
			chatGroup.POST("/attachments", ctl.AddAttachment)
			chatGroup.POST("/attachments/remove", ctl.RemoveAttachment)
			chatGroup.POST("/attachments/send", ctl.SendAttachments)
		}

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", ctl.SetToken)
			authGroup.POST("/logout", ctl.Logout)
		}
	}
	return router
}

// Run serves router on the configured local address until it fails.
func Run(router *gin.Engine) error {
	host := conf.Net
	if host == "" {
		host = "127.0.0.1"
	}
	addr := fmt.Sprintf("%s:%s", host, conf.Port)
	log.Printf("🌐 Local bridge listening on %s", addr)
	return router.Run(addr)
}

func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			log.Printf("⚠️ %s %s -> %d", c.Request.Method, c.Request.URL.Path, status)
		}
	}
}
