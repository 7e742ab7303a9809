package handlers

import (
	"time"

	"gymserver/accounts"
	"gymserver/metrics"
	"gymserver/middlewares"
	"gymserver/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// RouterConfig はルーターの組み立てに必要なもの
type RouterConfig struct {
	JWTSecret   []byte
	FrontendURL string
	Directory   accounts.Directory
	Limiter     *middlewares.RateLimiter
	Gatherer    prometheus.Gatherer
	Logger      *zap.Logger
}

func SetupRouter(h *Handler, config RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestLogger(config.Logger))

	// フロントエンドからクッキー付きで呼ばれる
	if config.FrontendURL != "" {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     []string{config.FrontendURL},
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	if config.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(config.Gatherer)))
	}

	api := router.Group("/api")
	api.Use(middlewares.AuthMiddleware(config.JWTSecret, config.Directory, config.Logger))

	verify := []gin.HandlerFunc{h.VerifyCheckin}
	if config.Limiter != nil {
		verify = append([]gin.HandlerFunc{config.Limiter.Middleware()}, verify...)
	}

	api.POST("/generateQrToken", h.GenerateQrToken)
	api.POST("/verifyCheckin/:scannedToken", verify...)
	api.GET("/ws/notifications/:recipientId/:recipientRole", h.NotificationSocket)
	api.POST("/sendNotification", h.SendNotification)
	api.GET("/notifications", h.ListNotifications)
	api.PATCH("/notifications/read", h.MarkNotificationsRead)

	return router
}
