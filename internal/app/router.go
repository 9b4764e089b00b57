package app

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"dealpipe.io/dealpipe/internal/api/handlers"
	"dealpipe.io/dealpipe/internal/api/middleware"
	"dealpipe.io/dealpipe/internal/config"
)

// Public routes that do NOT require JWT authentication.
var publicPrefixes = []string{
	"/api/v1/health/",
}

// adminPrefixes are routes that require pipeline:admin permission.
var adminPrefixes = []string{
	"/api/v1/admin/",
}

func newRouter(cfg *config.Config, server *handlers.Server, jwtCfg middleware.JWTConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())

	if len(cfg.Server.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if len(cfg.Security.TrustedProxies) > 0 {
		_ = router.SetTrustedProxies(cfg.Security.TrustedProxies)
	}

	router.Use(jwtSkipPublic(jwtCfg.SigningKey))
	router.Use(rbacAdminRoutes())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health/live", server.GetLiveness)
		v1.GET("/health/ready", server.GetReadiness)

		v1.POST("/deals/:id/transition", server.TransitionDeal)
		v1.GET("/deals", server.ListDeals)
		v1.GET("/deals/:id/history", server.GetDealHistory)

		v1.GET("/board", server.GetBoard)
		v1.GET("/stages", server.ListStages)
		v1.GET("/metrics/velocity", server.GetVelocity)

		v1.GET("/notifications", server.ListNotifications)
		v1.POST("/notifications/:id/read", server.MarkNotificationRead)

		v1.POST("/admin/pipeline/reload", server.ReloadPipeline)
	}

	return router
}

// jwtSkipPublic returns middleware that applies JWT auth only on non-public routes.
func jwtSkipPublic(signingKey []byte) gin.HandlerFunc {
	jwtMw := middleware.JWTAuth(signingKey)
	return func(c *gin.Context) {
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}
		jwtMw(c)
	}
}

// rbacAdminRoutes returns middleware enforcing pipeline:admin on admin endpoints.
func rbacAdminRoutes() gin.HandlerFunc {
	adminMw := middleware.RequirePermission(middleware.PermissionAdmin)
	return func(c *gin.Context) {
		for _, prefix := range adminPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				adminMw(c)
				return
			}
		}
		c.Next()
	}
}
