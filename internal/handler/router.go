package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/kube-rca/auth/internal/service"
)

// NewRouter registers every route on a fresh gin engine.
func NewRouter(svc *service.AuthService, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(AccessLogger(), gin.Recovery(), RequestID(), CORSMiddleware(allowedOrigins, false))

	router.GET("/ping", Ping)
	router.GET("/", Root)

	authHandler := NewAuthHandler(svc)

	v1 := router.Group("/api/v1")
	v1.GET("/openapi.json", OpenAPIDoc)
	v1.POST("/login/", authHandler.LoginAccess)

	users := v1.Group("/users")
	users.POST("/register", authHandler.Register)
	users.POST("/login", authHandler.LoginForm)
	users.GET("/refresh", authHandler.Refresh)

	// 인증 필요 라우트
	protected := users.Group("", AuthMiddleware(svc))
	protected.GET("/me", authHandler.Me)

	return router
}
