package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/tallerops/admin-console/shared/config"
	"github.com/tallerops/admin-console/shared/server"
	"github.com/tallerops/admin-console/shared/utils"
)

func main() {
	ctx, stop := server.SignalContext()
	defer stop()

	core, err := server.Bootstrap(ctx)
	if err != nil {
		log.Fatal("Failed to initialize auth service:", err)
	}

	router := server.NewRouter("auth")
	registerRoutes(router, core)

	port := config.ServicePort("AUTH_SERVICE_PORT", "8001")
	if err := server.Run(ctx, router, "Auth service", port); err != nil {
		stop()
		log.Fatal(err)
	}
}

func registerRoutes(router *gin.Engine, core *server.Core) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Auth service is healthy", nil)
	})

	auth := router.Group("/auth")
	{
		auth.POST("/login", handleLogin(core))
		auth.POST("/signup", handleSignup(core))
		auth.GET("/me", core.Auth.RequireAuth(), handleMe(core))
		auth.POST("/logout", core.Auth.RequireAuth(), handleLogout(core))
	}
}
