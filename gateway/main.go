package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/tallerops/admin-console/shared/config"
	"github.com/tallerops/admin-console/shared/middleware"
	"github.com/tallerops/admin-console/shared/server"
	"github.com/tallerops/admin-console/shared/utils"
)

func main() {
	ctx, stop := server.SignalContext()
	defer stop()

	core, err := server.Bootstrap(ctx)
	if err != nil {
		log.Fatal("Failed to initialize gateway:", err)
	}

	clients := &ServiceClients{
		Auth:       NewServiceClient("auth", os.Getenv("AUTH_SERVICE_URL")),
		Tenant:     NewServiceClient("tenant", os.Getenv("TENANT_SERVICE_URL")),
		Payments:   NewServiceClient("payments", os.Getenv("PAYMENTS_SERVICE_URL")),
		Operations: NewServiceClient("operations", os.Getenv("OPERATIONS_SERVICE_URL")),
		Audit:      NewServiceClient("audit", os.Getenv("AUDIT_SERVICE_URL")),
	}

	router := server.NewRouter("gateway")
	router.Use(middleware.CORS())
	registerRoutes(router, core.Auth, clients)

	port := config.ServicePort("API_GATEWAY_PORT", "8080")
	if err := server.Run(ctx, router, "API Gateway", port); err != nil {
		stop()
		log.Fatal(err)
	}
}

func registerRoutes(router *gin.Engine, am *middleware.AuthMiddleware, clients *ServiceClients) {
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "API Gateway is healthy", nil)
	})
	router.GET("/health/services", am.RequireAuth(), am.RequireSuperAdmin(), func(c *gin.Context) {
		utils.OKResponse(c, "Service status", clients.GetServiceStatus())
	})

	// Public routes
	router.POST("/auth/login", clients.Auth.ProxyRequest)
	router.POST("/auth/signup", clients.Auth.ProxyRequest)
	router.POST("/webhooks/mercadopago", clients.Payments.ProxyRequest)

	// Everything else requires a verified principal; services apply their
	// own capability and tenant checks
	authed := router.Group("")
	authed.Use(am.RequireAuth())
	{
		authed.GET("/auth/me", clients.Auth.ProxyRequest)
		authed.POST("/auth/logout", clients.Auth.ProxyRequest)

		proxyTree(authed, "/tenants", clients.Tenant)
		proxyTree(authed, "/users", clients.Tenant)
		proxyTree(authed, "/payments", clients.Payments)
		proxyTree(authed, "/operations", clients.Operations)
		proxyTree(authed, "/audit", clients.Audit)
	}
}

// proxyTree forwards prefix and everything below it to sc
func proxyTree(group *gin.RouterGroup, prefix string, sc *ServiceClient) {
	group.Any(prefix, sc.ProxyRequest)
	group.Any(prefix+"/*path", sc.ProxyRequest)
}
