package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/tallerops/admin-console/shared/config"
	"github.com/tallerops/admin-console/shared/rbac"
	"github.com/tallerops/admin-console/shared/server"
	"github.com/tallerops/admin-console/shared/utils"
)

func main() {
	ctx, stop := server.SignalContext()
	defer stop()

	core, err := server.Bootstrap(ctx)
	if err != nil {
		log.Fatal("Failed to initialize tenant service:", err)
	}

	router := server.NewRouter("tenant")
	registerRoutes(router, core)

	port := config.ServicePort("TENANT_SERVICE_PORT", "8002")
	if err := server.Run(ctx, router, "Tenant service", port); err != nil {
		stop()
		log.Fatal(err)
	}
}

func registerRoutes(router *gin.Engine, core *server.Core) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Tenant service is healthy", nil)
	})

	am := core.Auth

	tenants := router.Group("/tenants")
	tenants.Use(am.RequireAuth(), am.RequireActiveTenant())
	{
		tenants.POST("", am.RequireSuperAdmin(), handleCreateTenant(core))
		tenants.GET("", am.RequireCapability(rbac.TenantsRead), handleListTenants(core))
		tenants.GET("/:id", am.RequireCapability(rbac.TenantsRead), handleGetTenant(core))
		tenants.PUT("/:id", am.RequireCapability(rbac.TenantsWrite), handleUpdateTenant(core))
		tenants.DELETE("/:id", am.RequireSuperAdmin(), am.RequireCapability(rbac.TenantsDelete), handleDeleteTenant(core))

		tenants.POST("/:id/activate", am.RequireSuperAdmin(), handleTransition(core, "activate"))
		tenants.POST("/:id/suspend", am.RequireSuperAdmin(), handleTransition(core, "suspend"))
		tenants.POST("/:id/cancel", am.RequireSuperAdmin(), handleTransition(core, "cancel"))

		tenants.GET("/:id/settings", am.RequireCapability(rbac.ConfigRead), handleGetSettings(core))
		tenants.PUT("/:id/settings", am.RequireCapability(rbac.ConfigWrite), handleUpdateSettings(core))

		tenants.GET("/:id/mercadopago", am.RequireCapability(rbac.MercadoPagoRead), handleGetMercadoPago(core))
		tenants.PUT("/:id/mercadopago", am.RequireCapability(rbac.MercadoPagoWrite), handleUpdateMercadoPago(core))
	}

	users := router.Group("/users")
	users.Use(am.RequireAuth(), am.RequireActiveTenant())
	{
		users.GET("", am.RequireCapability(rbac.UsersRead), handleListUsers(core))
		users.GET("/:id", am.RequireCapability(rbac.UsersRead), handleGetUser(core))
		users.POST("/invite", am.RequireCapability(rbac.UsersInvite), handleInviteUser(core))
		users.PUT("/:id", am.RequireCapability(rbac.UsersWrite), handleUpdateUser(core))
		users.POST("/:id/block", am.RequireCapability(rbac.UsersWrite), handleSetActive(core, false))
		users.POST("/:id/unblock", am.RequireCapability(rbac.UsersWrite), handleSetActive(core, true))
		users.DELETE("/:id", am.RequireCapability(rbac.UsersDelete), handleDeleteUser(core))
	}
}
