package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/tallerops/admin-console/shared/config"
	"github.com/tallerops/admin-console/shared/export"
	"github.com/tallerops/admin-console/shared/rbac"
	"github.com/tallerops/admin-console/shared/server"
	"github.com/tallerops/admin-console/shared/utils"
)

func main() {
	ctx, stop := server.SignalContext()
	defer stop()

	core, err := server.Bootstrap(ctx)
	if err != nil {
		log.Fatal("Failed to initialize audit service:", err)
	}

	uploader, err := export.NewS3Uploader(core.Config.AWSRegion, core.Config.ExportBucket)
	if err != nil {
		log.Fatal("Failed to initialize export storage:", err)
	}

	router := server.NewRouter("audit")
	registerRoutes(router, core, export.NewExporter(uploader))

	port := config.ServicePort("AUDIT_SERVICE_PORT", "8005")
	if err := server.Run(ctx, router, "Audit service", port); err != nil {
		stop()
		log.Fatal(err)
	}
}

func registerRoutes(router *gin.Engine, core *server.Core, exporter CSVExporter) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Audit service is healthy", nil)
	})

	am := core.Auth

	group := router.Group("/audit")
	group.Use(am.RequireAuth(), am.RequireActiveTenant())
	{
		group.GET("", am.RequireCapability(rbac.AuditRead), handleQueryAudit(core))
		group.GET("/:id", am.RequireCapability(rbac.AuditRead), handleGetAudit(core))
		group.POST("/export", am.RequireCapability(rbac.AuditExport), handleExportAudit(core, exporter))
	}
}
