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
		log.Fatal("Failed to initialize operations service:", err)
	}

	uploader, err := export.NewS3Uploader(core.Config.AWSRegion, core.Config.ExportBucket)
	if err != nil {
		log.Fatal("Failed to initialize export storage:", err)
	}

	router := server.NewRouter("operations")
	registerRoutes(router, core, export.NewExporter(uploader))

	port := config.ServicePort("OPERATIONS_SERVICE_PORT", "8004")
	if err := server.Run(ctx, router, "Operations service", port); err != nil {
		stop()
		log.Fatal(err)
	}
}

func registerRoutes(router *gin.Engine, core *server.Core, exporter CSVExporter) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Operations service is healthy", nil)
	})

	am := core.Auth

	ops := router.Group("/operations")
	ops.Use(am.RequireAuth(), am.RequireActiveTenant())
	{
		ops.GET("/work-orders", am.RequireCapability(rbac.OperationsRead), handleListWorkOrders(core))
		ops.GET("/work-orders/:id", am.RequireCapability(rbac.OperationsRead), handleGetWorkOrder(core))
		ops.POST("/work-orders/export", am.RequireCapability(rbac.OperationsExport), handleExportWorkOrders(core, exporter))
	}
}
