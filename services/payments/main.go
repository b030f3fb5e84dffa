package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/tallerops/admin-console/shared/config"
	"github.com/tallerops/admin-console/shared/payments"
	"github.com/tallerops/admin-console/shared/rbac"
	"github.com/tallerops/admin-console/shared/server"
	"github.com/tallerops/admin-console/shared/utils"
)

func main() {
	ctx, stop := server.SignalContext()
	defer stop()

	core, err := server.Bootstrap(ctx)
	if err != nil {
		log.Fatal("Failed to initialize payments service:", err)
	}

	processor := payments.NewClient(core.Config.MercadoPagoBaseURL, core.Config.ProcessorTimeout)

	router := server.NewRouter("payments")
	registerRoutes(router, core, processor)

	port := config.ServicePort("PAYMENTS_SERVICE_PORT", "8003")
	if err := server.Run(ctx, router, "Payments service", port); err != nil {
		stop()
		log.Fatal(err)
	}
}

func registerRoutes(router *gin.Engine, core *server.Core, processor Processor) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		var data gin.H
		if b, ok := processor.(interface{ BreakerState() utils.BreakerState }); ok {
			data = gin.H{"processor_breaker": b.BreakerState()}
		}
		utils.OKResponse(c, "Payments service is healthy", data)
	})

	am := core.Auth

	group := router.Group("/payments")
	group.Use(am.RequireAuth(), am.RequireActiveTenant())
	{
		group.GET("", am.RequireCapability(rbac.PaymentsRead), handleListPayments(core))
		group.GET("/:id", am.RequireCapability(rbac.PaymentsRead), handleGetPayment(core))
		group.POST("/:id/refund", am.RequireCapability(rbac.PaymentsRefund), handleRefund(core, processor))
	}

	router.POST("/webhooks/mercadopago", handleWebhook(core, processor))
}
