package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/tallerops/admin-console/shared/config"
	"github.com/tallerops/admin-console/shared/server"
	"github.com/tallerops/admin-console/shared/utils"
)

func main() {
	config.LoadEnv()
	cfg := config.LoadAppConfig()
	cfg.ConfigureLogging()

	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if cfg.AutoMigrate {
		if err := config.Migrate(db); err != nil {
			log.Fatal(err)
		}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBroker),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	defer writer.Close()

	relay := NewRelay(db, writer)

	ctx, stop := server.SignalContext()
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		relay.Run(ctx)
	}()

	router := server.NewRouter("audit-relay")
	registerRoutes(router, relay)

	port := config.ServicePort("AUDIT_RELAY_PORT", "8085")
	if err := server.Run(ctx, router, "Audit relay", port); err != nil {
		logrus.Error(err)
		stop()
	}
	<-done
}

func registerRoutes(router *gin.Engine, relay *Relay) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Audit relay is healthy", nil)
	})

	router.GET("/stats", func(c *gin.Context) {
		stats, err := relay.Stats(c.Request.Context())
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		utils.OKResponse(c, "Outbox statistics", stats)
	})
}
