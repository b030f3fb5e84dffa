// Package server wires the pieces every HTTP service shares: database,
// principal resolution, access gates, audit and the base router.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tallerops/admin-console/shared/audit"
	"github.com/tallerops/admin-console/shared/auth"
	"github.com/tallerops/admin-console/shared/config"
	"github.com/tallerops/admin-console/shared/metrics"
	"github.com/tallerops/admin-console/shared/middleware"
	"github.com/tallerops/admin-console/shared/rbac"
	"github.com/tallerops/admin-console/shared/store"
	"github.com/tallerops/admin-console/shared/tenancy"
	"github.com/tallerops/admin-console/shared/utils"
)

// Core holds the collaborators of a console service
type Core struct {
	Config      *config.AppConfig
	DB          *gorm.DB
	Store       *store.Store
	Resolver    *auth.Resolver
	Bootstrap   *rbac.BootstrapGate
	Lifecycle   *tenancy.LifecycleGate
	Auth        *middleware.AuthMiddleware
	Audit       *audit.Recorder
	Issuer      *auth.Issuer
	Revocations *utils.TokenRevocations
}

// NewCore builds the shared collaborators on top of db. Redis is optional:
// without it logout cannot revoke credentials before they expire.
func NewCore(ctx context.Context, cfg *config.AppConfig, db *gorm.DB) (*Core, error) {
	verifierCfg := auth.VerifierConfig{
		HMACSecret: cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
	}
	if cfg.JWKSURL != "" {
		verifierCfg.Keys = utils.NewJWKSKeySource(cfg.JWKSURL)
	}
	verifier, err := auth.NewTokenVerifier(verifierCfg)
	if err != nil {
		return nil, err
	}

	st := store.New(db)
	core := &Core{
		Config:    cfg,
		DB:        db,
		Store:     st,
		Bootstrap: rbac.NewBootstrapGate(cfg.BootstrapAdminEmail, st),
		Lifecycle: tenancy.NewLifecycleGate(st),
		Audit:     audit.NewRecorder(audit.NewGormStore(db)),
		Issuer:    auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer),
	}

	var revocations auth.RevocationList
	if cfg.RedisEnabled {
		redisCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := utils.NewRedisClient(redisCtx)
		cancel()
		if err != nil {
			logrus.Warnf("Failed to connect to Redis, token revocation disabled: %v", err)
		} else {
			core.Revocations = utils.NewTokenRevocations(client)
			revocations = core.Revocations
		}
	}

	core.Resolver = auth.NewResolver(verifier, st, revocations)
	core.Auth = middleware.NewAuthMiddleware(core.Resolver, core.Bootstrap, core.Lifecycle)
	return core, nil
}

// Bootstrap loads env and config, connects the database and builds a Core
func Bootstrap(ctx context.Context) (*Core, error) {
	config.LoadEnv()
	cfg := config.LoadAppConfig()
	cfg.ConfigureLogging()

	db, err := config.ConnectDatabase()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := config.Migrate(db); err != nil {
			return nil, err
		}
	}
	return NewCore(ctx, cfg, db)
}

// NewRouter returns a gin engine with recovery, request id, request logging,
// metrics and a /metrics endpoint
func NewRouter(service string) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(service),
		metrics.Middleware(service),
	)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	return router
}

// ShutdownTimeout bounds how long in-flight requests may take after a stop
const ShutdownTimeout = 10 * time.Second

// SignalContext is cancelled on SIGINT or SIGTERM
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Run serves handler on port until ctx is done, then drains in-flight requests
func Run(ctx context.Context, handler http.Handler, service, port string) error {
	ln, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", service, err)
	}
	logrus.Infof("%s starting on port %s", service, port)
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	return Serve(ctx, srv, ln, service)
}

// Serve runs srv on ln until ctx is done or the server fails
func Serve(ctx context.Context, srv *http.Server, ln net.Listener, service string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s stopped: %w", service, err)
	case <-ctx.Done():
	}

	logrus.Infof("%s shutting down", service)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown %s: %w", service, err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s stopped: %w", service, err)
	}
	return nil
}
