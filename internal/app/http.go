package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-taskboard/internal/billing"
	"github.com/adanyl0v/go-taskboard/internal/board"
	"github.com/adanyl0v/go-taskboard/internal/config"
	"github.com/adanyl0v/go-taskboard/internal/delivery/http/v1"
	"github.com/adanyl0v/go-taskboard/internal/models"
	"github.com/adanyl0v/go-taskboard/internal/services"
	"github.com/adanyl0v/go-taskboard/internal/subscription"
)

const billingPrefix = "/functions/v1"

var globalRegistry *board.Registry

func MustListenAndServeHTTP() {
	cfg := config.Global()
	if cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	httpCfg := cfg.HTTP

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	registerRoutes(router)

	evictCtx, stopEviction := context.WithCancel(context.Background())
	defer stopEviction()
	go globalRegistry.RunEviction(evictCtx, cfg.Board.SessionIdleTTL)

	server := &http.Server{
		Addr:    net.JoinHostPort(httpCfg.Host, httpCfg.Port),
		Handler: router,
	}

	go func() {
		globalLogger.Info().
			Str("host", httpCfg.Host).
			Str("port", httpCfg.Port).
			Msg("setting up http server")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			globalLogger.Error().
				Err(err).
				Msg("failed to listen and serve http")
			panic(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	globalLogger.Info().
		Msg("shutting down http server")

	// Open event streams only end when their sessions do.
	stopEviction()
	globalRegistry.Close()

	ctx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
	defer cancel()

	err := server.Shutdown(ctx)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to shutdown http server")
		panic(err)
	}
	globalLogger.Info().Msg("shut down http server")
}

func registerRoutes(router *gin.Engine) {
	cfg := config.Global()

	authService := services.NewAuthService(
		globalLogger,
		globalPostgresPool,
		cfg.JWT.Issuer,
		[]byte(cfg.JWT.SigningKey),
		cfg.JWT.AccessTokenTTL,
	)

	var cache subscription.Cache
	if globalRedisClient != nil {
		cache = subscription.NewRedisCache(globalRedisClient, cfg.Redis.CounterTTL)
	}
	provider := subscription.NewProvider(
		globalLogger.With().Str("component", "subscription").Logger(),
		services.NewSubscriptionService(globalLogger, globalPostgresPool),
		cache,
	)

	globalRegistry = board.NewRegistry(
		globalLogger.With().Str("component", "board").Logger(),
		board.Config{
			FreeTierCeiling: cfg.Board.FreeTierCeiling,
			RequestTimeout:  cfg.Board.RequestTimeout,
		},
		board.Remote{
			Tasks:         services.NewTaskService(globalLogger, globalPostgresPool),
			Collaborators: services.NewCollaboratorService(globalLogger, globalPostgresPool),
			Profiles:      services.NewProfileService(globalLogger, globalPostgresPool),
		},
		provider,
		globalHub,
	)

	v1Handler := v1.New(
		globalLogger,
		authService,
		func(ctx context.Context, user *models.User) v1.Board {
			return globalRegistry.Session(ctx, user)
		},
		cfg.HTTP.StreamHeartbeat,
	)

	// Preflight requests match no route, so CORS runs on the engine.
	// The billing function answers its own.
	apiCORS := cors.New(newCORSConfig(cfg.HTTP.AllowOrigins))
	router.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, billingPrefix) {
			return
		}
		apiCORS(c)
	})
	v1.RegisterRoutes(router.Group("/api/v1"), v1Handler)

	billingHandler := billing.NewHandler(
		globalLogger.With().Str("component", "billing").Logger(),
		authService,
		billing.NewStripePortal(cfg.Billing.StripeSecretKey),
		cfg.Billing.SiteURL,
	)
	billingHandler.Register(router.Group(billingPrefix))
}

func newCORSConfig(origins []string) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			corsCfg.AllowAllOrigins = true
			return corsCfg
		}
	}
	corsCfg.AllowOrigins = origins
	return corsCfg
}
