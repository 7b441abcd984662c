package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/road-vision/internal/auth"
	"github.com/ukydev/road-vision/internal/config"
	"github.com/ukydev/road-vision/internal/db"
	"github.com/ukydev/road-vision/internal/gateway"
	"github.com/ukydev/road-vision/internal/handlers"
	"github.com/ukydev/road-vision/internal/hub"
	"github.com/ukydev/road-vision/internal/middleware"
	"github.com/ukydev/road-vision/internal/models"
	"github.com/ukydev/road-vision/internal/mqttingest"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout   = 10 * time.Second
	limiterPruneEvery = time.Minute
)

type server struct {
	http       *http.Server
	store      db.ProcessedAgentDataCollection
	limiter    *middleware.RateLimitMiddleware
	subscriber *mqttingest.Subscriber
	logger     logrus.FieldLogger
}

func openStore(ctx context.Context, cfg config.Config) (db.ProcessedAgentDataCollection, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		store, err := db.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := store.InitSchema(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		return store, nil
	case config.DriverMongo:
		client, err := db.ConnectMongo(cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		return db.NewMongoCollection(client.Database(cfg.MongoDB)), nil
	default:
		store, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := store.InitSchema(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		return store, nil
	}
}

func newAuthService(cfg config.Config) (*auth.Service, error) {
	if !cfg.AuthEnabled() {
		return nil, nil
	}
	var operators []models.Operator
	if cfg.AuthUsername != "" {
		operators = append(operators, models.Operator{
			Username:     cfg.AuthUsername,
			PasswordHash: cfg.AuthPasswordHash,
			Role:         models.RoleAdmin,
		})
	}
	return auth.NewService(cfg.JWTSecret, cfg.JWTExpiry, operators...)
}

func newServer(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*server, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}

	authService, err := newAuthService(cfg)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry := hub.NewRegistry(cfg.WSSendTimeout, logger.WithField("component", "hub"), hub.NewMetrics(reg))
	gw := gateway.New(store, registry, logger.WithField("component", "gateway"), gateway.NewMetrics(reg))
	limiter := middleware.NewRateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst)

	handler, subs := handlers.NewRouter(handlers.RouterConfig{
		Gateway:     gw,
		Registry:    registry,
		Auth:        authService,
		RateLimiter: limiter,
		Gatherer:    reg,
		Logger:      logger.WithField("component", "http"),
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer.RegisterOnShutdown(subs.Close)

	s := &server{http: httpServer, store: store, limiter: limiter, logger: logger}
	if cfg.MQTTBroker != "" {
		client := mqttingest.NewClient(cfg.MQTTBroker, fmt.Sprintf("road-vision-edge-%d", time.Now().UnixNano()))
		s.subscriber = mqttingest.NewSubscriber(client, cfg.MQTTTopic, gw, logger.WithField("component", "mqtt"))
	}
	return s, nil
}

// run serves until ctx is done, then shuts everything down.
func (s *server) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.WithField("addr", s.http.Addr).Info("HTTP server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(limiterPruneEvery)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.limiter.Prune(10 * limiterPruneEvery)
			}
		}
	})

	if s.subscriber != nil {
		g.Go(func() error {
			return s.subscriber.Run(gctx)
		})
	}

	err := g.Wait()
	if cerr := s.store.Close(context.Background()); cerr != nil {
		s.logger.WithError(cerr).Warn("failed to close store")
	}
	return err
}

// issueToken signs a token for role so agents and dashboards can be
// provisioned without a login round trip.
func issueToken(cfg config.Config, role string) (string, error) {
	if !models.IsValidRole(models.Role(role)) {
		return "", fmt.Errorf("unknown role %q", role)
	}
	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		return "", err
	}
	token, _, err := authService.GenerateToken(&models.Operator{Username: role + "-token", Role: models.Role(role)})
	return token, err
}

func main() {
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of the given password for AUTH_PASSWORD_HASH and exit")
	tokenRole := flag.String("issue-token", "", "print a bearer token for the given role (admin, agent, viewer) and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to hash password")
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	if *tokenRole != "" {
		token, err := issueToken(cfg, *tokenRole)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to issue token")
		}
		fmt.Println(token)
		return
	}

	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid logging configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to start")
	}
	logger.WithFields(logrus.Fields{
		"store": cfg.StoreDriver,
		"auth":  cfg.AuthEnabled(),
		"mqtt":  cfg.MQTTBroker != "",
	}).Info("road-vision store starting")

	if err := srv.run(ctx); err != nil {
		logger.WithError(err).Error("Server stopped with error")
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
