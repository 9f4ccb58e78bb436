package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/storefront-hq/backoffice/config"
	"github.com/storefront-hq/backoffice/internal/cache"
	"github.com/storefront-hq/backoffice/internal/db"
	"github.com/storefront-hq/backoffice/internal/handlers"
	"github.com/storefront-hq/backoffice/internal/mq"
	"github.com/storefront-hq/backoffice/internal/services"
	"github.com/storefront-hq/backoffice/internal/session"
	"github.com/storefront-hq/backoffice/internal/storage"
	"github.com/storefront-hq/backoffice/internal/store"
	"github.com/storefront-hq/backoffice/internal/web"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	cache      *cache.Client
	events     *mq.OrderEvents
	objects    *storage.Storage
	logger     *slog.Logger
}

// NewLogger builds the JSON process logger at the configured level.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = NewLogger(cfg.LogLevel)
	}

	pages, err := web.NewRenderer(logger)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisClient := cache.New(cfg.Redis)
	if redisClient != nil {
		if err := redisClient.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, sessions cannot be revoked until it recovers", "addr", cfg.Redis.Addr, "error", err)
		}
	}

	var revocations session.RevocationStore
	if redisClient != nil {
		revocations = redisClient
	}
	sessions, err := session.NewManager(cfg.Session, revocations)
	if err != nil {
		_ = dbConn.Close()
		_ = redisClient.Close()
		return nil, err
	}

	objects, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	events, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		_ = redisClient.Close()
		_ = objects.Close()
		return nil, fmt.Errorf("init mq: %w", err)
	}

	var (
		images    services.ImageStore
		opener    handlers.ImageOpener
		publisher services.OrderEventPublisher
	)
	if objects != nil {
		images, opener = objects, objects
	} else {
		logger.Info("object storage disabled, product image uploads are off")
	}
	if events != nil {
		publisher = events
	} else {
		logger.Info("message queue disabled, order events are not published")
	}

	userService := services.NewUserService(store.NewUserRepository(dbConn), cfg.BcryptCost)
	catalogService := services.NewCatalogService(
		store.NewCategoryRepository(dbConn),
		store.NewProductRepository(dbConn),
		images,
		logger,
	)
	orderService := services.NewOrderService(store.NewOrderRepository(dbConn), publisher, logger)

	authHandler := handlers.NewAuthHandler(userService, sessions, pages, logger)
	catalogHandler := handlers.NewCatalogHandler(catalogService, pages, logger)
	orderHandler := handlers.NewOrderHandler(orderService, catalogService, pages, logger)
	userHandler := handlers.NewUserHandler(userService, pages, logger)
	imageHandler := handlers.NewImageHandler(opener, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		authHandler.LoadSession,
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api", func(r chi.Router) {
		handlers.APIRouter(r, authHandler, catalogHandler, orderHandler)
	})
	router.Route("/images", func(r chi.Router) {
		handlers.ImageRouter(r, imageHandler)
	})
	handlers.AuthRouter(router, authHandler)

	router.Group(func(r chi.Router) {
		r.Use(authHandler.RequireAuth)
		r.Route("/orders", func(r chi.Router) {
			handlers.OrderRouter(r, orderHandler, authHandler.RequireAdmin)
		})

		r.Group(func(r chi.Router) {
			r.Use(authHandler.RequireAdmin)
			r.Get("/", orderHandler.Dashboard)
			r.Route("/products", func(r chi.Router) {
				handlers.ProductRouter(r, catalogHandler)
			})
			r.Route("/categories", func(r chi.Router) {
				handlers.CategoryRouter(r, catalogHandler)
			})
			r.Route("/users", func(r chi.Router) {
				handlers.UserRouter(r, userHandler)
			})
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		cache:      redisClient,
		events:     events,
		objects:    objects,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and then releases the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.events != nil {
		if cerr := s.events.Close(); cerr != nil {
			s.logger.Warn("failed to close message queue", "error", cerr)
		}
	}
	if cerr := s.objects.Close(); cerr != nil {
		s.logger.Warn("failed to close object storage", "error", cerr)
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
