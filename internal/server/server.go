package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/zqadmin/ojadmin/config"
	"github.com/zqadmin/ojadmin/internal/cache"
	"github.com/zqadmin/ojadmin/internal/db"
	"github.com/zqadmin/ojadmin/internal/handlers"
	"github.com/zqadmin/ojadmin/internal/metrics"
	"github.com/zqadmin/ojadmin/internal/mq"
	"github.com/zqadmin/ojadmin/internal/services"
	"github.com/zqadmin/ojadmin/internal/storage"
	"github.com/zqadmin/ojadmin/internal/store"
	"github.com/zqadmin/ojadmin/pkg/logger"
)

// Server wraps the HTTP server, router and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	redis      *redis.Client
	log        logger.Logger
}

// New connects the database, object storage, broker and cache named in cfg
// and builds the router.
func New(ctx context.Context, cfg config.Config, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Nop()
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	events, err := mq.Open(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}
	if !events.Enabled() {
		log.Info(ctx, "mq backend not configured, events disabled")
	}

	redisClient := cache.NewRedisClient(cfg.Redis)
	if redisClient == nil {
		log.Warn(ctx, "redis not configured, login lockout and token revocation disabled")
	}

	s := &Server{
		db:    dbConn,
		mq:    events,
		redis: redisClient,
		log:   log,
	}
	s.router = NewRouter(Deps{
		Problems:       store.NewProblemRepository(dbConn),
		TestCases:      store.NewTestCaseRepository(dbConn),
		Solutions:      store.NewSolutionRepository(dbConn),
		Users:          store.NewUserRepository(dbConn),
		Objects:        objects,
		Events:         events,
		LoginGuard:     cache.NewLoginGuard(redisClient),
		Blacklist:      cache.NewTokenBlacklist(redisClient),
		Metrics:        metrics.NewManager(),
		Logger:         log,
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8000
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Deps are the collaborators the router is built from.
type Deps struct {
	Problems   services.ProblemRepository
	TestCases  services.TestCaseRepository
	Solutions  services.SolutionRepository
	Users      services.UserRepository
	Objects    services.ObjectStore
	Events     services.EventPublisher
	LoginGuard cache.LoginGuard
	Blacklist  cache.TokenBlacklist
	Metrics    *metrics.Manager
	Logger     logger.Logger

	JWTSecret      string
	AllowedOrigins []string
}

// NewRouter builds the API router:
//
//	/healthz /metrics /openapi.yaml /swagger/*
//	/api/menu/all
//	/api/auth/{register,login,logout,me}
//	/api/problem/...
func NewRouter(d Deps) *chi.Mux {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	m := d.Metrics
	if m == nil {
		m = metrics.NewManager()
	}

	userService := services.NewUserService(d.Users)
	problemService := services.NewProblemService(d.Problems, d.Events, m, log)
	testCaseService := services.NewTestCaseService(d.TestCases, d.Problems, d.Objects, d.Events, m, log)
	solutionService := services.NewSolutionService(d.Solutions, d.Problems, m)

	auth := handlers.NewAuthHandler(userService, d.LoginGuard, d.Blacklist, m, log, d.JWTSecret)
	problems := handlers.NewProblemHandler(problemService, testCaseService, solutionService, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		m.Middleware,
		cors.Handler(cors.Options{
			AllowedOrigins:   d.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", m.Handler())
	handlers.DocsRouter(router)

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/menu/all", handlers.Menu)
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, auth)
		})
		r.Route("/problem", func(r chi.Router) {
			handlers.ProblemRouter(r, problems, auth.RequireAuth, handlers.LoadUser(userService))
		})
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "server listening", logger.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the owned connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		_ = s.mq.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
