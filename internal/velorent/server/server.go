package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/25x8/velorent/internal/velorent/config"
	"github.com/25x8/velorent/internal/velorent/gateway"
	"github.com/25x8/velorent/internal/velorent/handlers"
	"github.com/25x8/velorent/internal/velorent/logger"
	"github.com/25x8/velorent/internal/velorent/metrics"
	"github.com/25x8/velorent/internal/velorent/middleware"
	"github.com/25x8/velorent/internal/velorent/notify"
	"github.com/25x8/velorent/internal/velorent/repository"
	"github.com/25x8/velorent/internal/velorent/secure"
	"github.com/25x8/velorent/internal/velorent/service"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Server represents the HTTP server
type Server struct {
	cfg        *config.Config
	logger     *zap.Logger
	repo       repository.Repository
	metrics    *metrics.Metrics
	redis      *redis.Client
	autopay    *service.AutopayProcessor
	handler    *handlers.Handler
	httpServer *http.Server
}

// migrator is implemented by stores that own a schema
type migrator interface {
	CreateTables(ctx context.Context) error
}

// NewServer wires storage, services and handlers from cfg
func NewServer(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	var repo repository.Repository
	if cfg.DatabaseURI == "" {
		log.Warn("DATABASE_URI is empty, using the in-memory store")
		repo = repository.NewMemoryRepository()
	} else {
		pg, err := repository.Open(ctx, cfg.DatabaseURI)
		if err != nil {
			return nil, err
		}
		repo = pg
	}

	cipher, err := secure.NewCipher(cfg.EncryptionKey, log)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		logger:  log,
		repo:    repo,
		metrics: metrics.New(),
	}

	var throttle notify.Throttle = notify.NoThrottle{}
	if cfg.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		throttle = notify.NewRedisThrottle(s.redis, cfg.ResetMailPeriod)
	}

	var renderer service.ContractRenderer
	if cfg.SecureStorageDir != "" {
		renderer = service.NewDocxRenderer(cfg.SecureStorageDir, cfg.ContractTemplateFilename)
	}

	mailer := notify.NewMailer(cfg.SMTP, log)
	auth := service.NewAuthService(repo, cipher, mailer, throttle, s.metrics, cfg, log)
	docs := service.NewDocumentService(repo, cipher, renderer, cfg.ContractCity, log)
	payments := service.NewPaymentService(repo, gateway.NewClient(cfg.Gateway), cipher, s.metrics, cfg.Gateway, log)

	if cfg.AutopayCron != "" {
		s.autopay = service.NewAutopayProcessor(repo, payments, cfg.AutopayCron, log)
	}
	s.handler = handlers.NewHandler(auth, docs, payments, cfg.AccessTokenTTL, log)
	return s, nil
}

// NewRouter builds the HTTP routes
func NewRouter(h *handlers.Handler, jwtConfig *middleware.JWTConfig, m *metrics.Metrics, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(logger.Middleware(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Retry-After", "Content-Disposition"},
	}))

	r.Get("/health", h.Health)
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	auth := middleware.AuthMiddleware(jwtConfig)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.RegisterUser)
		r.Post("/login", h.LoginUser)
		r.Post("/password/forgot", h.ForgotPassword)
		r.Post("/password/reset", h.ResetPassword)
		r.With(auth).Get("/me", h.Me)
	})

	r.Route("/documents/me", func(r chi.Router) {
		r.Use(auth)
		r.Get("/", h.GetMyDocument)
		r.Put("/", h.UpdateMyDocument)
		r.Post("/submit", h.SubmitMyDocument)
		r.Get("/contracts", h.ListMyContracts)
		r.Get("/contract-docx/{documentID}", h.DownloadMyContract)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.RequireAdmin)

		r.Get("/users", h.ListUsers)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", h.GetUser)
			r.Post("/approve", h.ApproveUser)
			r.Post("/reject", h.RejectUser)
			r.Put("/document", h.UpdateUserDocument)
			r.Get("/contracts", h.ListUserContracts)
			r.Get("/documents/{documentID}", h.GetUserDocument)
			r.Post("/documents/{documentID}/sign", h.SignUserDocument)
			r.Get("/payment-schedule", h.GetPaymentSchedule)
			r.Get("/contract-docx/{documentID}", h.DownloadUserContract)
		})
		r.Post("/orders/{orderID}/refund", h.RefundOrder)
	})

	r.Route("/payments", func(r chi.Router) {
		// The gateway authenticates with its own bearer secret
		r.Post("/yookassa/webhook", h.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/create", h.CreatePayment)
			r.Post("/autopay/enable", h.EnableAutopay)
			r.Post("/autopay/disable", h.DisableAutopay)
			r.Post("/autopay/charge", h.ChargeAutopay)
			r.Post("/recalc/{orderID}", h.RecalcOrder)
			r.Get("/orders/{orderID}", h.GetOrder)
		})
	})

	return r
}

// Run starts the HTTP server
func (s *Server) Run(ctx context.Context) error {
	if m, ok := s.repo.(migrator); ok {
		if err := m.CreateTables(ctx); err != nil {
			return err
		}
	}

	if s.autopay != nil {
		if err := s.autopay.Start(); err != nil {
			return err
		}
	}

	jwtConfig := &middleware.JWTConfig{
		SecretKey: s.cfg.JWTSecret,
		TTL:       s.cfg.AccessTokenTTL,
		Repo:      s.repo,
	}
	s.httpServer = &http.Server{
		Addr:              s.cfg.RunAddress,
		Handler:           NewRouter(s.handler, jwtConfig, s.metrics, s.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting server", zap.String("address", s.cfg.RunAddress))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}

	if s.autopay != nil {
		s.autopay.Stop()
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("close redis", zap.Error(err))
		}
	}

	if c, ok := s.repo.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}
