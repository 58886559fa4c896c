// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "chainhire/docs" // swagger docs
	"chainhire/internal/bootstrap"
	"chainhire/internal/chain"
	"chainhire/internal/config"
	"chainhire/internal/featureflags"
	"chainhire/internal/middleware"
	"chainhire/internal/models"
	"chainhire/internal/notifications"
	"chainhire/internal/queue"
	"chainhire/internal/repository"
	"chainhire/internal/seed"
	"chainhire/internal/service"
	"chainhire/internal/wallet"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const wsTicketPrefix = "ws_ticket:"

// wireableHub is implemented by every WebSocket hub that can be wired to
// Redis pub/sub and gracefully shut down.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	userRepo       repository.UserRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	hubs           []wireableHub
	bus            *notifications.Bus
	queue          *queue.Publisher
	chainClient    *chain.Client
	featureFlags   *featureflags.Manager
	authService    *service.AuthService
	profileService *service.ProfileService
	jobService     *service.JobService
	paymentService *service.PaymentService
	feedService    *service.FeedService
	userService    *service.UserService
}

// Option customises the dependencies NewServerWithDeps builds.
type Option func(*options)

type options struct {
	verifier  service.TransferVerifier
	forwarder notifications.Forwarder
	seedPlan  *seed.Plan
}

// WithVerifier sets the on-chain transfer verifier. Without one, payments cannot be verified.
func WithVerifier(v service.TransferVerifier) Option {
	return func(o *options) { o.verifier = v }
}

// WithForwarder sends durable events to an out-of-process consumer.
func WithForwarder(f notifications.Forwarder) Option {
	return func(o *options) { o.forwarder = f }
}

// WithDemoSeed fills an empty development database with demo data on startup.
func WithDemoSeed(plan seed.Plan) Option {
	return func(o *options) { o.seedPlan = &plan }
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, redisClient, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SeedPlan: o.seedPlan})
	if err != nil {
		return nil, err
	}

	var chainClient *chain.Client
	if cfg.ChainRPCURL != "" {
		chainClient = chain.NewClient(cfg.ChainRPCURL, cfg.ChainID, cfg.ChainTimeout())
		if err := chainClient.Connect(context.Background()); err != nil {
			// Jobs can still be browsed; each verification redials the node.
			middleware.Logger.Warn("chain rpc unavailable, retrying on next payment verification", "error", err)
		}
		opts = append(opts, WithVerifier(chainClient))
	} else {
		middleware.Logger.Warn("CHAIN_RPC_URL not set, payment verification disabled")
	}

	var publisher *queue.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = queue.Dial(cfg.AMQPURL, cfg.AMQPEventsQueue)
		if err != nil {
			middleware.Logger.Warn("amqp unavailable, events stay in-process", "error", err)
		} else {
			opts = append(opts, WithForwarder(publisher))
		}
	}

	server, err := NewServerWithDeps(cfg, db, redisClient, opts...)
	if err != nil {
		if chainClient != nil {
			chainClient.Close()
		}
		_ = publisher.Close()
		return nil, err
	}
	server.chainClient = chainClient
	server.queue = publisher
	return server, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	jobRepo := repository.NewJobRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	savedJobRepo := repository.NewSavedJobRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	postRepo := repository.NewPostRepository(db)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("chainhire-api"),
		userRepo:       userRepo,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
	}
	server.hub = notifications.NewHub()
	server.hubs = []wireableHub{server.hub}
	server.bus = notifications.NewBus(server.notifier, server.hub, o.forwarder)

	nonces := wallet.NewNonceStore(redisClient, cfg.NonceTTL())

	server.userService = service.NewUserService(userRepo)
	server.authService = service.NewAuthService(userRepo, nonces, redisClient, cfg.JWTSecret)
	server.profileService = service.NewProfileService(profileRepo, userRepo, nonces)
	server.feedService = service.NewFeedService(postRepo, server.isAdminByUserID, server.bus)

	payments, err := service.NewPaymentService(paymentRepo, jobRepo, o.verifier, service.PaymentSettings{
		FeeETH:        cfg.JobPostFeeETH,
		Recipient:     cfg.PlatformWallet,
		ChainID:       cfg.ChainID,
		Confirmations: cfg.RequiredConfirmations,
		ExplorerTxURL: cfg.ExplorerTxURL,
		Timeout:       cfg.ChainTimeout(),
		PendingTTL:    cfg.PendingPaymentTTL(),
	}, server.isAdminByUserID, server.bus)
	if err != nil {
		return nil, fmt.Errorf("payment settings: %w", err)
	}
	server.paymentService = payments
	server.jobService = service.NewJobService(
		jobRepo, applicationRepo, savedJobRepo, paymentRepo, profileRepo,
		payments, server.featureFlags, server.bus,
	)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS must run before anything that can short-circuit so error responses carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.HealthCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "chainhire API Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/refresh", s.Refresh)
	auth.Post("/logout", s.Logout)
	walletAuth := auth.Group("/wallet", s.FlagRequired(featureflags.WalletLogin))
	walletAuth.Post("/nonce", middleware.RateLimit(
		s.redis, 20, 5*time.Minute, "wallet_nonce"), s.WalletNonce)
	walletAuth.Post("/verify", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "wallet_verify"), s.WalletVerify)

	// Public browse routes
	api.Get("/payments/quote", s.GetPaymentQuote)

	publicJobs := api.Group("/jobs")
	publicJobs.Get("/", s.GetJobs)
	publicJobs.Get("/:id", s.GetJob)

	publicPosts := api.Group("/posts")
	publicPosts.Get("/", s.GetFeed)
	publicPosts.Get("/:id/comments", s.GetComments)
	publicPosts.Get("/:id", s.GetPost)

	api.Get("/profiles/:id", s.GetProfile)

	// Protected routes
	protected := api.Group("", s.AuthRequired())

	// Current user
	me := protected.Group("/me")
	me.Get("/", s.GetMe)
	me.Get("/profile", s.GetMyProfile)
	me.Put("/profile", s.UpdateMyProfile)
	me.Post("/profile/skills", s.AddSkill)
	me.Delete("/profile/skills/:skill", s.RemoveSkill)
	me.Post("/wallet/nonce", s.WalletNonce)
	me.Post("/wallet", s.LinkWallet)
	me.Delete("/wallet", s.UnlinkWallet)
	me.Get("/jobs", s.GetMyJobs)
	me.Get("/applications", s.GetMyApplications)
	me.Get("/saved-jobs", s.GetSavedJobs)
	me.Get("/payments", s.GetMyPayments)
	me.Get("/feature-flags", s.GetFeatureFlags)

	// Protected job routes
	jobs := protected.Group("/jobs")
	jobs.Post("/", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "create_job"), s.CreateJob)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	jobs.Post("/:id/apply", middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "apply_job"), s.ApplyToJob)
	jobs.Get("/:id/applications", s.GetJobApplications)
	jobs.Post("/:id/save", s.SaveJob)
	jobs.Delete("/:id/save", s.UnsaveJob)
	jobs.Post("/:id/close", s.CloseJob)

	// Protected post routes
	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Post("/:id/like", s.ToggleLike)
	posts.Post("/:id/comments", middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Post("/:id/share", s.SharePost)
	posts.Delete("/:id", s.DeletePost)

	protected.Get("/payments/:hash", s.GetPayment)

	// WebSocket ticket issuance
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)

	// WebSocket feed
	ws := api.Group("/ws", s.AuthRequired())
	ws.Get("/", s.WebsocketHandler())

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Put("/feature-flags/:name", s.SetFeatureFlag)
	admin.Get("/payments", s.ListPayments)
	admin.Post("/payments/reconcile", s.ReconcilePayments)
	admin.Get("/admins", s.ListAdmins)
	admin.Post("/users/:id/promote-admin", s.PromoteToAdmin)
	admin.Post("/users/:id/demote-admin", s.DemoteFromAdmin)
}

// HealthCheck is a simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	chainStatus := "unavailable"
	if s.chainClient != nil {
		if _, err := s.chainClient.BlockNumber(ctx); err != nil {
			chainStatus = "unhealthy"
		} else {
			chainStatus = "healthy"
		}
	}

	// The chain node is reported but not required: browsing works without it.
	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"service": "chainhire",
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"chain":    chainStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		admin, err := s.isAdmin(c, userID)
		if err != nil {
			return respondServiceError(c, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// FlagRequired hides a route group behind a feature flag.
func (s *Server) FlagRequired(flag string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.featureFlags.Enabled(flag, 0) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				&models.AppError{Code: models.CodeNotFound, Message: "This feature is not enabled"})
		}
		return c.Next()
	}
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Nested groups run this twice; a consumed ticket must not fail the second pass.
		if _, ok := c.Locals("userID").(uint); ok {
			return c.Next()
		}

		isWSPath := strings.HasPrefix(c.Path(), "/api/ws")

		// 1. Try WebSocket ticket first (short-lived, single-use)
		if ticket := c.Query("ticket"); ticket != "" && s.redis != nil {
			userIDStr, err := s.redis.GetDel(c.Context(), wsTicketPrefix+ticket).Result()
			if err == nil {
				if userID, parseErr := strconv.ParseUint(userIDStr, 10, 32); parseErr == nil {
					c.Locals("wsTicket", ticket)
					return s.authenticated(c, uint(userID))
				}
			}
			if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		// 2. Fall back to the bearer token
		tokenString := bearerToken(c)

		// WS routes use tickets; the raw token is only accepted there when no ticket store exists.
		if tokenString == "" && (!isWSPath || s.redis == nil) {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		userID, err := s.authService.Authenticate(c.Context(), tokenString)
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, service.ErrTokenRevoked) {
				msg = "Token has been revoked"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(msg))
		}

		return s.authenticated(c, userID)
	}
}

func (s *Server) authenticated(c *fiber.Ctx, userID uint) error {
	// Store user ID in context
	c.Locals("userID", userID)
	// Sync to UserContext for logging and downstream services
	c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))
	return c.Next()
}

// optionalUserID attempts to extract userID from Authorization header but does not enforce it.
func (s *Server) optionalUserID(c *fiber.Ctx) (uint, bool) {
	tokenString := bearerToken(c)
	if tokenString == "" {
		return 0, false
	}
	userID, err := s.authService.Authenticate(c.Context(), tokenString)
	if err != nil {
		return 0, false
	}
	return userID, true
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// Start builds the Fiber app, starts background workers and listens until shutdown.
func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName:   "chainhire API",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.StartBackground()
	s.app = app

	middleware.Logger.Info("server starting", "port", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// StartBackground wires the hubs to Redis and starts the payment reconciler. Both
// stop when Shutdown is called.
func (s *Server) StartBackground() {
	if s.shutdownFn != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	// Wire all hubs to Redis subscriber if available
	if s.notifier != nil {
		for _, h := range s.hubs {
			h := h
			go func() {
				if err := h.StartWiring(s.shutdownCtx, s.notifier); err != nil {
					middleware.Logger.Error("failed to start hub wiring", "hub", h.Name(), "error", err)
				}
			}()
		}
	}

	go s.paymentService.RunReconciler(s.shutdownCtx, s.config.ReconcileInterval())
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop all background goroutines
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Shutdown the HTTP/WS server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	// Close WebSocket connections gracefully
	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub", "hub", h.Name(), "error", err)
		}
	}

	if err := s.queue.Close(); err != nil {
		middleware.Logger.Error("error closing amqp publisher", "error", err)
	}
	if s.chainClient != nil {
		s.chainClient.Close()
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
