// Package server contains the HTTP handlers and route wiring for the
// feedback intake API.
package server

import (
	"context"
	"fmt"
	"time"

	"intake/internal/config"
	"intake/internal/middleware"
	"intake/internal/models"
	"intake/internal/ratelimit"
	"intake/internal/repository"
	"intake/internal/service"
	"intake/internal/validation"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus
	userRepo       repository.UserRepository
	submissionRepo repository.SubmissionRepository
	intakeService  *service.IntakeService
	adminService   *service.AdminService
	memoryStore    *ratelimit.MemoryStore // non-nil when falling back from Redis
}

// NewServerWithDeps creates a Server using already-initialized
// dependencies. bootstrap.InitRuntime establishes DB/Redis for the
// server binary; tests pass their own.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("loading abuse rules failed: %w", err)
	}
	rules.BlockedIPs = append(rules.BlockedIPs, cfg.BlockedIPList()...)

	userRepo := repository.NewUserRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db, cfg.StoreTimeout)

	prom := middleware.InitMetrics("intake-api")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		userRepo:       userRepo,
		submissionRepo: submissionRepo,
	}

	// Shared counters on Redis when available, in-process otherwise.
	var store ratelimit.CounterStore
	if redisClient != nil {
		store = ratelimit.NewRedisStore(redisClient, "rl")
	} else {
		mem := ratelimit.NewMemoryStore()
		server.memoryStore = mem
		store = mem
	}

	rateLimiter := ratelimit.New(store,
		ratelimit.Pool{Name: "anon", Limit: cfg.AnonRateLimit, Window: cfg.RateLimitWindow},
		ratelimit.Pool{Name: "auth", Limit: cfg.AuthRateLimit, Window: cfg.RateLimitWindow},
		ratelimit.FailOpen,
	)

	validator := validation.New(rules.SpamWords, rules.DisposableDomains)

	server.intakeService = service.NewIntakeService(
		submissionRepo, rateLimiter, validator, rules.BlockedIPs, cfg.DuplicateWindow)
	server.adminService = service.NewAdminService(submissionRepo)

	return server, nil
}

// StartJanitor launches background cleanup for the in-memory rate limit
// store. No-op when counters live in Redis.
func (s *Server) StartJanitor(ctx context.Context) {
	if s.memoryStore != nil {
		s.memoryStore.StartJanitor(ctx, 5*time.Minute, 2*s.config.RateLimitWindow)
	}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware runs before middlewares that can short-circuit
	// (e.g. limiter) so browser clients still receive CORS headers on
	// error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP). This is a
	// transport-level flood guard; the per-identity submission quotas
	// live in the intake service.
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

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/login", s.Login)

	// Public feedback routes
	feedback := api.Group("/feedback")
	feedback.Get("/token", s.IssueFormToken)
	feedback.Post("/", middleware.OptionalAuth, s.CreateSubmission)

	// Admin routes
	admin := api.Group("/admin", middleware.AuthRequired, s.AdminContext())
	adminFeedback := admin.Group("/feedback")
	adminFeedback.Get("/", s.ListSubmissions)
	adminFeedback.Get("/stats", s.SubmissionStats)
	adminFeedback.Get("/export", s.ExportSubmissions)
	adminFeedback.Get("/:id", s.GetSubmission)
	adminFeedback.Patch("/:id", s.UpdateSubmissionStatus)
	adminFeedback.Delete("/:id", s.DeleteSubmission)
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

	// Redis is optional: the limiter falls back to in-memory counters.
	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminContext returns middleware that loads the authenticated user's
// capabilities into locals. Must be placed after AuthRequired so that
// userID is available.
func (s *Server) AdminContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("userID").(uint)
		if !ok {
			return models.RespondError(c,
				models.NewUnauthorizedError("Authentication required"))
		}

		user, err := s.userRepo.GetByID(c.Context(), userID)
		if err != nil {
			return models.RespondError(c, err)
		}

		identity := user.Identity()
		if !identity.IsAdmin && !identity.IsSuperuser {
			return models.RespondError(c,
				models.NewForbiddenError("Admin access required"))
		}

		c.Locals("identity", identity)
		return c.Next()
	}
}

// callerIdentity returns the identity stored by AdminContext, or the
// anonymous identity when absent.
func callerIdentity(c *fiber.Ctx) models.Identity {
	if id, ok := c.Locals("identity").(models.Identity); ok {
		return id
	}
	if uid, ok := c.Locals("userID").(uint); ok {
		return models.Identity{UserID: uid}
	}
	return models.Identity{}
}
