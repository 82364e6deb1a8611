// Package server contains the HTTP handlers and routing for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/sintaro608742-crypto/x-follower-maker-sub001/docs" // swagger docs
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/bootstrap"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/config"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/featureflags"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/jobs"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/middleware"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// DispatchRunner runs one dispatch pass over due posts.
type DispatchRunner interface {
	Run(ctx context.Context) (*jobs.DispatchSummary, error)
}

// FollowerRunner records one follower snapshot per credentialed owner.
type FollowerRunner interface {
	Run(ctx context.Context) (*jobs.FollowerSummary, error)
}

const drainRetryAfter = 5 * time.Second

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	admission      *middleware.AdmissionController
	features       *featureflags.Manager
	quotas         *middleware.Limiter

	postService     *service.PostService
	scheduleService *service.ScheduleService
	accountService  *service.AccountService
	statsService    *service.StatsService
	dispatcher      DispatchRunner
	followers       FollowerRunner
}

// NewServer connects runtime dependencies and builds a server from cfg.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		return nil, err
	}
	comps, err := bootstrap.BuildComponents(cfg, db, rdb, bootstrap.Overrides{})
	if err != nil {
		return nil, fmt.Errorf("build components: %w", err)
	}
	return NewServerWithDeps(cfg, db, rdb, comps), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, comps *bootstrap.Components) *Server {
	return &Server{
		config:          cfg,
		db:              db,
		redis:           redisClient,
		promMiddleware:  middleware.InitMetrics("x-follower-maker-api"),
		admission:       middleware.NewAdmissionController(drainRetryAfter, "/health/live"),
		features:        featureflags.NewManager(cfg.FeatureFlags),
		quotas:          middleware.NewLimiter(redisClient, cfg.Env),
		postService:     comps.PostService,
		scheduleService: comps.ScheduleService,
		accountService:  comps.AccountService,
		statsService:    comps.StatsService,
		dispatcher:      comps.Dispatch,
		followers:       comps.Followers,
	}
}

// NewApp returns a Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "X Follower Maker API",
		BodyLimit:    1 * 1024 * 1024,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	slog.ErrorContext(c.UserContext(), "unhandled request error", "path", c.Path(), "error", err)
	return models.RespondWithAppError(c, err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())

	// Draining rejects before any other work is done.
	app.Use(s.admission.Middleware())

	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
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

	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  "RATE_LIMITED",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Job triggers use the shared secret, not user tokens.
	jobRoutes := api.Group("/jobs", middleware.JobTriggerAuth(s.config.JobTriggerSecret))
	jobRoutes.Post("/dispatch", s.TriggerDispatch)
	jobRoutes.Post("/follower-stats", s.TriggerFollowerStats)

	protected := api.Group("", middleware.AuthRequired(s.config.JWTSecret), middleware.ContextMiddleware())

	generation := s.features.Require(featureflags.ContentGeneration, ownerID)

	posts := protected.Group("/posts")
	posts.Get("/", s.ListPosts)
	posts.Post("/", s.CreatePost)
	posts.Post("/generate", generation, s.quotas.Route(middleware.Quota{
		Name: "generate_posts", Limit: 10, Window: time.Minute}), s.GeneratePosts)
	// Specific /:id/:action routes before generic /:id
	posts.Post("/:id/approve", s.ApprovePost)
	posts.Post("/:id/retry", s.RetryPost)
	posts.Post("/:id/regenerate", generation, s.quotas.Route(middleware.Quota{
		Name: "regenerate_post", Limit: 20, Window: time.Minute}), s.RegeneratePost)
	posts.Get("/:id", s.GetPost)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	schedule := protected.Group("/schedule")
	schedule.Get("/slots", s.GetSlots)
	schedule.Put("/slots", s.UpdateSlots)
	schedule.Get("/preview", s.PreviewSchedule)

	account := protected.Group("/account")
	account.Get("/credential", s.GetCredentialStatus)
	account.Put("/credential", s.quotas.Route(middleware.Quota{
		Name: "connect_account", Limit: 5, Window: 5 * time.Minute}), s.ConnectAccount)
	account.Delete("/credential", s.DisconnectAccount)

	stats := protected.Group("/stats")
	stats.Get("/followers", s.GetFollowerHistory)
	stats.Get("/followers/latest", s.GetLatestFollowers)

	protected.Get("/features", s.GetFeatures)
}

// GetFeatures godoc
// @Summary Feature flags for the caller
// @Tags account
// @Produce json
// @Success 200 {object} map[string]bool
// @Security BearerAuth
// @Router /features [get]
func (s *Server) GetFeatures(c *fiber.Ctx) error {
	return c.JSON(s.features.Snapshot(ownerID(c)))
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":    "up",
		"admission": s.admission.State().String(),
		"time":      time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unavailable"
	} else if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional: unavailable degrades features but not readiness.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
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

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	s.app = s.NewApp()
	slog.Info("server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops admitting requests, waits for in-flight ones, then closes
// the database and Redis connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.admission.Drain() {
		slog.Info("admission draining")
	}

	var shutdownErr error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			slog.Error("error shutting down HTTP server", "error", err)
			shutdownErr = err
		}
	}

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				slog.Error("error closing sql DB", "error", cerr)
			}
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			slog.Error("error closing redis", "error", rerr)
		}
	}

	slog.Info("server shutdown complete")
	return shutdownErr
}
