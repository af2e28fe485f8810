package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/app"
	iauth "github.com/charlesng35/campus/internal/auth"
	"github.com/charlesng35/campus/internal/cache"
	"github.com/charlesng35/campus/internal/handlers"
	"github.com/charlesng35/campus/internal/middleware"
	"github.com/charlesng35/campus/internal/monitoring"
	"github.com/charlesng35/campus/internal/monitoring/checks"
	"github.com/charlesng35/campus/internal/realtime"
	"github.com/charlesng35/campus/internal/services"
)

const (
	defaultAuthRateLimit  = 20
	defaultAuthRateWindow = time.Minute
)

// Dependencies bundles what the HTTP surface needs. Broker, Resender and
// Consumer may be nil; the endpoints that need them then answer with an
// error envelope and readiness omits their probes.
type Dependencies struct {
	DB     *gorm.DB
	JWT    *iauth.JWTService
	Config *app.Config

	Auth          *services.AuthService
	Users         *services.UserService
	Notifications *services.NotificationService
	Courses       *services.CourseService
	Enrollments   *services.EnrollmentService

	Broker   *realtime.Broker
	Resender handlers.Resender
	Consumer checks.ConsumerObserver
}

func (d Dependencies) validate() error {
	switch {
	case d.DB == nil:
		return fmt.Errorf("database handle must be provided")
	case d.JWT == nil:
		return fmt.Errorf("jwt service must be provided")
	case d.Config == nil:
		return fmt.Errorf("config must be provided")
	case d.Auth == nil || d.Users == nil:
		return fmt.Errorf("auth and user services must be provided")
	case d.Notifications == nil:
		return fmt.Errorf("notification service must be provided")
	case d.Courses == nil || d.Enrollments == nil:
		return fmt.Errorf("course and enrollment services must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))

	registerHealthRoutes(r, newHealthManager(deps))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", handlers.NewRealtimeHandler(deps.Broker).Stream)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	requests, window := cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window
	if requests <= 0 {
		requests = defaultAuthRateLimit
	}
	if window <= 0 {
		window = defaultAuthRateWindow
	}

	rateStore, err := cache.Open(cfg.Server.RateLimit.Store, deps.DB)
	if err != nil {
		return nil, err
	}

	registerAuthRoutes(r, api, handlers.NewAuthHandler(deps.Auth, deps.Users), middleware.RateLimit(rateStore, requests, window))
	registerUserRoutes(api, handlers.NewUserHandler(deps.Users))
	registerNotificationRoutes(api, handlers.NewNotificationHandler(deps.Notifications, deps.Resender))
	registerCourseRoutes(api, handlers.NewCourseHandler(deps.Courses), handlers.NewEnrollmentHandler(deps.Enrollments))

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func newHealthManager(deps Dependencies) *monitoring.HealthManager {
	health := monitoring.NewHealthManager(0)
	health.RegisterReadiness(checks.Database(deps.DB))
	if deps.Broker != nil {
		health.RegisterReadiness(checks.Realtime(deps.Broker))
	}
	if deps.Consumer != nil {
		health.RegisterReadiness(checks.Consumer(deps.Consumer))
	}
	return health
}
