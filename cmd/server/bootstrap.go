package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/api"
	"github.com/charlesng35/campus/internal/app"
	"github.com/charlesng35/campus/internal/app/maintenance"
	iauth "github.com/charlesng35/campus/internal/auth"
	"github.com/charlesng35/campus/internal/database"
	"github.com/charlesng35/campus/internal/events"
	"github.com/charlesng35/campus/internal/notifications"
	"github.com/charlesng35/campus/internal/queue"
	"github.com/charlesng35/campus/internal/realtime"
	"github.com/charlesng35/campus/internal/services"
	"github.com/charlesng35/campus/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB          *gorm.DB
	Queue       queue.Queue
	Broker      *realtime.Broker
	Pipeline    *notifications.Pipeline
	Cleaner     *maintenance.Cleaner
	Router      *gin.Engine
	stopConsume context.CancelFunc
	consumeDone chan struct{}
}

// bootstrapRuntime initialises the database, queue, broker, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}
	local, err := iauth.NewLocalProvider(stack.DB, cfg.Auth.LocalProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise local auth: %w", err)
	}

	users, err := services.NewUserService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}
	if err := ensureBootstrapAdmin(ctx, users, cfg.Bootstrap, log); err != nil {
		return nil, err
	}

	stack.Queue, err = queue.Open(ctx, cfg.Queue.QueueSettings())
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	log.Info("queue connected", zap.String("driver", cfg.Queue.Driver), zap.String("name", cfg.Queue.Name))

	stack.Broker = realtime.NewBroker(cfg.Realtime.BrokerOptions(jwtSvc))

	bus := events.NewBus()
	stack.Pipeline, err = notifications.NewPipeline(stack.DB, bus, stack.Queue, stack.Broker)
	if err != nil {
		return nil, fmt.Errorf("initialise notification pipeline: %w", err)
	}

	notificationSvc, err := services.NewNotificationService(stack.DB, bus)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}
	authSvc, err := services.NewAuthService(local, jwtSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}
	courseSvc, err := services.NewCourseService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise course service: %w", err)
	}
	enrollmentSvc, err := services.NewEnrollmentService(stack.DB, notificationSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise enrollment service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(stack.DB, notificationSvc,
			maintenance.WithRetention(cfg.Maintenance.NotificationRetention),
			maintenance.WithNotificationSchedule(cfg.Maintenance.Schedule),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:            stack.DB,
		JWT:           jwtSvc,
		Config:        cfg,
		Auth:          authSvc,
		Users:         users,
		Notifications: notificationSvc,
		Courses:       courseSvc,
		Enrollments:   enrollmentSvc,
		Broker:        stack.Broker,
		Resender:      stack.Pipeline.Relay(),
		Consumer:      stack.Pipeline,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	stack.startConsumer(log)

	success = true
	return stack, nil
}

func (s *runtimeStack) startConsumer(log *zap.Logger) {
	consumeCtx, cancel := context.WithCancel(context.Background())
	s.stopConsume = cancel
	s.consumeDone = make(chan struct{})

	go func() {
		defer close(s.consumeDone)
		if err := s.Pipeline.Run(consumeCtx); err != nil && !errors.Is(err, queue.ErrClosed) {
			log.Error("notification consumer stopped", zap.Error(err))
		}
	}()
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		select {
		case <-s.Cleaner.Stop().Done():
		case <-ctx.Done():
			log.Warn("maintenance jobs still running at shutdown")
		}
	}

	if s.stopConsume != nil {
		s.stopConsume()
		<-s.consumeDone
	}

	if s.Broker != nil {
		s.Broker.Close()
	}

	if s.Queue != nil {
		if err := s.Queue.Close(); err != nil {
			log.Warn("queue shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func ensureBootstrapAdmin(ctx context.Context, users *services.UserService, cfg app.BootstrapConfig, log *zap.Logger) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil
	}
	created, err := users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		log.Info("bootstrap administrator created", zap.String("username", cfg.AdminUsername))
	}
	return nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
