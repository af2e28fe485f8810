package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/campus/internal/app"
	"github.com/charlesng35/campus/internal/models"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()

	cfg := &app.Config{}
	cfg.Server.Port = 0
	cfg.Server.RateLimit.Requests = 100
	cfg.Server.RateLimit.Window = time.Minute
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "campus.sqlite")
	cfg.Auth.JWT.Secret = "bootstrap-test-secret-value"
	cfg.Auth.JWT.Issuer = "campus"
	cfg.Auth.JWT.TTL = time.Hour
	cfg.Queue.Driver = "memory"
	cfg.Queue.Name = "notification.queue"
	cfg.Queue.BufferSize = 8
	cfg.Realtime.HeartBeat = -1
	cfg.Bootstrap.AdminUsername = "root"
	cfg.Bootstrap.AdminPassword = "root-password-1"
	return cfg
}

func TestBootstrapRuntimeWiresStack(t *testing.T) {
	cfg := testConfig(t)

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.NotNil(t, stack.DB)
	require.NotNil(t, stack.Queue)
	require.NotNil(t, stack.Broker)
	require.NotNil(t, stack.Router)
	require.Nil(t, stack.Cleaner)

	var admin models.User
	require.NoError(t, stack.DB.Preload("Roles").Where("username = ?", "root").First(&admin).Error)
	require.True(t, admin.HasRole(models.RoleAdmin))

	rec := httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBootstrapRuntimeStartsMaintenance(t *testing.T) {
	cfg := testConfig(t)
	cfg.Maintenance.Enabled = true
	cfg.Maintenance.Schedule = "@hourly"
	cfg.Maintenance.NotificationRetention = 24 * time.Hour

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.NotNil(t, stack.Cleaner)
}

func TestBootstrapRuntimeRejectsUnknownQueueDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Queue.Driver = "carrier-pigeon"

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "open queue")
}

func TestShutdownNilStack(t *testing.T) {
	var stack *runtimeStack
	require.NotPanics(t, func() { stack.Shutdown(context.Background(), zap.NewNop()) })
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestLoadApplicationConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0o600))

	cfg, err := loadApplicationConfig(path)
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.Server.Port)
}

func TestEnsureSecretsPresent(t *testing.T) {
	require.Error(t, ensureSecretsPresent(nil))

	cfg := &app.Config{}
	require.ErrorContains(t, ensureSecretsPresent(cfg), "must be configured")

	cfg.Auth.JWT.Secret = "short"
	require.ErrorContains(t, ensureSecretsPresent(cfg), "at least 16")

	cfg.Auth.JWT.Secret = "  a-long-enough-secret-value  "
	require.NoError(t, ensureSecretsPresent(cfg))
	require.Equal(t, "a-long-enough-secret-value", cfg.Auth.JWT.Secret)
}
