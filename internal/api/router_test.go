package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/app"
	iauth "github.com/charlesng35/campus/internal/auth"
	testutil "github.com/charlesng35/campus/internal/database/testutil"
	"github.com/charlesng35/campus/internal/services"
)

func newDependencies(t *testing.T, db *gorm.DB) Dependencies {
	t.Helper()

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "test", AccessTokenTTL: 15 * time.Minute})
	require.NoError(t, err)
	local, err := iauth.NewLocalProvider(db, iauth.LocalConfig{})
	require.NoError(t, err)

	authSvc, err := services.NewAuthService(local, jwtSvc)
	require.NoError(t, err)
	users, err := services.NewUserService(db)
	require.NoError(t, err)
	notifications, err := services.NewNotificationService(db, nil)
	require.NoError(t, err)
	courses, err := services.NewCourseService(db)
	require.NoError(t, err)
	enrollments, err := services.NewEnrollmentService(db, notifications)
	require.NoError(t, err)

	return Dependencies{
		DB:            db,
		JWT:           jwtSvc,
		Config:        &app.Config{},
		Auth:          authSvc,
		Users:         users,
		Notifications: notifications,
		Courses:       courses,
		Enrollments:   enrollments,
	}
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	router, err := NewRouter(newDependencies(t, db))
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health").Code)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health/ready").Code)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/metrics").Code)

	for _, path := range []string{"/api/auth/info", "/api/users", "/api/notifications", "/api/courses", "/api/enrollments/me"} {
		require.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, path).Code, path)
	}

	require.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/nope").Code)
}

func TestRouter_NilBrokerAndResender(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	router, err := NewRouter(newDependencies(t, db))
	require.NoError(t, err)

	require.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/ws").Code)
}

func TestRouter_RequiresDependencies(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	full := newDependencies(t, db)

	cases := map[string]func(d *Dependencies){
		"db":            func(d *Dependencies) { d.DB = nil },
		"jwt":           func(d *Dependencies) { d.JWT = nil },
		"config":        func(d *Dependencies) { d.Config = nil },
		"auth":          func(d *Dependencies) { d.Auth = nil },
		"notifications": func(d *Dependencies) { d.Notifications = nil },
		"enrollments":   func(d *Dependencies) { d.Enrollments = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			deps := full
			mutate(&deps)
			_, err := NewRouter(deps)
			require.Error(t, err)
		})
	}
}

func TestRouter_LoginIsRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	deps := newDependencies(t, db)
	deps.Config.Server.RateLimit = app.RateLimitConfig{Requests: 2, Window: time.Minute}

	router, err := NewRouter(deps)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/api/auth/login").Code)
	}
	require.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodPost, "/api/auth/login").Code)
}

func TestRouter_SharedRateLimitStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	build := func() *gin.Engine {
		deps := newDependencies(t, db)
		deps.Config.Server.RateLimit = app.RateLimitConfig{Store: "database", Requests: 1, Window: time.Minute}
		router, err := NewRouter(deps)
		require.NoError(t, err)
		return router
	}

	first, second := build(), build()
	require.Equal(t, http.StatusBadRequest, serve(first, http.MethodPost, "/api/auth/login").Code)
	require.Equal(t, http.StatusTooManyRequests, serve(second, http.MethodPost, "/api/auth/login").Code)
}

func TestRouter_UnknownRateLimitStore(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	deps := newDependencies(t, db)
	deps.Config.Server.RateLimit.Store = "redis"

	_, err := NewRouter(deps)
	require.Error(t, err)
}
