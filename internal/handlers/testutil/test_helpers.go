package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/api"
	"github.com/charlesng35/campus/internal/app"
	iauth "github.com/charlesng35/campus/internal/auth"
	sharedtestutil "github.com/charlesng35/campus/internal/database/testutil"
	"github.com/charlesng35/campus/internal/events"
	"github.com/charlesng35/campus/internal/models"
	"github.com/charlesng35/campus/internal/notifications"
	"github.com/charlesng35/campus/internal/queue"
	"github.com/charlesng35/campus/internal/realtime"
	"github.com/charlesng35/campus/internal/services"
	"github.com/charlesng35/campus/pkg/crypto"
	"github.com/charlesng35/campus/pkg/response"
)

const jwtSecret = "test-suite-super-secret-key-32-bytes!!"

// Env encapsulates a fully-wired API instance backed by an in-memory database
// and queue. The notification pipeline runs for the lifetime of the test.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Broker *realtime.Broker
	Queue  *queue.Memory

	server *httptest.Server
}

// NewEnv provisions a fresh handler test environment with migrations and seed data applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{Secret: jwtSecret, Issuer: "test-suite", TTL: time.Hour},
		},
		Server: app.ServerConfig{
			RateLimit: app.RateLimitConfig{Store: "database", Requests: 1000, Window: time.Minute},
		},
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)
	local, err := iauth.NewLocalProvider(db, iauth.LocalConfig{
		LockoutThreshold: 3,
		LockoutDuration:  time.Minute,
	})
	require.NoError(t, err)

	bus := events.NewBus()
	q := queue.NewMemory(64)
	broker := realtime.NewBroker(realtime.Options{Authenticator: jwtSvc, HeartBeat: -1})

	pipeline, err := notifications.NewPipeline(db, bus, q, broker)
	require.NoError(t, err)

	notificationSvc, err := services.NewNotificationService(db, bus)
	require.NoError(t, err)
	authSvc, err := services.NewAuthService(local, jwtSvc)
	require.NoError(t, err)
	userSvc, err := services.NewUserService(db)
	require.NoError(t, err)
	courseSvc, err := services.NewCourseService(db)
	require.NoError(t, err)
	enrollmentSvc, err := services.NewEnrollmentService(db, notificationSvc)
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		DB:            db,
		JWT:           jwtSvc,
		Config:        cfg,
		Auth:          authSvc,
		Users:         userSvc,
		Notifications: notificationSvc,
		Courses:       courseSvc,
		Enrollments:   enrollmentSvc,
		Broker:        broker,
		Resender:      pipeline.Relay(),
		Consumer:      pipeline,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pipeline.Run(ctx)
	}()

	env := &Env{T: t, DB: db, Router: router, JWT: jwtSvc, Broker: broker, Queue: q}
	t.Cleanup(func() {
		cancel()
		<-done
		broker.Close()
		_ = q.Close()
		if env.server != nil {
			env.server.Close()
		}
	})
	return env
}

// CreateUser inserts an active user holding role and returns the record.
// An empty username picks a random one.
func (e *Env) CreateUser(username, password, role string) *models.User {
	e.T.Helper()

	if username == "" {
		username = "user-" + uuid.NewString()[:8]
	}
	hashed, err := crypto.HashPasswordCost(password, crypto.MinPasswordCost)
	require.NoError(e.T, err)

	user := &models.User{
		Username: username,
		Email:    username + "@example.edu",
		Password: hashed,
		Status:   models.UserStatusActive,
	}
	if role != "" {
		var r models.Role
		require.NoError(e.T, e.DB.Where("name = ?", role).Take(&r).Error)
		user.Roles = []models.Role{r}
	}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// Token issues an access token for user without going through the login endpoint.
func (e *Env) Token(user *models.User) string {
	e.T.Helper()
	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.RoleNames(),
	})
	require.NoError(e.T, err)
	return token
}

// UserPayload captures the subset of user fields returned from auth endpoints.
type UserPayload struct {
	ID       uint64   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Status   string   `json:"status"`
	Roles    []string `json:"roles"`
}

// LoginResult bundles the JSON response from POST /api/auth/login.
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"`
	User        UserPayload `json:"user"`
}

// Login authenticates using the local provider and returns the issued token.
func (e *Env) Login(username, password string) LoginResult {
	e.T.Helper()

	payload := map[string]string{
		"identifier": username,
		"password":   password,
	}

	w := e.Request(http.MethodPost, "/api/auth/login", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	require.Greater(e.T, result.ExpiresIn, 0)
	require.Equal(e.T, username, result.User.Username)

	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// WebSocketURL starts a real HTTP server for the router once and returns the ws:// URL of path.
func (e *Env) WebSocketURL(path string) string {
	e.T.Helper()
	if e.server == nil {
		e.server = httptest.NewServer(e.Router)
	}
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + path
}
