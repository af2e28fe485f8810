package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/campus/internal/handlers/testutil"
	"github.com/charlesng35/campus/internal/models"
	"github.com/charlesng35/campus/internal/realtime"
)

type stompConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialStomp(t *testing.T, env *testutil.Env, token string) *stompConn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(env.WebSocketURL("/ws"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &stompConn{t: t, conn: conn}
	headers := []string{frame.AcceptVersion, "1.2", frame.HeartBeat, "0,0"}
	if token != "" {
		headers = append(headers, "Authorization", "Bearer "+token)
	}
	c.send(frame.New(frame.CONNECT, headers...))
	require.Equal(t, frame.CONNECTED, c.read().Command)
	return c
}

func (c *stompConn) send(f *frame.Frame) {
	c.t.Helper()
	var buf bytes.Buffer
	require.NoError(c.t, frame.NewWriter(&buf).Write(f))
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, buf.Bytes()))
}

func (c *stompConn) read() *frame.Frame {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, payload, err := c.conn.ReadMessage()
		require.NoError(c.t, err)
		f, err := frame.NewReader(bytes.NewReader(payload)).Read()
		require.NoError(c.t, err)
		if f != nil {
			return f
		}
	}
}

func (c *stompConn) subscribe(destination string) {
	c.t.Helper()
	c.send(frame.New(frame.SUBSCRIBE, frame.Id, destination, frame.Destination, destination, frame.Receipt, destination))
	require.Equal(c.t, frame.RECEIPT, c.read().Command)
}

func (c *stompConn) expectNotification(destination string) map[string]any {
	c.t.Helper()
	f := c.read()
	require.Equal(c.t, frame.MESSAGE, f.Command)
	require.Equal(c.t, destination, f.Header.Get(frame.Destination))
	var payload map[string]any
	require.NoError(c.t, json.Unmarshal(f.Body, &payload))
	return payload
}

func TestCreatedNotificationReachesRecipientOverStomp(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateUser("admin", "admin-password", models.RoleAdmin)
	alice := env.CreateUser("alice", "alice-password", models.RoleStudent)

	client := dialStomp(t, env, env.Token(alice))
	client.subscribe(realtime.UserPrefix + realtime.QueueNotifications)

	w := env.Request(http.MethodPost, "/api/notifications", map[string]any{
		"user_id": alice.ID,
		"type":    "system",
		"title":   "Welcome",
		"content": "Term starts Monday",
	}, env.Token(admin))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	payload := client.expectNotification(realtime.UserPrefix + realtime.QueueNotifications)
	require.Equal(t, "Welcome", payload["title"])
	require.Equal(t, "Term starts Monday", payload["content"])
	require.Equal(t, "system", payload["type"])
	require.NotZero(t, payload["timestamp"])
}

func TestBroadcastReachesAnonymousSubscriber(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateUser("admin", "admin-password", models.RoleAdmin)

	anon := dialStomp(t, env, "")
	anon.subscribe(realtime.TopicNotifications)

	w := env.Request(http.MethodPost, "/api/notifications", map[string]any{"title": "Campus closed"}, env.Token(admin))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Equal(t, "Campus closed", anon.expectNotification(realtime.TopicNotifications)["title"])
}

func TestGradeNotificationPushedToStudent(t *testing.T) {
	env := testutil.NewEnv(t)
	teacher := env.CreateUser("prof", "prof-password", models.RoleTeacher)
	student := env.CreateUser("stu", "stu-password", models.RoleStudent)
	course := createCourse(t, env, env.Token(teacher), map[string]any{"code": "EN101", "name": "English"})

	client := dialStomp(t, env, env.Token(student))
	client.subscribe(realtime.UserPrefix + realtime.QueueNotifications)

	w := env.Request(http.MethodPost, "/api/enrollments", map[string]any{"course_id": course.ID}, env.Token(student))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, "Enrollment confirmed", client.expectNotification(realtime.UserPrefix+realtime.QueueNotifications)["title"])

	var enrollment models.Enrollment
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &enrollment)
	w = env.Request(http.MethodPost, "/api/enrollments/"+itoa(enrollment.ID)+"/grade", map[string]any{"grade": 77}, env.Token(teacher))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	payload := client.expectNotification(realtime.UserPrefix + realtime.QueueNotifications)
	require.Equal(t, "Grade posted", payload["title"])
	require.Equal(t, "grade", payload["type"])
}

func TestOfflineRecipientKeepsStoredRow(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateUser("admin", "admin-password", models.RoleAdmin)
	alice := env.CreateUser("alice", "alice-password", models.RoleStudent)

	w := env.Request(http.MethodPost, "/api/notifications", map[string]any{"user_id": alice.ID, "title": "While away"}, env.Token(admin))
	require.Equal(t, http.StatusCreated, w.Code)

	require.Eventually(t, func() bool { return env.Queue.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	w = env.Request(http.MethodGet, "/api/notifications", nil, env.Token(alice))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, testutil.DecodeResponse(t, w).Meta.Unread)
}
