package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var testTokens = map[string]string{
	"token-alice": "alice",
	"token-bob":   "bob",
}

func newTestBroker(t *testing.T) (*Broker, string) {
	t.Helper()

	broker := NewBroker(Options{
		HeartBeat: -1,
		Authenticator: AuthenticatorFunc(func(_ context.Context, token string) (string, error) {
			if name, ok := testTokens[token]; ok {
				return name, nil
			}
			return "", errors.New("invalid token")
		}),
	})
	srv := httptest.NewServer(http.HandlerFunc(broker.Serve))
	t.Cleanup(func() {
		broker.Close()
		srv.Close()
	})
	return broker, "ws" + strings.TrimPrefix(srv.URL, "http")
}

type stompClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, url string) *stompClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &stompClient{t: t, conn: conn}
}

func (c *stompClient) send(command, body string, headers ...string) {
	c.t.Helper()
	f := frame.New(command, headers...)
	if body != "" {
		f.Body = []byte(body)
	}
	var buf bytes.Buffer
	require.NoError(c.t, frame.NewWriter(&buf).Write(f))
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, buf.Bytes()))
}

func (c *stompClient) read() *frame.Frame {
	c.t.Helper()
	f, err := c.tryRead(2 * time.Second)
	require.NoError(c.t, err)
	return f
}

// tryRead skips heart-beats. A timeout leaves the connection unusable.
func (c *stompClient) tryRead(wait time.Duration) (*frame.Frame, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		f, err := frame.NewReader(bytes.NewReader(payload)).Read()
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
	}
}

func (c *stompClient) connect(token string) *frame.Frame {
	c.t.Helper()
	headers := []string{frame.AcceptVersion, "1.2,1.1,1.0", frame.HeartBeat, "0,0"}
	if token != "" {
		headers = append(headers, "Authorization", "Bearer "+token)
	}
	c.send(frame.CONNECT, "", headers...)
	f := c.read()
	require.Equal(c.t, frame.CONNECTED, f.Command)
	return f
}

// subscribe waits for the broker's receipt so later deliveries are ordered after it.
func (c *stompClient) subscribe(id, destination string) {
	c.t.Helper()
	c.send(frame.SUBSCRIBE, "", frame.Id, id, frame.Destination, destination, frame.Receipt, "sub-"+id)
	f := c.read()
	require.Equal(c.t, frame.RECEIPT, f.Command)
	require.Equal(c.t, "sub-"+id, f.Header.Get(frame.ReceiptId))
}

func (c *stompClient) expectMessage(destination string) map[string]any {
	c.t.Helper()
	f := c.read()
	require.Equal(c.t, frame.MESSAGE, f.Command)
	require.Equal(c.t, destination, f.Header.Get(frame.Destination))
	var payload map[string]any
	require.NoError(c.t, json.Unmarshal(f.Body, &payload))
	return payload
}

func (c *stompClient) expectNothing() {
	c.t.Helper()
	f, err := c.tryRead(150 * time.Millisecond)
	require.Error(c.t, err, "unexpected frame %v", f)
}

func TestConnectAnonymous(t *testing.T) {
	broker, url := newTestBroker(t)
	client := dial(t, url)

	connected := client.connect("")
	require.Equal(t, "1.2", connected.Header.Get(frame.Version))
	require.NotEmpty(t, connected.Header.Get(frame.Session))
	_, hasUser := connected.Header.Contains("user-name")
	require.False(t, hasUser)
	require.Eventually(t, func() bool { return broker.SessionCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestSendToUserReachesOnlyThatUser(t *testing.T) {
	broker, url := newTestBroker(t)

	alice := dial(t, url)
	require.Equal(t, "alice", alice.connect("token-alice").Header.Get("user-name"))
	alice.subscribe("a1", UserPrefix+QueueNotifications)

	bob := dial(t, url)
	bob.connect("token-bob")
	bob.subscribe("b1", UserPrefix+QueueNotifications)

	require.True(t, broker.Online("alice"))
	require.NoError(t, broker.SendToUser("alice", QueueNotifications, map[string]string{"title": "Grade posted"}))

	payload := alice.expectMessage(UserPrefix + QueueNotifications)
	require.Equal(t, "Grade posted", payload["title"])
	bob.expectNothing()
}

func TestSendToUserReachesEverySessionOfUser(t *testing.T) {
	broker, url := newTestBroker(t)

	tabs := []*stompClient{dial(t, url), dial(t, url)}
	for i, tab := range tabs {
		tab.connect("token-alice")
		tab.subscribe(string(rune('a'+i)), UserPrefix+QueueNotifications)
	}

	require.NoError(t, broker.SendToUser("alice", QueueNotifications, map[string]string{"title": "x"}))
	for _, tab := range tabs {
		tab.expectMessage(UserPrefix + QueueNotifications)
	}
}

func TestInvalidTokenConnectsAnonymously(t *testing.T) {
	broker, url := newTestBroker(t)
	client := dial(t, url)

	connected := client.connect("forged")
	_, hasUser := connected.Header.Contains("user-name")
	require.False(t, hasUser)

	client.subscribe("p1", UserPrefix+QueueNotifications)
	client.subscribe("t1", TopicNotifications)

	require.ErrorIs(t, broker.SendToUser("forged", QueueNotifications, "x"), ErrUserOffline)
	require.NoError(t, broker.Broadcast(TopicNotifications, map[string]string{"title": "Campus closed"}))
	require.Equal(t, "Campus closed", client.expectMessage(TopicNotifications)["title"])
}

func TestSendToUserOffline(t *testing.T) {
	broker, _ := newTestBroker(t)
	require.ErrorIs(t, broker.SendToUser("nobody", QueueNotifications, "x"), ErrUserOffline)
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	broker, url := newTestBroker(t)

	authed := dial(t, url)
	authed.connect("token-alice")
	authed.subscribe("t", TopicNotifications)

	anon := dial(t, url)
	anon.connect("")
	anon.subscribe("t", TopicNotifications)

	idle := dial(t, url)
	idle.connect("")

	require.NoError(t, broker.Broadcast(TopicNotifications, map[string]string{"title": "Maintenance"}))
	authed.expectMessage(TopicNotifications)
	anon.expectMessage(TopicNotifications)
	idle.expectNothing()
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	broker, url := newTestBroker(t)
	client := dial(t, url)
	client.connect("")
	client.subscribe("t", TopicNotifications)

	client.send(frame.UNSUBSCRIBE, "", frame.Id, "t", frame.Receipt, "u")
	require.Equal(t, frame.RECEIPT, client.read().Command)

	require.NoError(t, broker.Broadcast(TopicNotifications, "x"))
	client.expectNothing()
}

func TestAppPingRepliesPong(t *testing.T) {
	_, url := newTestBroker(t)
	client := dial(t, url)
	client.connect("")
	client.subscribe("pong", TopicPong)

	client.send(frame.SEND, "", frame.Destination, AppPing)

	f := client.read()
	require.Equal(t, frame.MESSAGE, f.Command)
	require.Equal(t, `"pong"`, string(f.Body))
}

func TestAppBroadcastRequiresIdentity(t *testing.T) {
	_, url := newTestBroker(t)

	listener := dial(t, url)
	listener.connect("")
	listener.subscribe("t", TopicNotifications)

	anon := dial(t, url)
	anon.connect("")
	anon.send(frame.SEND, `{"title":"spam"}`, frame.Destination, AppBroadcast, frame.Receipt, "r1")
	require.Equal(t, frame.RECEIPT, anon.read().Command)

	teacher := dial(t, url)
	teacher.connect("token-bob")
	teacher.send(frame.SEND, `{"title":"Lab moved"}`, frame.Destination, AppBroadcast, frame.Receipt, "r2")
	require.Equal(t, frame.RECEIPT, teacher.read().Command)

	require.Equal(t, "Lab moved", listener.expectMessage(TopicNotifications)["title"])
	listener.expectNothing()
}

func TestDisconnectSendsReceiptAndUnregisters(t *testing.T) {
	broker, url := newTestBroker(t)
	client := dial(t, url)
	client.connect("token-alice")
	require.Eventually(t, func() bool { return broker.Online("alice") }, time.Second, 10*time.Millisecond)

	client.send(frame.DISCONNECT, "", frame.Receipt, "bye")
	f := client.read()
	require.Equal(t, frame.RECEIPT, f.Command)
	require.Equal(t, "bye", f.Header.Get(frame.ReceiptId))

	require.Eventually(t, func() bool {
		return broker.SessionCount() == 0 && !broker.Online("alice")
	}, time.Second, 10*time.Millisecond)
}

func TestFirstFrameMustBeConnect(t *testing.T) {
	_, url := newTestBroker(t)
	client := dial(t, url)

	client.send(frame.SUBSCRIBE, "", frame.Id, "x", frame.Destination, TopicNotifications)
	f := client.read()
	require.Equal(t, frame.ERROR, f.Command)
	require.Contains(t, f.Header.Get(frame.Message), "CONNECT")
}

func TestUnsupportedVersionRejected(t *testing.T) {
	_, url := newTestBroker(t)
	client := dial(t, url)

	client.send(frame.CONNECT, "", frame.AcceptVersion, "2.0")
	require.Equal(t, frame.ERROR, client.read().Command)
}
