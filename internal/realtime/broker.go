// Package realtime is a STOMP 1.0-1.2 broker over WebSocket. Sessions bind a
// principal at CONNECT and receive MESSAGE frames for their subscriptions on
// shared topics and on their private /user/queue destinations.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/charlesng35/campus/pkg/logger"
	"github.com/charlesng35/campus/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	connectTimeout = 10 * time.Second
	maxMessageSize = 1 << 20 // 1 MiB

	defaultBufferSize = 64
	defaultHeartBeat  = 10 * time.Second
)

// ErrUserOffline is returned by SendToUser when the principal has no live session.
var ErrUserOffline = errors.New("realtime: user has no live session")

// Options configures a Broker.
type Options struct {
	// Authenticator validates CONNECT bearer tokens. Nil makes every
	// session anonymous.
	Authenticator Authenticator
	// AllowedOrigins extends the same-host and loopback origin policy.
	AllowedOrigins []string
	// HeartBeat is both the interval the broker can send at and the one it
	// wants to receive at. Negative disables heart-beating.
	HeartBeat  time.Duration
	SendBuffer int
}

// Broker tracks live sessions and routes frames between them.
type Broker struct {
	opts     Options
	upgrader websocket.Upgrader
	log      *zap.Logger

	sessions *xsync.MapOf[string, *session]
	// principals maps a username to its live sessions. Values are replaced,
	// never mutated, so readers can iterate them without locking.
	principals *xsync.MapOf[string, map[string]*session]
}

func NewBroker(opts Options) *Broker {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultBufferSize
	}
	if opts.HeartBeat == 0 {
		opts.HeartBeat = defaultHeartBeat
	}
	if opts.HeartBeat < 0 {
		opts.HeartBeat = 0
	}

	b := &Broker{
		opts:       opts,
		log:        logger.WithModule("realtime"),
		sessions:   xsync.NewMapOf[string, *session](),
		principals: xsync.NewMapOf[string, map[string]*session](),
	}
	b.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		Subprotocols:    []string{"v12.stomp", "v11.stomp", "v10.stomp"},
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), r.Host, opts.AllowedOrigins)
		},
	}
	return b
}

// Serve upgrades the request and runs the session until it disconnects.
func (b *Broker) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	s := newSession(b, conn, r.Context())
	go s.writeLoop()
	s.readLoop()
}

// SendToUser delivers payload to every session of username subscribed to
// /user<destination>. It returns ErrUserOffline when the user has no session.
func (b *Broker) SendToUser(username, destination string, payload any) error {
	sessions, ok := b.principals.Load(username)
	if !ok || len(sessions) == 0 {
		return ErrUserOffline
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("realtime: encode payload: %w", err)
	}

	target := UserPrefix + normalizeDestination(destination)
	for _, s := range sessions {
		s.deliver(target, body)
	}
	return nil
}

// Broadcast delivers payload to every session subscribed to destination.
func (b *Broker) Broadcast(destination string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("realtime: encode payload: %w", err)
	}
	b.broadcastRaw(normalizeDestination(destination), body)
	return nil
}

func (b *Broker) broadcastRaw(destination string, body []byte) {
	b.sessions.Range(func(_ string, s *session) bool {
		s.deliver(destination, body)
		return true
	})
}

// Online reports whether username has at least one live session.
func (b *Broker) Online(username string) bool {
	sessions, ok := b.principals.Load(username)
	return ok && len(sessions) > 0
}

// SessionCount returns the number of connected sessions.
func (b *Broker) SessionCount() int {
	return b.sessions.Size()
}

// Close disconnects every session.
func (b *Broker) Close() {
	b.sessions.Range(func(_ string, s *session) bool {
		s.close()
		return true
	})
}

func (b *Broker) register(s *session) {
	b.sessions.Store(s.id, s)
	metrics.RealtimeSessions.Inc()

	if s.principal == "" {
		return
	}
	b.principals.Compute(s.principal, func(old map[string]*session, _ bool) (map[string]*session, bool) {
		next := make(map[string]*session, len(old)+1)
		for id, existing := range old {
			next[id] = existing
		}
		next[s.id] = s
		return next, false
	})
}

func (b *Broker) unregister(s *session) {
	if _, loaded := b.sessions.LoadAndDelete(s.id); !loaded {
		return
	}
	metrics.RealtimeSessions.Dec()

	if s.principal == "" {
		return
	}
	b.principals.Compute(s.principal, func(old map[string]*session, loaded bool) (map[string]*session, bool) {
		if !loaded {
			return nil, true
		}
		next := make(map[string]*session, len(old))
		for id, existing := range old {
			if id != s.id {
				next[id] = existing
			}
		}
		return next, len(next) == 0
	})
}
