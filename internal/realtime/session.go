package realtime

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var supportedVersions = []string{"1.2", "1.1", "1.0"}

type outbound struct {
	frame     *frame.Frame // nil writes a heart-beat
	closeSent bool         // close the socket once written
}

type session struct {
	id     string
	broker *Broker
	socket *websocket.Conn
	ctx    context.Context
	log    *zap.Logger

	// Set during CONNECT, before the session is registered.
	principal string
	version   string
	sendBeat  time.Duration
	recvBeat  time.Duration
	connected bool

	mu   sync.RWMutex
	subs map[string]string // subscription id -> destination

	send chan outbound
	done chan struct{}
	once sync.Once
}

func newSession(b *Broker, conn *websocket.Conn, ctx context.Context) *session {
	id := uuid.NewString()
	return &session{
		id:     id,
		broker: b,
		socket: conn,
		ctx:    ctx,
		log:    b.log.With(zap.String("session", id)),
		subs:   make(map[string]string),
		send:   make(chan outbound, b.opts.SendBuffer),
		done:   make(chan struct{}),
	}
}

func (s *session) readLoop() {
	defer s.close()

	s.socket.SetReadLimit(maxMessageSize)
	_ = s.socket.SetReadDeadline(time.Now().Add(connectTimeout))
	s.socket.SetPongHandler(func(string) error {
		s.extendDeadline()
		return nil
	})

	for {
		_, payload, err := s.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.log.Info("unexpected close", zap.Error(err))
			}
			return
		}
		if s.connected {
			s.extendDeadline()
		}

		reader := frame.NewReader(bytes.NewReader(payload))
		for {
			f, err := reader.Read()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					s.fail("malformed frame", err)
					s.awaitFlush()
					return
				}
				break
			}
			if f == nil {
				continue // heart-beat
			}
			if !s.handle(f) {
				s.awaitFlush()
				return
			}
		}
	}
}

// awaitFlush gives the writer time to send a final RECEIPT or ERROR frame.
func (s *session) awaitFlush() {
	select {
	case <-s.done:
	case <-time.After(writeWait):
	}
}

func (s *session) extendDeadline() {
	wait := pongWait
	if s.recvBeat > 0 && 2*s.recvBeat > wait {
		wait = 2 * s.recvBeat
	}
	_ = s.socket.SetReadDeadline(time.Now().Add(wait))
}

// handle processes one client frame and reports whether to keep reading.
func (s *session) handle(f *frame.Frame) bool {
	if !s.connected {
		if f.Command != frame.CONNECT && f.Command != frame.STOMP {
			s.fail("expected CONNECT frame", nil)
			return false
		}
		return s.handleConnect(f)
	}

	switch f.Command {
	case frame.SUBSCRIBE:
		s.handleSubscribe(f)
	case frame.UNSUBSCRIBE:
		s.handleUnsubscribe(f)
	case frame.SEND:
		s.handleSend(f)
	case frame.DISCONNECT:
		s.receipt(f, true)
		return false
	case frame.ACK, frame.NACK, frame.BEGIN, frame.COMMIT, frame.ABORT:
		s.receipt(f, false)
	case frame.CONNECT, frame.STOMP:
		s.fail("already connected", nil)
		return false
	default:
		s.fail("unsupported command "+f.Command, nil)
		return false
	}
	return true
}

func (s *session) handleConnect(f *frame.Frame) bool {
	version, ok := negotiateVersion(f.Header.Get(frame.AcceptVersion))
	if !ok {
		s.fail("supported protocol versions are "+strings.Join(supportedVersions, ","), nil)
		return false
	}
	s.version = version

	clientSend, clientRecv, err := parseHeartBeat(f.Header.Get(frame.HeartBeat))
	if err != nil {
		s.fail("invalid heart-beat header", err)
		return false
	}
	beat := s.broker.opts.HeartBeat
	s.sendBeat = negotiate(beat, clientRecv)
	s.recvBeat = negotiate(clientSend, beat)

	s.principal = s.authenticate(f)
	s.connected = true
	s.broker.register(s)
	s.extendDeadline()

	connected := frame.New(frame.CONNECTED,
		frame.Version, version,
		frame.HeartBeat, formatHeartBeat(beat, beat),
		frame.Session, s.id,
		frame.Server, "campus/1.0",
	)
	if s.principal != "" {
		connected.Header.Add("user-name", s.principal)
	}
	s.enqueue(outbound{frame: connected})

	if s.sendBeat > 0 {
		go s.heartbeatLoop()
	}
	s.log.Debug("session connected",
		zap.String("version", version),
		zap.String("principal", s.principal),
		zap.Duration("heart_beat_out", s.sendBeat),
	)
	return true
}

// authenticate resolves the CONNECT bearer token. Failures leave the session
// anonymous; they never refuse the connection.
func (s *session) authenticate(f *frame.Frame) string {
	raw, ok := f.Header.Contains("Authorization")
	if !ok {
		raw, ok = f.Header.Contains("authorization")
	}
	if !ok {
		return ""
	}
	token, ok := bearerToken(raw)
	if !ok {
		s.log.Warn("ignoring malformed authorization header")
		return ""
	}
	if s.broker.opts.Authenticator == nil {
		return ""
	}

	name, err := s.broker.opts.Authenticator.Authenticate(s.ctx, token)
	if err != nil {
		s.log.Warn("connect authentication failed, continuing anonymous", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(name)
}

func (s *session) handleSubscribe(f *frame.Frame) {
	dest := normalizeDestination(f.Header.Get(frame.Destination))
	id := f.Header.Get(frame.Id)
	if id == "" {
		id = dest // 1.0 clients may omit the id
	}

	switch {
	case dest == "":
		s.log.Debug("subscribe without destination")
	case isTopic(dest):
		s.subscribe(id, dest)
	case isUserQueue(dest):
		if s.principal == "" {
			s.log.Debug("anonymous subscribe to private destination ignored", zap.String("destination", dest))
		} else {
			s.subscribe(id, dest)
		}
	default:
		s.log.Debug("unsupported subscribe destination", zap.String("destination", dest))
	}
	s.receipt(f, false)
}

func (s *session) subscribe(id, dest string) {
	s.mu.Lock()
	s.subs[id] = dest
	s.mu.Unlock()
}

func (s *session) handleUnsubscribe(f *frame.Frame) {
	id := f.Header.Get(frame.Id)
	if id == "" {
		id = normalizeDestination(f.Header.Get(frame.Destination))
	}
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
	s.receipt(f, false)
}

func (s *session) handleSend(f *frame.Frame) {
	dest := normalizeDestination(f.Header.Get(frame.Destination))
	switch dest {
	case AppPing:
		_ = s.broker.Broadcast(TopicPong, "pong")
	case AppBroadcast:
		if s.principal == "" {
			s.log.Debug("anonymous broadcast ignored")
			break
		}
		s.broker.broadcastRaw(TopicNotifications, f.Body)
	default:
		s.log.Debug("unroutable send", zap.String("destination", dest))
	}
	s.receipt(f, false)
}

func (s *session) receipt(f *frame.Frame, closeAfter bool) {
	id, ok := f.Header.Contains(frame.Receipt)
	if !ok {
		if closeAfter {
			s.enqueue(outbound{closeSent: true})
		}
		return
	}
	s.enqueue(outbound{
		frame:     frame.New(frame.RECEIPT, frame.ReceiptId, id),
		closeSent: closeAfter,
	})
}

// deliver queues a MESSAGE for every subscription matching destination.
func (s *session) deliver(destination string, body []byte) {
	s.mu.RLock()
	var ids []string
	for id, dest := range s.subs {
		if dest == destination {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range ids {
		msg := frame.New(frame.MESSAGE,
			frame.Destination, destination,
			frame.Subscription, id,
			frame.MessageId, uuid.NewString(),
			frame.ContentType, "application/json",
			frame.ContentLength, strconv.Itoa(len(body)),
		)
		msg.Body = body
		s.enqueue(outbound{frame: msg})
	}
}

// fail sends an ERROR frame and closes the session after it is written.
func (s *session) fail(message string, cause error) {
	s.log.Info("protocol error", zap.String("reason", message), zap.Error(cause))
	f := frame.New(frame.ERROR, frame.Message, message)
	if cause != nil {
		f.Body = []byte(cause.Error())
	}
	s.enqueue(outbound{frame: f, closeSent: true})
}

// enqueue hands o to the writer. A full buffer means the client cannot keep
// up; the session is dropped.
func (s *session) enqueue(o outbound) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.send <- o:
	case <-s.done:
	default:
		s.log.Warn("dropping slow session", zap.String("principal", s.principal))
		s.close()
	}
}

func (s *session) heartbeatLoop() {
	ticker := time.NewTicker(s.sendBeat)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.enqueue(outbound{})
		}
	}
}

func (s *session) writeLoop() {
	defer s.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	var buf bytes.Buffer
	for {
		select {
		case <-s.done:
			return
		case o := <-s.send:
			_ = s.socket.SetWriteDeadline(time.Now().Add(writeWait))
			buf.Reset()
			if o.frame == nil && !o.closeSent {
				buf.WriteByte('\n')
			} else if o.frame != nil {
				if err := frame.NewWriter(&buf).Write(o.frame); err != nil {
					s.log.Warn("encode frame", zap.Error(err))
					return
				}
			}
			if buf.Len() > 0 {
				if err := s.socket.WriteMessage(websocket.TextMessage, buf.Bytes()); err != nil {
					return
				}
			}
			if o.closeSent {
				_ = s.socket.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
		case <-ticker.C:
			_ = s.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.broker.unregister(s)
		_ = s.socket.Close()
	})
}

// negotiateVersion picks the highest version both sides speak. A missing
// accept-version header means a 1.0 client.
func negotiateVersion(accept string) (string, bool) {
	if strings.TrimSpace(accept) == "" {
		return "1.0", true
	}
	offered := map[string]struct{}{}
	for _, v := range strings.Split(accept, ",") {
		offered[strings.TrimSpace(v)] = struct{}{}
	}
	for _, v := range supportedVersions {
		if _, ok := offered[v]; ok {
			return v, true
		}
	}
	return "", false
}
