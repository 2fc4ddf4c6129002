package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hl_gateway/internal/domain"
	"hl_gateway/internal/event"
	"hl_gateway/internal/infra"
)

const (
	streamMaxRetries   = 10
	streamPingInterval = 50 * time.Second
	streamReadTimeout  = 90 * time.Second
)

var _ domain.StreamWorker = (*Stream)(nil)

// wsEnvelope is the outer frame of every server message.
type wsEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type subscription struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

// Stream connects to the realtime websocket, subscribes to mids and the
// user's order and fill channels, and turns messages into events.
// Connected and Disconnected are always delivered; AllMids is dropped
// when the consumer falls behind, since the next message supersedes it.
type Stream struct {
	url     string
	user    string
	events  chan event.Event
	metrics *infra.Metrics

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	PingInterval time.Duration
	ReadTimeout  time.Duration

	logger *slog.Logger
}

// NewStream creates a stream. user may be empty, in which case only mids
// are subscribed.
func NewStream(url, user string, buffer int, metrics *infra.Metrics) *Stream {
	if buffer <= 0 {
		buffer = 256
	}
	return &Stream{
		url:          url,
		user:         user,
		events:       make(chan event.Event, buffer),
		metrics:      metrics,
		PingInterval: streamPingInterval,
		ReadTimeout:  streamReadTimeout,
		logger:       slog.Default().With("module", "hyperliquid_stream"),
	}
}

// Events returns the event channel. It is closed by Disconnect.
func (s *Stream) Events() <-chan event.Event {
	return s.events
}

// Connect starts the WebSocket connection with automatic reconnection
func (s *Stream) Connect(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.connectionLoop(ctx)

	return nil
}

// connectionLoop handles connection and reconnection with exponential backoff
func (s *Stream) connectionLoop(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Stream panic recovered", slog.Any("panic", r))
		}
	}()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stream connection loop stopped")
			return
		default:
		}

		if err := s.connect(ctx); err != nil {
			s.logger.Warn("Stream connection failed",
				slog.Any("error", err),
				slog.Int("retry", retryCount),
			)

			delay := reconnectDelay(retryCount, defaultJitter)
			retryCount++
			if retryCount > streamMaxRetries {
				s.logger.Error("Stream max retries exceeded, resetting counter")
				retryCount = 0
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		// Connection successful, reset retry counter
		retryCount = 0
		s.metrics.SetStreamConnected(true)
		s.emit(ctx, event.Connected{})

		pingCtx, stopPing := context.WithCancel(ctx)
		s.wg.Add(1)
		go s.pingLoop(pingCtx)

		err := s.readLoop(ctx)
		stopPing()

		s.metrics.SetStreamConnected(false)
		s.emit(ctx, event.Disconnected{Err: err})
	}
}

// connect dials and sends every subscription
func (s *Stream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	header := make(http.Header)
	header.Add("User-Agent", infra.DefaultUserAgent)

	conn, _, err := dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	if err := s.subscribe(); err != nil {
		s.closeConnection()
		return fmt.Errorf("subscribe failed: %w", err)
	}

	s.logger.Info("Stream connected", slog.Bool("user_channels", s.user != ""))
	return nil
}

func (s *Stream) subscriptions() []subscription {
	subs := []subscription{{Type: "allMids"}}
	if s.user != "" {
		subs = append(subs,
			subscription{Type: "orderUpdates", User: s.user},
			subscription{Type: "userFills", User: s.user},
		)
	}
	return subs
}

func (s *Stream) subscribe() error {
	for _, sub := range s.subscriptions() {
		msg, err := json.Marshal(map[string]any{"method": "subscribe", "subscription": sub})
		if err != nil {
			return err
		}
		if err := s.threadSafeWrite(websocket.TextMessage, msg); err != nil {
			return err
		}
	}
	return nil
}

// threadSafeWrite sends a message to the WebSocket connection in a thread-safe manner
func (s *Stream) threadSafeWrite(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("connection is nil")
	}

	return conn.WriteMessage(messageType, data)
}

// pingLoop keeps the server from dropping an idle connection
func (s *Stream) pingLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.threadSafeWrite(websocket.TextMessage, []byte(`{"method":"ping"}`)); err != nil {
				s.logger.Debug("Ping failed", slog.Any("error", err))
				return
			}
		}
	}
}

// readLoop reads messages until the connection fails or ctx ends.
// It returns nil on a clean shutdown.
func (s *Stream) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.closeConnection()
			return nil
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()

		if conn == nil {
			return nil
		}

		conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			s.closeConnection()
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Stream read error", slog.Any("error", err))
			}
			return err
		}

		s.handleMessage(ctx, message)
	}
}

// handleMessage parses a frame and forwards it as an event
func (s *Stream) handleMessage(ctx context.Context, message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		s.logger.Debug("Stream message parse error", slog.Any("error", err))
		return
	}

	ev, ok := parseEvent(env)
	if !ok {
		return
	}
	s.metrics.RecordStreamEvent(env.Channel)

	if _, isMids := ev.(event.AllMids); isMids {
		select {
		case s.events <- ev:
		default:
			s.logger.Debug("Event channel full, dropping mids")
		}
		return
	}
	s.emit(ctx, ev)
}

// parseEvent maps a channel envelope to an event. Control frames such as
// pong and subscriptionResponse yield ok=false.
func parseEvent(env wsEnvelope) (event.Event, bool) {
	switch env.Channel {
	case "allMids":
		var data struct {
			Mids map[string]string `json:"mids"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, false
		}
		return event.AllMids{Mids: ParseMids(data.Mids)}, true
	case "orderUpdates":
		return event.OrderUpdates{Raw: env.Data}, true
	case "userFills":
		var head struct {
			IsSnapshot bool `json:"isSnapshot"`
		}
		_ = json.Unmarshal(env.Data, &head)
		return event.UserFills{Raw: env.Data, IsSnapshot: head.IsSnapshot}, true
	default:
		return nil, false
	}
}

// emit delivers an event that must not be dropped, unless ctx ends first.
func (s *Stream) emit(ctx context.Context, ev event.Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

// closeConnection safely closes the WebSocket connection
func (s *Stream) closeConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connected = false
}

// Disconnect closes the connection, waits for the loops and closes Events.
func (s *Stream) Disconnect() {
	if s.cancel != nil {
		s.cancel()
	}
	s.closeConnection()
	s.wg.Wait()
	s.closeOnce.Do(func() { close(s.events) })
	s.logger.Info("Stream disconnected")
}

// IsConnected returns connection status
func (s *Stream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}
