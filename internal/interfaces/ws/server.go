package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"nexus.backend/internal/config"
	"nexus.backend/internal/domain/entities"
	domainerrors "nexus.backend/internal/domain/errors"
	"nexus.backend/internal/infrastructure/metrics"
	"nexus.backend/internal/interfaces/http/middleware"
	"nexus.backend/pkg/logger"
)

// Message outcomes recorded per event
const (
	resultOK        = "ok"
	resultRejected  = "rejected"
	resultError     = "error"
	resultMalformed = "malformed"
	resultUnknown   = "unknown"
	resultShed      = "shed"
)

var ErrServerClosed = errors.New("websocket server closed")

type linkConsumer interface {
	ConsumeCode(ctx context.Context, input entities.ConsumeLinkCodeInput) (*entities.LinkOutcome, error)
}

type telemetryRecorder interface {
	RecordBlockBreak(ctx context.Context, input entities.BlockBreakInput) (*entities.BlockBreak, error)
}

// operation runs off the read loop and returns the reply text, if any
type operation func(ctx context.Context) (reply string, result string)

type eventHandler struct {
	pool    *ants.Pool
	decode  func(raw json.RawMessage) (operation, error)
	limited bool
}

// Server accepts game-server sockets and dispatches their messages to the
// linking and telemetry usecases. Each event kind runs on its own worker
// pool. The link pool blocks the read loop when saturated; the telemetry
// pool sheds events instead, and only telemetry counts against the
// per-connection message rate, so a telemetry backlog or burst never delays
// or drops a link message.
type Server struct {
	linker    linkConsumer
	telemetry telemetryRecorder
	metrics   *metrics.Metrics

	upgrader websocket.Upgrader
	opts     connectionOptions

	linkPool      *ants.Pool
	telemetryPool *ants.Pool
	handlers      map[string]eventHandler

	conns    sync.Map
	inflight sync.WaitGroup
	closing  atomic.Bool
}

// NewServer builds a server from transport settings, filling unset values
// with defaults
func NewServer(cfg config.TransportConfig, linker linkConsumer, telemetry telemetryRecorder, m *metrics.Metrics) (*Server, error) {
	cfg = withDefaults(cfg)

	panicHandler := func(p interface{}) {
		logger.Error(context.Background(), "Websocket operation panicked", zap.Any("panic", p))
	}
	linkPool, err := ants.NewPool(cfg.LinkWorkers, ants.WithPanicHandler(panicHandler))
	if err != nil {
		return nil, fmt.Errorf("link worker pool: %w", err)
	}
	telemetryPool, err := ants.NewPool(cfg.TelemetryWorkers, ants.WithPanicHandler(panicHandler), ants.WithNonblocking(true))
	if err != nil {
		linkPool.Release()
		return nil, fmt.Errorf("telemetry worker pool: %w", err)
	}

	s := &Server{
		linker:    linker,
		telemetry: telemetry,
		metrics:   m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return r.Header.Get("Origin") == ""
			},
		},
		opts: connectionOptions{
			maxMessageBytes:   cfg.MaxMessageBytes,
			sendQueueSize:     cfg.SendQueueSize,
			messagesPerSecond: cfg.MessagesPerSecond,
			burst:             cfg.Burst,
			pingInterval:      cfg.PingInterval,
			readTimeout:       cfg.ReadTimeout,
			writeTimeout:      cfg.WriteTimeout,
		},
		linkPool:      linkPool,
		telemetryPool: telemetryPool,
	}
	s.handlers = map[string]eventHandler{
		EventLinkAccount: {pool: linkPool, decode: s.decodeLinkAccount},
		EventBlockBreak:  {pool: telemetryPool, decode: s.decodeBlockBreak, limited: true},
	}
	return s, nil
}

func withDefaults(cfg config.TransportConfig) config.TransportConfig {
	if cfg.LinkWorkers <= 0 {
		cfg.LinkWorkers = 64
	}
	if cfg.TelemetryWorkers <= 0 {
		cfg.TelemetryWorkers = 32
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 64 * 1024
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = 256
	}
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 100
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return cfg
}

// Handle upgrades the request and serves the socket until it closes
// GET /ws
func (s *Server) Handle(c *gin.Context) {
	if s.closing.Load() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"code":    "ERR_SHUTTING_DOWN",
			"message": ErrServerClosed.Error(),
		})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "Websocket upgrade failed", zap.Error(err))
		return
	}
	service, _ := middleware.GetServiceName(c)
	s.serve(newConnection(conn, service, s.opts))
}

func (s *Server) serve(conn *Connection) {
	s.conns.Store(conn.ID(), conn)
	s.metrics.ConnectionOpened()
	logger.Info(conn.Context(), "Game server connected", zap.String("service", conn.service))

	defer func() {
		s.conns.Delete(conn.ID())
		s.metrics.ConnectionClosed()
		logger.Info(conn.Context(), "Game server disconnected",
			zap.Duration("connected_for", time.Since(conn.connectedAt)),
		)
	}()

	go conn.writeLoop()
	go conn.pingLoop()
	conn.readLoop(s.dispatch)
}

// dispatch decodes one frame and hands it to the event's worker pool.
// Malformed or unknown messages are logged and dropped; the socket stays open.
func (s *Server) dispatch(conn *Connection, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.drop(conn, "", resultMalformed, err)
		return
	}
	h, ok := s.handlers[env.Event]
	if !ok {
		s.drop(conn, env.Event, resultUnknown, fmt.Errorf("%w: unknown event %q", domainerrors.ErrMalformedMessage, env.Event))
		return
	}
	if h.limited && !conn.limiter.Allow() {
		s.metrics.RecordMessage(env.Event, resultShed, 0)
		logger.Warn(conn.Context(), "Telemetry rate exceeded, dropping message",
			zap.String("event", env.Event),
			zap.String("service", conn.service),
		)
		return
	}
	op, err := h.decode(env.Data)
	if err != nil {
		s.drop(conn, env.Event, resultMalformed, err)
		return
	}

	event := env.Event
	started := time.Now()
	s.inflight.Add(1)
	err = h.pool.Submit(func() {
		defer s.inflight.Done()

		reply, result := op(conn.Context())
		s.metrics.RecordMessage(event, result, time.Since(started).Seconds())
		if reply == "" {
			return
		}
		if err := conn.Send(reply); err != nil {
			logger.Debug(conn.Context(), "Reply discarded", zap.String("event", event), zap.Error(err))
		}
	})
	if err != nil {
		s.inflight.Done()
		if errors.Is(err, ants.ErrPoolOverload) {
			s.metrics.RecordMessage(event, resultShed, 0)
			logger.Warn(conn.Context(), "Worker pool saturated, dropping message", zap.String("event", event))
			return
		}
		s.metrics.RecordMessage(event, resultError, time.Since(started).Seconds())
		logger.Error(conn.Context(), "Failed to schedule websocket operation", zap.String("event", event), zap.Error(err))
	}
}

func (s *Server) drop(conn *Connection, event, result string, err error) {
	s.metrics.RecordMessage(event, result, 0)
	logger.Warn(conn.Context(), "Dropping websocket message",
		zap.String("event", event),
		zap.Error(err),
	)
}

func (s *Server) decodeLinkAccount(raw json.RawMessage) (operation, error) {
	var p LinkAccountPayload
	if err := decodeData(raw, &p); err != nil {
		return nil, err
	}
	input := entities.ConsumeLinkCodeInput{
		Code:              p.Token,
		MinecraftID:       p.UserID,
		MinecraftUsername: p.PlayerName,
	}
	return func(ctx context.Context) (string, string) {
		_, err := s.linker.ConsumeCode(ctx, input)
		switch {
		case err == nil:
			return ReplyFor(nil), resultOK
		case domainerrors.IsLinkRejection(err), errors.Is(err, domainerrors.ErrInvalidInput):
			return ReplyFor(err), resultRejected
		default:
			logger.Error(ctx, "Link verification failed", zap.Error(err))
			return ReplyFor(err), resultError
		}
	}, nil
}

func (s *Server) decodeBlockBreak(raw json.RawMessage) (operation, error) {
	var p BlockBreakPayload
	if err := decodeData(raw, &p); err != nil {
		return nil, err
	}
	input := entities.BlockBreakInput{
		MinecraftID: p.UUID,
		Block:       p.Block,
		Position:    p.Position,
	}
	return func(ctx context.Context) (string, string) {
		if _, err := s.telemetry.RecordBlockBreak(ctx, input); err != nil {
			if errors.Is(err, domainerrors.ErrInvalidInput) {
				logger.Warn(ctx, "Block break rejected", zap.Error(err))
				return "", resultRejected
			}
			logger.Error(ctx, "Failed to record block break", zap.Error(err))
			return "", resultError
		}
		return "", resultOK
	}, nil
}

// ConnectionCount reports the number of open sockets
func (s *Server) ConnectionCount() int {
	n := 0
	s.conns.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Shutdown stops accepting sockets, closes the open ones and waits for
// in-flight operations until ctx is done
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}

	s.conns.Range(func(_, v interface{}) bool {
		v.(*Connection).Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		logger.Warn(ctx, "Websocket shutdown timed out with operations in flight")
	}
	s.linkPool.Release()
	s.telemetryPool.Release()
	return err
}
