package ws

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	domainerrors "nexus.backend/internal/domain/errors"
	"nexus.backend/pkg/logger"
)

var errSendQueueFull = errors.New("send queue full")

// Connection is one game-server socket. It owns three goroutines: the read
// loop (the caller of readLoop), the write loop and the ping loop. Only the
// write loop writes data frames.
type Connection struct {
	id      string
	service string
	conn    *websocket.Conn
	ctx     context.Context

	readTimeout  time.Duration
	writeTimeout time.Duration
	pingInterval time.Duration

	sendChan chan []byte
	// telemetry budget; link messages are never limited
	limiter *rate.Limiter

	closed    atomic.Bool
	closeChan chan struct{}
	closeOnce sync.Once

	connectedAt time.Time
}

func newConnection(conn *websocket.Conn, service string, opts connectionOptions) *Connection {
	id := uuid.New().String()
	c := &Connection{
		id:           id,
		service:      service,
		conn:         conn,
		ctx:          context.WithValue(context.Background(), logger.ConnectionIDKey, id),
		readTimeout:  opts.readTimeout,
		writeTimeout: opts.writeTimeout,
		pingInterval: opts.pingInterval,
		sendChan:     make(chan []byte, opts.sendQueueSize),
		limiter:      rate.NewLimiter(rate.Limit(opts.messagesPerSecond), opts.burst),
		closeChan:    make(chan struct{}),
		connectedAt:  time.Now(),
	}
	conn.SetReadLimit(opts.maxMessageBytes)
	return c
}

type connectionOptions struct {
	maxMessageBytes   int64
	sendQueueSize     int
	messagesPerSecond float64
	burst             int
	pingInterval      time.Duration
	readTimeout       time.Duration
	writeTimeout      time.Duration
}

func (c *Connection) ID() string { return c.id }

// Context carries the connection id for logging. It is never cancelled, so
// work started from a message outlives the socket.
func (c *Connection) Context() context.Context { return c.ctx }

func (c *Connection) IsClosed() bool { return c.closed.Load() }

// Send queues a text frame without blocking. A reply for a closed
// connection fails with ErrConnectionLost.
func (c *Connection) Send(text string) error {
	if c.IsClosed() {
		return domainerrors.ErrConnectionLost
	}
	select {
	case c.sendChan <- []byte(text):
		return nil
	case <-c.closeChan:
		return domainerrors.ErrConnectionLost
	default:
		return errSendQueueFull
	}
}

// readLoop reads text frames until the socket fails, handing each one to
// handle
func (c *Connection) readLoop(handle func(c *Connection, data []byte)) {
	defer c.Close()

	extend := func() {
		if c.readTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
	}
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.IsClosed() && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug(c.ctx, "Websocket read error", zap.Error(err))
			}
			return
		}
		extend()

		if msgType != websocket.TextMessage {
			logger.Debug(c.ctx, "Ignoring non-text frame", zap.Int("type", msgType))
			continue
		}
		handle(c, data)
	}
}

func (c *Connection) writeLoop() {
	defer c.Close()

	for {
		select {
		case msg := <-c.sendChan:
			if c.writeTimeout > 0 {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug(c.ctx, "Websocket write error", zap.Error(err))
				return
			}
		case <-c.closeChan:
			return
		}
	}
}

func (c *Connection) pingLoop() {
	if c.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				logger.Debug(c.ctx, "Websocket ping failed", zap.Error(err))
				c.Close()
				return
			}
		case <-c.closeChan:
			return
		}
	}
}

// Close ends all three loops. Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closeChan)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = c.conn.Close()
	})
}
