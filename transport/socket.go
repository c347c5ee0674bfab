package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/openjobspec/ojs-go/backoff"
	"github.com/openjobspec/ojs-go/wire"
)

// Socket multiplexes operations as correlated frames over one
// WebSocket connection. It authenticates on dial, negotiates the wire
// codec, and transparently reconnects after a dropped connection.
// Safe for concurrent use.
type Socket struct {
	url    string
	token  string
	format string
	logger *slog.Logger

	// Reconnection.
	reconnect    bool
	maxDials     int
	dialBackoff  backoff.Strategy
	requestLimit time.Duration

	mu        sync.Mutex // guards conn and writes
	conn      net.Conn
	codec     wire.Codec
	sessionID string
	closed    atomic.Bool

	// pending correlates request frame IDs with waiting callers.
	pending sync.Map // frame ID → chan frameResult
}

type frameResult struct {
	frame *wire.Frame
	err   error
}

// SocketOption configures the socket binding.
type SocketOption func(*Socket)

// WithSocketToken sets the token sent in the auth frame.
func WithSocketToken(token string) SocketOption {
	return func(s *Socket) { s.token = token }
}

// WithSocketFormat requests a wire codec: wire.CodecNameJSON (default)
// or wire.CodecNameMsgpack. The coordinator's auth response settles the
// negotiation.
func WithSocketFormat(format string) SocketOption {
	return func(s *Socket) { s.format = format }
}

// WithSocketLogger sets the structured logger.
func WithSocketLogger(logger *slog.Logger) SocketOption {
	return func(s *Socket) { s.logger = logger }
}

// WithSocketReconnect enables automatic reconnection: up to maxDials
// attempts per outage, delayed by the given strategy.
func WithSocketReconnect(maxDials int, strategy backoff.Strategy) SocketOption {
	return func(s *Socket) {
		s.reconnect = true
		s.maxDials = maxDials
		s.dialBackoff = strategy
	}
}

// WithSocketTimeout sets the default per-operation timeout. Individual
// requests may override it via Request.Timeout.
func WithSocketTimeout(d time.Duration) SocketOption {
	return func(s *Socket) { s.requestLimit = d }
}

// DialSocket connects to a coordinator's WebSocket endpoint (e.g.
// "ws://localhost:8288/v1/socket") and authenticates.
func DialSocket(ctx context.Context, url string, opts ...SocketOption) (*Socket, error) {
	s := &Socket{
		url:          url,
		format:       wire.CodecNameJSON,
		logger:       slog.Default(),
		reconnect:    true,
		maxDials:     5,
		dialBackoff:  backoff.DefaultReconnect(),
		requestLimit: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	go s.readPump(s.conn)
	return s, nil
}

// connect dials, sends the auth frame, and reads the auth response
// directly (the read pump is not running yet).
func (s *Socket) connect(ctx context.Context) error {
	conn, _, _, err := ws.Dial(ctx, s.url)
	if err != nil {
		return &ConnError{Op: "dial", Err: err}
	}

	authFrame, err := wire.NewRequestFrame(wire.GenerateFrameID(), wire.MethodAuth, wire.AuthRequest{
		Token:  s.token,
		Format: s.format,
	})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("ojs: transport: build auth frame: %w", err)
	}
	authFrame.Token = s.token

	// The handshake always runs in JSON; the negotiated codec applies
	// from the first post-auth frame.
	handshake := &wire.JSONCodec{}
	data, err := handshake.Encode(authFrame)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("ojs: transport: encode auth frame: %w", err)
	}
	if err := wsutil.WriteClientText(conn, data); err != nil {
		_ = conn.Close()
		return &ConnError{Op: "auth", Err: err}
	}

	resp, err := s.readAuthResponse(ctx, conn, handshake)
	if err != nil {
		_ = conn.Close()
		return err
	}
	if resp.Type == wire.FrameErr {
		_ = conn.Close()
		if resp.Error != nil {
			return resp.Error
		}
		return &ConnError{Op: "auth", Err: fmt.Errorf("coordinator rejected session")}
	}

	var auth wire.AuthResponse
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &auth); err != nil {
			s.logger.Warn("unreadable auth response, assuming json codec",
				slog.String("error", err.Error()))
		}
	}

	s.mu.Lock()
	s.conn = conn
	s.codec = wire.GetCodec(auth.Format)
	s.sessionID = auth.SessionID
	s.mu.Unlock()

	s.logger.Debug("socket transport connected",
		slog.String("session_id", auth.SessionID),
		slog.String("codec", s.codec.Name()),
	)
	return nil
}

func (s *Socket) readAuthResponse(ctx context.Context, conn net.Conn, codec wire.Codec) (*wire.Frame, error) {
	type read struct {
		frame *wire.Frame
		err   error
	}
	ch := make(chan read, 1)
	go func() {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			ch <- read{err: &ConnError{Op: "auth", Err: err}}
			return
		}
		frame, err := codec.Decode(data)
		if err != nil {
			ch <- read{err: fmt.Errorf("ojs: transport: decode auth response: %w", err)}
			return
		}
		ch <- read{frame: frame}
	}()

	select {
	case r := <-ch:
		return r.frame, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Second):
		return nil, &ConnError{Op: "auth", Err: fmt.Errorf("handshake timeout")}
	}
}

// SessionID returns the session identifier assigned by the coordinator.
func (s *Socket) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Do implements Transport.
func (s *Socket) Do(ctx context.Context, req Request, result any) error {
	if s.closed.Load() {
		return &ConnError{Op: req.Method, Err: net.ErrClosed}
	}

	timeout := s.requestLimit
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	frame, err := wire.NewRequestFrame(wire.GenerateFrameID(), req.Method, req.Body)
	if err != nil {
		return fmt.Errorf("ojs: transport: marshal %s request: %w", req.Method, err)
	}

	ch := make(chan frameResult, 1)
	s.pending.Store(frame.ID, ch)
	defer s.pending.Delete(frame.ID)

	if err := s.writeFrame(frame); err != nil {
		return err
	}

	select {
	case r := <-ch:
		if r.err != nil {
			return r.err
		}
		if r.frame.Type == wire.FrameErr {
			if r.frame.Error != nil {
				return r.frame.Error
			}
			return &wire.Error{Code: wire.CodeInternal, Message: "coordinator returned an empty error frame"}
		}
		if result == nil || len(r.frame.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(r.frame.Data, result); err != nil {
			return fmt.Errorf("ojs: transport: decode %s response: %w", req.Method, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Socket) writeFrame(frame *wire.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return &ConnError{Op: frame.Method, Err: net.ErrClosed}
	}

	data, err := s.codec.Encode(frame)
	if err != nil {
		return fmt.Errorf("ojs: transport: encode frame: %w", err)
	}

	op := ws.OpText
	if s.codec.Name() == wire.CodecNameMsgpack {
		op = ws.OpBinary
	}
	if err := wsutil.WriteClientMessage(s.conn, op, data); err != nil {
		return &ConnError{Op: frame.Method, Err: err}
	}
	return nil
}

// readPump consumes frames from one connection until it fails or the
// socket closes, routing responses to their waiting callers.
func (s *Socket) readPump(conn net.Conn) {
	for {
		data, op, err := wsutil.ReadServerData(conn)
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.logger.Warn("socket transport read failed",
				slog.String("error", err.Error()))
			s.failPending(&ConnError{Op: "read", Err: err})
			if s.reconnect {
				s.redial()
			}
			return
		}
		if op != ws.OpText && op != ws.OpBinary {
			continue
		}

		s.mu.Lock()
		codec := s.codec
		s.mu.Unlock()

		frame, err := codec.Decode(data)
		if err != nil {
			s.logger.Warn("socket transport dropped undecodable frame",
				slog.String("error", err.Error()))
			continue
		}

		switch frame.Type {
		case wire.FrameResponse, wire.FrameErr:
			if ch, ok := s.pending.Load(frame.CorrelID); ok {
				select {
				case ch.(chan frameResult) <- frameResult{frame: frame}:
				default:
				}
			}
		case wire.FramePing:
			pong := &wire.Frame{
				ID:        wire.GenerateFrameID(),
				Type:      wire.FramePong,
				CorrelID:  frame.ID,
				Timestamp: time.Now().UTC(),
			}
			if err := s.writeFrame(pong); err != nil {
				s.logger.Debug("pong write failed", slog.String("error", err.Error()))
			}
		case wire.FramePong, wire.FrameEvent, wire.FrameRequest:
			// Not used by this binding.
		}
	}
}

// failPending delivers a connection error to every caller waiting on
// this connection so none of them block until their deadline.
func (s *Socket) failPending(err error) {
	s.pending.Range(func(key, val any) bool {
		select {
		case val.(chan frameResult) <- frameResult{err: err}:
		default:
		}
		s.pending.Delete(key)
		return true
	})
}

// redial re-establishes the connection with backoff and restarts the
// read pump. Gives up after maxDials attempts.
func (s *Socket) redial() {
	for attempt := 1; attempt <= s.maxDials; attempt++ {
		if s.closed.Load() {
			return
		}
		delay := s.dialBackoff.Delay(attempt)
		s.logger.Info("socket transport reconnecting",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)
		time.Sleep(delay)

		if err := s.connect(context.Background()); err != nil {
			s.logger.Warn("socket transport reconnect failed",
				slog.String("error", err.Error()))
			continue
		}
		go s.readPump(s.conn)
		return
	}
	s.logger.Error("socket transport gave up reconnecting",
		slog.Int("attempts", s.maxDials))
}

// Close implements Transport. In-flight operations fail with a
// connection error.
func (s *Socket) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.failPending(&ConnError{Op: "close", Err: net.ErrClosed})

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
