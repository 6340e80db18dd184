package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"github.com/l1jgo/sectorsim/internal/config"
	"github.com/l1jgo/sectorsim/internal/world"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	helloWait   = 5 * time.Second
	readWait    = 60 * time.Second
	defaultView = 80
)

// Server mirrors a zone to websocket clients. Every connection owns a
// camera for its user; a writer goroutine streams the camera's scenes and
// the reader loop turns client messages into camera input.
type Server struct {
	zone      *world.Zone
	name      string
	log       *zap.Logger
	tokenHash []byte
	interval  time.Duration
	writeWait time.Duration
	compress  bool

	upgrader websocket.Upgrader
	enc      *zstd.Encoder
	nextID   atomic.Uint64
	sessions atomic.Int64
}

func NewServer(z *world.Zone, name string, cfg config.ObserverConfig, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("observer zstd: %w", err)
	}
	rate := cfg.FrameRate
	if rate <= 0 {
		rate = 20
	}
	wait := cfg.WriteWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	s := &Server{
		zone:      z,
		name:      name,
		log:       log.With(zap.String("component", "observer")),
		interval:  time.Second / time.Duration(rate),
		writeWait: wait,
		compress:  cfg.Compress,
		enc:       enc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	if cfg.TokenHash != "" {
		s.tokenHash = []byte(cfg.TokenHash)
	}
	return s, nil
}

// Sessions returns the number of connected clients.
func (s *Server) Sessions() int64 { return s.sessions.Load() }

// Handler serves /ws and /status.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.WSHandler())
	mux.HandleFunc("/status", s.StatusHandler())
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("observer listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	s.log.Info("observer listening", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("observer serve: %w", err)
	}
	return nil
}

func (s *Server) StatusHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		z := s.zone
		resp := Status{
			ProtocolVersion: Version,
			Zone:            s.name,
			Width:           z.Width(),
			Height:          z.Height(),
			Cycle:           z.Cycle(),
			ZoneMS:          z.ZoneTime().Milliseconds(),
			Sprites:         z.SpriteCount(),
			Cameras:         len(z.Cameras()),
			Sessions:        s.sessions.Load(),
			Paused:          z.Paused(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: HELLO first.
		_ = conn.SetReadDeadline(time.Now().Add(helloWait))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var hello ClientMsg
		if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != MsgHello || hello.ProtocolVersion != Version {
			closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
			return
		}
		if hello.User == "" {
			closeWith(conn, websocket.ClosePolicyViolation, "missing user")
			return
		}
		if !s.authorized(hello.Token) {
			closeWith(conn, websocket.ClosePolicyViolation, "bad token")
			return
		}

		w, h := hello.W, hello.H
		if w <= 0 {
			w = defaultView
		}
		if h <= 0 {
			h = defaultView
		}
		cam := world.NewCamera(world.UserID(hello.User), world.Rect{X: hello.X, Y: hello.Y, W: w, H: h})
		if err := s.zone.AddCamera(cam); err != nil {
			closeWith(conn, websocket.CloseTryAgainLater, "camera limit reached")
			return
		}
		defer func() { _ = s.zone.RemoveCamera(cam) }()

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		log := s.log.With(zap.String("session", sid), zap.String("user", hello.User))
		s.sessions.Add(1)
		defer s.sessions.Add(-1)
		log.Info("observer joined", zap.Bool("compress", hello.Compress && s.compress))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			writeErr <- s.stream(ctx, conn, cam, hello.Compress && s.compress)
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readWait))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var m ClientMsg
			if err := json.Unmarshal(msg, &m); err != nil {
				log.Debug("bad client message", zap.Error(err))
				continue
			}
			apply(cam, m)
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case err := <-writeErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Debug("observer writer stopped", zap.Error(err))
			}
		case <-time.After(500 * time.Millisecond):
		}
		log.Info("observer left")
	}
}

// stream sends a frame whenever the camera publishes a newer scene. A
// scene the camera is still holding is skipped until the next tick.
func (s *Server) stream(ctx context.Context, conn *websocket.Conn, cam *world.Camera, compress bool) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var (
		canvas frameCanvas
		last   uint64
		sent   bool
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		sc := cam.LockScene()
		if sc == nil {
			continue
		}
		if sent && sc.Cycle() == last {
			sc.Unlock()
			continue
		}
		frame := buildFrame(sc, &canvas)
		sc.Unlock()

		b, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		last, sent = frame.Cycle, true

		kind := websocket.TextMessage
		if compress {
			b = s.enc.EncodeAll(b, nil)
			kind = websocket.BinaryMessage
		}
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeWait))
		if err := conn.WriteMessage(kind, b); err != nil {
			return err
		}
	}
}

func (s *Server) authorized(token string) bool {
	if s.tokenHash == nil {
		return true
	}
	return bcrypt.CompareHashAndPassword(s.tokenHash, []byte(token)) == nil
}

// apply turns a client message into camera input.
func apply(cam *world.Camera, m ClientMsg) {
	switch m.Type {
	case MsgMove:
		cam.Move(m.X, m.Y)
	case MsgResize:
		cam.Resize(m.W, m.H)
	case MsgClick:
		cam.Click(world.Button(m.Button), max(m.Count, 1), m.X, m.Y)
	case MsgPress:
		cam.Press(world.Button(m.Button), m.X, m.Y)
	case MsgRelease:
		cam.Release(world.Button(m.Button), m.X, m.Y)
	case MsgWheel:
		cam.Wheel(m.Delta, m.X, m.Y)
	case MsgKey:
		switch m.Action {
		case "down":
			cam.KeyDown(m.Key)
		case "up":
			cam.KeyUp(m.Key)
		case "typed":
			if r, _ := utf8.DecodeRuneInString(m.Rune); r != utf8.RuneError {
				cam.KeyTyped(r)
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}
