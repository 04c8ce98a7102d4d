package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/live-translate/internal/capture"
	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
	"github.com/GriffinCanCode/live-translate/internal/orchestrator"
	"github.com/GriffinCanCode/live-translate/internal/overlay"
	"github.com/GriffinCanCode/live-translate/internal/recognition"
	"github.com/GriffinCanCode/live-translate/internal/trace"
	"github.com/GriffinCanCode/live-translate/internal/translation"
)

// Session is the part of the orchestrator the server drives.
type Session interface {
	Windows(ctx context.Context) []capture.Target
	Attach(ctx context.Context, id uint64) (capture.Target, error)
	Detach() error
	Configure(ctx context.Context, u orchestrator.Update) (orchestrator.Settings, error)
	SetHookMode(ctx context.Context, on bool) error
	Status() orchestrator.Status
	Regions() []recognition.Region
	SetTranslation(i int, text string) error
	Export() (string, int, error)
	Frame() (*capture.Frame, bool)
	Composite() (*image.RGBA, bool)
	Overlay(surface image.Point) []overlay.Placement
	Notices() <-chan orchestrator.Notice
}

// client is one WebSocket renderer.
type client struct {
	conn    *websocket.Conn
	remote  string
	inbound *rate.Limiter
	frames  *rate.Limiter

	mu      sync.Mutex
	surface image.Point
}

func (c *client) setSurface(p image.Point) {
	c.mu.Lock()
	c.surface = p
	c.mu.Unlock()
}

func (c *client) getSurface() image.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface
}

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	session Session
	cancel  context.CancelFunc

	mu      sync.RWMutex
	clients map[*websocket.Conn]*client

	ipMu     sync.Mutex
	ipLimits map[string]*ipEntry
}

// New creates a server and starts pushing session notices to clients.
func New(session Session) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		session:  session,
		cancel:   cancel,
		clients:  make(map[*websocket.Conn]*client),
		ipLimits: make(map[string]*ipEntry),
	}

	go s.broadcast(ctx)
	go s.cleanupIPLimits(ctx)

	return s
}

// Close stops the broadcasters.
func (s *Server) Close() {
	s.cancel()
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/windows", s.handleWindows)
	mux.HandleFunc("POST /api/attach", s.handleAttach)
	mux.HandleFunc("POST /api/detach", s.handleDetach)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/config", s.handleConfig)
	mux.HandleFunc("POST /api/hook", s.handleHook)
	mux.HandleFunc("GET /api/languages", s.handleLanguages)
	mux.HandleFunc("GET /api/regions", s.handleRegions)
	mux.HandleFunc("POST /api/regions/{i}/translation", s.handleTranslation)
	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("GET /api/frame.jpg", s.handleFrame)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"windows": s.session.Windows(r.Context())})
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	var req attachRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := s.session.Attach(r.Context(), req.ID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"target": t})
}

func (s *Server) handleDetach(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Detach(); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "detached"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Status())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	var u orchestrator.Update
	if !decode(w, r, &u) {
		return
	}
	settings, err := s.session.Configure(r.Context(), u)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	var req hookRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.session.SetHookMode(r.Context(), req.Enabled); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"hook_mode": req.Enabled})
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"languages": translation.Languages()})
}

func (s *Server) handleRegions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"regions": s.session.Regions()})
}

func (s *Server) handleTranslation(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("i"))
	if err != nil {
		writeError(r.Context(), w, apperrors.Newf(apperrors.InvalidArgument, "bad region index %q", r.PathValue("i")))
		return
	}
	var req translationRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.session.SetTranslation(i, req.Translation); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"index": i})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	path, n, err := s.session.Export()
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "count": n})
}

// handleFrame serves the latest frame as JPEG; ?overlay=1 burns labels in.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	var img image.Image
	var ok bool
	if r.URL.Query().Get("overlay") == "1" {
		img, ok = s.session.Composite()
	} else {
		var f *capture.Frame
		if f, ok = s.session.Frame(); ok {
			img = f.Image()
		}
	}
	if !ok {
		writeError(r.Context(), w, apperrors.New(apperrors.CaptureUnavailable, "no frame captured yet"))
		return
	}

	data, err := encodeJPEG(img)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "encode frame")
	}
	return buf.Bytes(), nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(r.Context(), w, apperrors.Wrap(err, apperrors.InvalidArgument, "malformed request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := httpStatus(code)
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		trace.Logger(ctx).Error("request failed", "error", err)
	} else {
		trace.Logger(ctx).Debug("request rejected", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg, "code": string(code)})
}

func httpStatus(code apperrors.Code) int {
	switch code {
	case apperrors.InvalidArgument, apperrors.ConfigInvalid:
		return http.StatusBadRequest
	case apperrors.TargetLost, apperrors.CaptureUnavailable:
		return http.StatusNotFound
	case apperrors.HookFailed:
		return http.StatusConflict
	case apperrors.Timeout:
		return http.StatusGatewayTimeout
	case apperrors.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) allowIP(ip string) bool {
	s.ipMu.Lock()
	defer s.ipMu.Unlock()

	e, ok := s.ipLimits[ip]
	if !ok {
		e = &ipEntry{limiter: rate.NewLimiter(IPRateLimit, IPRateBurst)}
		s.ipLimits[ip] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

func (s *Server) cleanupIPLimits(ctx context.Context) {
	ticker := time.NewTicker(IPRateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeIPLimits(time.Now().Add(-IPRateLimitEntryTTL))
		}
	}
}

func (s *Server) purgeIPLimits(cutoff time.Time) {
	s.ipMu.Lock()
	defer s.ipMu.Unlock()
	for ip, e := range s.ipLimits {
		if e.lastSeen.Before(cutoff) {
			delete(s.ipLimits, ip)
		}
	}
	slog.Debug("ip rate limits purged", "remaining", len(s.ipLimits))
}
