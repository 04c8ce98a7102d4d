package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"net"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/live-translate/internal/orchestrator"
	"github.com/GriffinCanCode/live-translate/internal/trace"
)

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		trace.Logger(r.Context()).Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	c := &client{
		conn:    conn,
		remote:  remoteIP(r),
		inbound: rate.NewLimiter(ConnRateLimit, ConnRateBurst),
		frames:  rate.NewLimiter(FramePushRate, 1),
	}

	s.mu.Lock()
	s.clients[conn] = c
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	// Get trace context from HTTP upgrade request
	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	s.send(baseCtx, c, StatusMessage{Type: "status", Status: s.session.Status()})

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !c.inbound.Allow() || !s.allowIP(c.remote) {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			s.send(baseCtx, c, ErrorMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "surface":
			var sm SurfaceMessage
			if err := json.Unmarshal(msg, &sm); err != nil {
				continue
			}
			if sm.Width <= 0 || sm.Height <= 0 || sm.Width > MaxSurfaceSide || sm.Height > MaxSurfaceSide {
				s.send(baseCtx, c, ErrorMessage{Type: "error", Message: "invalid surface size"})
				continue
			}
			c.setSurface(image.Pt(sm.Width, sm.Height))
			s.sendOverlay(baseCtx, c)
		case "ping":
			s.send(baseCtx, c, PongMessage{Type: "pong"})
		}
	}
}

// broadcast turns session notices into pushes for every client.
func (s *Server) broadcast(ctx context.Context) {
	notices := s.session.Notices()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-notices:
			s.push(ctx, n)
		}
	}
}

func (s *Server) push(ctx context.Context, n orchestrator.Notice) {
	clients := s.snapshotClients()
	if len(clients) == 0 {
		return
	}

	switch n.Kind {
	case orchestrator.NoticeStatus:
		msg := StatusMessage{Type: "status", Status: s.session.Status()}
		for _, c := range clients {
			go s.send(ctx, c, msg)
		}
	case orchestrator.NoticeFrame:
		var frame *FrameMessage
		for _, c := range clients {
			if !c.frames.Allow() {
				continue
			}
			if frame == nil {
				if frame = s.frameMessage(); frame == nil {
					return
				}
			}
			go func(c *client, m FrameMessage) {
				s.send(ctx, c, m)
				s.sendOverlay(ctx, c)
			}(c, *frame)
		}
	case orchestrator.NoticeRegions, orchestrator.NoticeHook:
		for _, c := range clients {
			go s.sendOverlay(ctx, c)
		}
	}
}

func (s *Server) frameMessage() *FrameMessage {
	f, ok := s.session.Frame()
	if !ok {
		return nil
	}
	data, err := encodeJPEG(f.Image())
	if err != nil {
		return nil
	}
	return &FrameMessage{
		Type:   "frame",
		Width:  f.Width,
		Height: f.Height,
		JPEG:   base64.StdEncoding.EncodeToString(data),
	}
}

// sendOverlay sends placements for c's surface, or for the frame size when
// the client has not reported one.
func (s *Server) sendOverlay(ctx context.Context, c *client) {
	surface := c.getSurface()
	if surface.X <= 0 || surface.Y <= 0 {
		f, ok := s.session.Frame()
		if !ok {
			return
		}
		surface = image.Pt(f.Width, f.Height)
	}
	s.send(ctx, c, OverlayMessage{
		Type:       "overlay",
		Width:      surface.X,
		Height:     surface.Y,
		Placements: s.session.Overlay(surface),
	})
}

func (s *Server) send(ctx context.Context, c *client, msg any) {
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		trace.Logger(ctx).Debug("websocket write error", "remote", c.remote, "error", err)
	}
}

func (s *Server) snapshotClients() []*client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
