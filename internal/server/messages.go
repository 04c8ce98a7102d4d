package server

import (
	"github.com/GriffinCanCode/live-translate/internal/orchestrator"
	"github.com/GriffinCanCode/live-translate/internal/overlay"
)

// Message is the envelope every WebSocket message shares.
type Message struct {
	Type string `json:"type"`
}

// SurfaceMessage reports the renderer's drawing surface size.
type SurfaceMessage struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type StatusMessage struct {
	Type   string              `json:"type"`
	Status orchestrator.Status `json:"status"`
}

// FrameMessage carries one captured frame as base64 JPEG.
type FrameMessage struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	JPEG   string `json:"jpeg"`
}

// OverlayMessage carries label placements for the connection's surface.
type OverlayMessage struct {
	Type       string              `json:"type"`
	Width      int                 `json:"width"`
	Height     int                 `json:"height"`
	Placements []overlay.Placement `json:"placements"`
}

type PongMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Request bodies.

type attachRequest struct {
	ID uint64 `json:"id"`
}

type hookRequest struct {
	Enabled bool `json:"enabled"`
}

type translationRequest struct {
	Translation string `json:"translation"`
}
