package pipeline

import (
	"image"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/live-translate/internal/capture"
	"github.com/GriffinCanCode/live-translate/internal/recognition"
)

// EventKind discriminates Event.
type EventKind int

const (
	FrameReady EventKind = iota
	RecognitionReady
	StatusChanged
)

func (k EventKind) String() string {
	switch k {
	case FrameReady:
		return "frame"
	case RecognitionReady:
		return "recognition"
	case StatusChanged:
		return "status"
	default:
		return "unknown"
	}
}

// Status describes the pipeline's relation to its target.
type Status string

const (
	StatusAttached  Status = "attached"
	StatusLost      Status = "lost"
	StatusRecovered Status = "recovered"
	StatusStopped   Status = "stopped"
)

// Event is a one-way notification from a worker.
type Event struct {
	Kind  EventKind
	RunID uuid.UUID
	At    time.Time

	// FrameReady
	Frame *capture.Frame

	// RecognitionReady. Source is the size of the frame the regions refer to.
	Regions []recognition.Region
	Source  image.Point

	// StatusChanged
	Status Status
	Err    error
}

// Gate is a shared on/off switch. While it is on, recognition ticks do
// nothing and in-flight results are discarded.
type Gate struct {
	on atomic.Bool
}

func (g *Gate) Set(on bool) { g.on.Store(on) }

func (g *Gate) Active() bool { return g != nil && g.on.Load() }
