package streaming

import (
	"sync"

	"github.com/stardrift/server/internal/worldmap"
)

// TrackedPosition is a thread-safe PositionSource fed by client position
// reports. The HTTP and websocket layers write it; the tick loop polls it.
type TrackedPosition struct {
	mu       sync.Mutex
	position worldmap.Point
}

// NewTrackedPosition starts tracking at the given point.
func NewTrackedPosition(start worldmap.Point) *TrackedPosition {
	return &TrackedPosition{position: start}
}

// Position implements PositionSource.
func (t *TrackedPosition) Position() worldmap.Point {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

// MoveTo records a new observer position.
func (t *TrackedPosition) MoveTo(position worldmap.Point) {
	t.mu.Lock()
	t.position = position
	t.mu.Unlock()
}
