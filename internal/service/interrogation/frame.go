package interrogation

import (
	"github.com/zhouzirui/z-interrogation/backend/internal/service/dialogue"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/meter"
)

// Frame is one rendered view of a scene.
type Frame struct {
	SessionID string        `json:"sessionId,omitempty"`
	Seq       uint64        `json:"seq"`
	ClockMs   int64         `json:"clockMs"`
	Dialogue  dialogue.View `json:"dialogue"`
	Meter     *MeterFrame   `json:"meter,omitempty"`
}

// MeterFrame carries the detector bar. Value is normalised to [0, 1].
type MeterFrame struct {
	Value  float64    `json:"value"`
	Target float64    `json:"target"`
	Mode   meter.Mode `json:"mode"`
}

// Finished reports whether the dialogue has ended.
func (f Frame) Finished() bool {
	return f.Dialogue.State == dialogue.StateFinished
}
