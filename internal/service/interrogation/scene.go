package interrogation

import (
	"math/rand"
	"time"

	"github.com/zhouzirui/z-interrogation/backend/internal/model/scene"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/dialogue"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/meter"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/scheduler"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/tags"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/typewriter"
)

// SceneOptions configures a Scene.
type SceneOptions struct {
	Settings     scene.Settings
	Anchor       float64
	MeterEnabled bool
	Rand         *rand.Rand
	Noise        meter.NoiseFunc
	OnLine       func(dialogue.Turn)
}

// Scene wires the clock, the two text boxes, the meter and the orchestrator
// for one interrogation. It has no goroutines: callers drive it with Tick.
type Scene struct {
	sched     *scheduler.Scheduler
	meter     *meter.Simulator
	responder *typewriter.Revealer
	player    *typewriter.Revealer
	orch      *dialogue.Orchestrator
	ticks     uint64
}

// NewScene assembles a scene around src. Call Start to pull the first line.
func NewScene(src dialogue.Source, opts SceneOptions) *Scene {
	s := &Scene{sched: scheduler.New()}
	st := opts.Settings

	var m tags.Meter
	if opts.MeterEnabled {
		meterOpts := []meter.Option{}
		if opts.Rand != nil {
			meterOpts = append(meterOpts, meter.WithRand(opts.Rand))
		}
		if opts.Noise != nil {
			meterOpts = append(meterOpts, meter.WithNoise(opts.Noise))
		}
		s.meter = meter.New(meter.Config{
			Anchor:        opts.Anchor,
			MinAmplitude:  st.MinAmplitude,
			MaxAmplitude:  st.MaxAmplitude,
			MinNoiseSpeed: st.MinNoiseSpeed,
			MaxNoiseSpeed: st.MaxNoiseSpeed,
		}, meterOpts...)
		m = s.meter
	}

	s.responder = typewriter.New("responder", s.sched, st.RevealDelay)
	s.player = typewriter.New("player", s.sched, st.RevealDelay)
	interp := tags.NewInterpreter(m, s.responder, st.DirectiveSpeed)

	var dopts []dialogue.Option
	if opts.OnLine != nil {
		dopts = append(dopts, dialogue.WithLineHook(opts.OnLine))
	}
	s.orch = dialogue.New(src, interp, s.sched, s.responder, s.player, dialogue.Config{
		PlayerMarker:     st.PlayerMarker,
		AutoAdvanceDelay: st.AutoAdvanceDelay,
	}, dopts...)
	return s
}

// Start shows the opening layout and the first line.
func (s *Scene) Start() error {
	return s.orch.Start()
}

// Tick advances the scene clock by dt: due timers fire first, then the meter
// steps.
func (s *Scene) Tick(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	s.ticks++
	s.sched.Advance(dt)
	if s.meter != nil {
		s.meter.Tick(dt)
	}
}

// Choose selects a pending choice.
func (s *Scene) Choose(index int) error {
	return s.orch.SelectChoice(index)
}

// Skip completes the current line or fires the pending advance.
func (s *Scene) Skip() bool {
	return s.orch.Skip()
}

// State returns the dialogue state.
func (s *Scene) State() dialogue.State {
	return s.orch.State()
}

// Close cancels pending timers and stops both boxes.
func (s *Scene) Close() {
	s.orch.Close()
}

// Frame renders the scene at the current clock.
func (s *Scene) Frame() Frame {
	f := Frame{
		Seq:      s.ticks,
		ClockMs:  s.sched.Now().Milliseconds(),
		Dialogue: s.orch.View(),
	}
	if s.meter != nil {
		st := s.meter.State()
		f.Meter = &MeterFrame{
			Value:  s.meter.Normalized(),
			Target: st.Target,
			Mode:   st.Mode,
		}
	}
	return f
}
