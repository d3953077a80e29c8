// Package meter simulates the anomaly detector bar: a baseline that chases a
// target, idle drift when nothing directs it, and perpetual noise on top.
package meter

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/aquilax/go-perlin"
)

// DefaultDirectedSpeed is the approach speed used when a directed target comes
// without a usable speed.
const DefaultDirectedSpeed = 5.0

// Idle drift parameters.
const (
	driftRange    = 10.0
	minDriftSpeed = 0.5
	maxDriftSpeed = 2.0
	minDriftHold  = 3.0
	maxDriftHold  = 6.0
)

// Mode says who picks the meter's target.
type Mode int

const (
	// Idle re-rolls the target around the anchor every few seconds.
	Idle Mode = iota
	// Directed holds a target set by the narrative until released.
	Directed
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Directed:
		return "directed"
	default:
		return "unknown"
	}
}

// MarshalText renders the mode for JSON frames.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a mode name.
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*m = Idle
	case "directed":
		*m = Directed
	default:
		return fmt.Errorf("unknown meter mode %q", b)
	}
	return nil
}

// Config is the per-scene tuning of one meter.
type Config struct {
	Anchor        float64 // idle baseline, 0-100
	MinAmplitude  float64 // jitter at baseline 0
	MaxAmplitude  float64 // jitter at baseline 100
	MinNoiseSpeed float64
	MaxNoiseSpeed float64
}

// State is a read-only copy of the meter internals.
type State struct {
	Display   float64 `json:"display"`
	Baseline  float64 `json:"baseline"`
	Target    float64 `json:"target"`
	Speed     float64 `json:"speed"`
	Mode      Mode    `json:"mode"`
	IdleTimer float64 `json:"idleTimer"`
	NoiseSeed float64 `json:"-"`
}

// NoiseFunc is a smooth 2D noise source returning values in [-1, 1].
type NoiseFunc func(x, y float64) float64

// Option customises a Simulator.
type Option func(*Simulator)

// WithRand sets the random source used for the noise seed and idle drift.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulator) { s.rng = r }
}

// WithNoise replaces the Perlin noise source.
func WithNoise(fn NoiseFunc) Option {
	return func(s *Simulator) { s.noise = fn }
}

// WithNoiseSeed fixes the second noise coordinate instead of rolling one.
func WithNoiseSeed(seed float64) Option {
	return func(s *Simulator) {
		s.noiseSeed = seed
		s.seeded = true
	}
}

// Simulator owns the meter state. It is driven by Tick from a single loop.
type Simulator struct {
	cfg       Config
	display   float64
	baseline  float64
	target    float64
	speed     float64
	mode      Mode
	idleTimer float64
	clock     float64
	noiseSeed float64
	seeded    bool
	rng       *rand.Rand
	noise     NoiseFunc
}

// New creates an idle meter resting at the configured anchor.
func New(cfg Config, opts ...Option) *Simulator {
	s := &Simulator{cfg: cfg, speed: 1, mode: Idle}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if !s.seeded {
		s.noiseSeed = s.rng.Float64() * 1000
	}
	if s.noise == nil {
		s.noise = perlinNoise(perlin.NewPerlin(2, 2, 1, s.rng.Int63()))
	}

	anchor := clamp(cfg.Anchor, 0, 100)
	s.baseline = anchor
	s.target = anchor
	s.display = anchor
	return s
}

// perlinNoise rescales single-octave Perlin output (about ±√2/2) to [-1, 1].
func perlinNoise(p *perlin.Perlin) NoiseFunc {
	return func(x, y float64) float64 {
		return clamp(p.Noise2D(x, y)*math.Sqrt2, -1, 1)
	}
}

// Tick advances the meter by dt.
func (s *Simulator) Tick(dt time.Duration) {
	secs := dt.Seconds()
	if secs < 0 || math.IsNaN(secs) {
		secs = 0
	}
	s.clock += secs

	if s.mode == Idle {
		s.idleTimer -= secs
		if s.idleTimer <= 0 {
			s.resample()
		}
	}

	// Exponential approach; a factor above 1 would overshoot the target.
	f := clamp(secs*s.speed, 0, 1)
	s.baseline = clamp(s.baseline+(s.target-s.baseline)*f, 0, 100)
	s.display = s.fluctuate()
}

// SetDirectedTarget hands the meter to the narrative until ReleaseToIdle.
func (s *Simulator) SetDirectedTarget(target, speed float64) {
	if math.IsNaN(target) {
		log.Printf("[meter] ignoring NaN target")
		return
	}
	if !(speed > 0) || math.IsInf(speed, 0) {
		speed = DefaultDirectedSpeed
	}
	s.mode = Directed
	s.target = clamp(target, 0, 100)
	s.speed = speed
}

// ReleaseToIdle returns control to idle drift and forces a re-roll on the
// next tick.
func (s *Simulator) ReleaseToIdle() {
	s.mode = Idle
	s.idleTimer = 0
}

// DisplayValue is the jittered value shown to the player, 0-100.
func (s *Simulator) DisplayValue() float64 {
	return s.display
}

// Normalized is the renderer input: DisplayValue scaled to 0-1.
func (s *Simulator) Normalized() float64 {
	return s.display / 100
}

// Mode reports who currently controls the target.
func (s *Simulator) Mode() Mode {
	return s.mode
}

// State returns a copy of the meter internals.
func (s *Simulator) State() State {
	return State{
		Display:   s.display,
		Baseline:  s.baseline,
		Target:    s.target,
		Speed:     s.speed,
		Mode:      s.mode,
		IdleTimer: s.idleTimer,
		NoiseSeed: s.noiseSeed,
	}
}

func (s *Simulator) resample() {
	s.target = clamp(clamp(s.cfg.Anchor, 0, 100)+s.uniform(-driftRange, driftRange), 0, 100)
	s.speed = s.uniform(minDriftSpeed, maxDriftSpeed)
	s.idleTimer = s.uniform(minDriftHold, maxDriftHold)
}

func (s *Simulator) fluctuate() float64 {
	ratio := s.baseline / 100
	amplitude := lerp(s.cfg.MinAmplitude, s.cfg.MaxAmplitude, ratio)
	noiseSpeed := lerp(s.cfg.MinNoiseSpeed, s.cfg.MaxNoiseSpeed, ratio)

	n := s.noise(s.clock*noiseSpeed, s.noiseSeed)
	if math.IsNaN(n) {
		n = 0
	}
	n = clamp(n, -1, 1)
	return clamp(s.baseline+n*amplitude, 0, 100)
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*clamp(t, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
