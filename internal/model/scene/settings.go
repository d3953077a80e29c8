package scene

import "time"

// Settings is the per-scene configuration. It is loaded, never computed at runtime.
type Settings struct {
	PlayerMarker     string
	RevealDelay      time.Duration
	AutoAdvanceDelay time.Duration
	DirectiveSpeed   float64

	MinAmplitude  float64
	MaxAmplitude  float64
	MinNoiseSpeed float64
	MaxNoiseSpeed float64
}

// DefaultSettings mirrors the values the scene was tuned with.
func DefaultSettings() Settings {
	return Settings{
		PlayerMarker:     "我",
		RevealDelay:      50 * time.Millisecond,
		AutoAdvanceDelay: 500 * time.Millisecond,
		DirectiveSpeed:   5,
		MinAmplitude:     0.5,
		MaxAmplitude:     8,
		MinNoiseSpeed:    0.5,
		MaxNoiseSpeed:    4,
	}
}
