// Package tags turns narrative line tags into meter and typewriter commands.
package tags

import (
	"log"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Recognised directive keys.
const (
	keyFill   = "fill"
	keySpeed  = "speed"
	keyReset  = "reset"
	keyTSpeed = "tspeed"
)

// Meter is the part of the meter simulator directives drive.
type Meter interface {
	SetDirectedTarget(target, speed float64)
	ReleaseToIdle()
}

// SpeedSetter is a text box whose reveal pace can change.
type SpeedSetter interface {
	SetSpeed(delay time.Duration) bool
}

// Interpreter parses and applies directives. It is used from a single scene
// loop and is not safe for concurrent use.
type Interpreter struct {
	meter        Meter
	fallback     SpeedSetter
	defaultSpeed float64
	fold         cases.Caser
}

// NewInterpreter wires the interpreter to its collaborators. Either may be nil;
// directives aimed at a missing collaborator become logged no-ops.
func NewInterpreter(meter Meter, fallback SpeedSetter, defaultSpeed float64) *Interpreter {
	if !(defaultSpeed > 0) || math.IsInf(defaultSpeed, 0) {
		defaultSpeed = 5
	}
	if isNil(meter) {
		meter = nil
	}
	return &Interpreter{
		meter:        meter,
		fallback:     fallback,
		defaultSpeed: defaultSpeed,
		fold:         cases.Fold(),
	}
}

// Parse reads every tag once and returns the resulting commands. Malformed
// values drop only the directive they belong to.
func (in *Interpreter) Parse(tags []string) Batch {
	var batch Batch
	target, speed := math.NaN(), math.NaN()

	for _, raw := range tags {
		key, value, hasValue := strings.Cut(in.fold.String(strings.TrimSpace(raw)), ":")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case keyFill:
			if v, ok := parseNumber(key, value, hasValue); ok {
				target = clamp(v, 0, 100)
			}
		case keySpeed:
			if v, ok := parseNumber(key, value, hasValue); ok {
				if v > 0 {
					speed = v
				} else {
					log.Printf("[tags] ignoring non-positive speed %q", value)
				}
			}
		case keyReset:
			batch.Immediate = append(batch.Immediate, ResetCommand{})
		case keyTSpeed:
			if v, ok := parseNumber(key, value, hasValue); ok {
				if v > 0 {
					batch.Immediate = append(batch.Immediate, TypingSpeedCommand{Delay: secondsToDuration(v)})
				} else {
					log.Printf("[tags] ignoring non-positive tspeed %q", value)
				}
			}
		default:
			// Unknown directives are left for other consumers.
		}
	}

	if !math.IsNaN(target) {
		if math.IsNaN(speed) {
			speed = in.defaultSpeed
		}
		batch.Directed = &DirectedCommand{Target: target, Speed: speed}
	}
	return batch
}

// Interpret parses tags and applies them. reset and tspeed take effect in
// order; a fill target is committed last together with its speed. tspeed goes
// to active when given, otherwise to the fallback box.
func (in *Interpreter) Interpret(tags []string, active SpeedSetter) Batch {
	if len(tags) == 0 {
		return Batch{}
	}
	batch := in.Parse(tags)

	for _, cmd := range batch.Immediate {
		switch c := cmd.(type) {
		case ResetCommand:
			if in.meter == nil {
				log.Printf("[tags] reset ignored: no meter wired")
				continue
			}
			in.meter.ReleaseToIdle()
		case TypingSpeedCommand:
			writer := active
			if isNil(writer) {
				writer = in.fallback
			}
			if isNil(writer) {
				log.Printf("[tags] tspeed ignored: no text box wired")
				continue
			}
			writer.SetSpeed(c.Delay)
		}
	}

	if batch.Directed != nil {
		if in.meter == nil {
			log.Printf("[tags] fill ignored: no meter wired")
		} else {
			in.meter.SetDirectedTarget(batch.Directed.Target, batch.Directed.Speed)
		}
	}
	return batch
}

func parseNumber(key, value string, hasValue bool) (float64, bool) {
	if !hasValue || value == "" {
		log.Printf("[tags] %s: missing value", key)
		return 0, false
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		log.Printf("[tags] %s: malformed value %q", key, value)
		return 0, false
	}
	return v, true
}

func secondsToDuration(sec float64) time.Duration {
	d := time.Duration(math.Round(sec * float64(time.Second)))
	if d <= 0 {
		d = time.Nanosecond
	}
	return d
}

// isNil also catches typed nil pointers stored in an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
