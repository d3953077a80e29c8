package tags

import "time"

// Command is one typed directive parsed from a line's tags.
type Command interface {
	command()
}

// ResetCommand returns the meter to idle drift.
type ResetCommand struct{}

// TypingSpeedCommand sets the per-glyph reveal delay.
type TypingSpeedCommand struct {
	Delay time.Duration
}

// DirectedCommand points the meter at a target. Speed is already defaulted.
type DirectedCommand struct {
	Target float64
	Speed  float64
}

func (ResetCommand) command()       {}
func (TypingSpeedCommand) command() {}
func (DirectedCommand) command()    {}

// Batch is the parse result of one tag list. Immediate commands apply in the
// order they were written; Directed is committed once, after them.
type Batch struct {
	Immediate []Command
	Directed  *DirectedCommand
}

// Empty reports whether the batch carries no effect.
func (b Batch) Empty() bool {
	return len(b.Immediate) == 0 && b.Directed == nil
}
