// Package typewriter reveals text boxes glyph by glyph on a scene scheduler.
package typewriter

import (
	"log"
	"time"

	"github.com/zhouzirui/z-interrogation/backend/internal/service/scheduler"
)

// DefaultDelay is the per-glyph delay when none is configured.
const DefaultDelay = 50 * time.Millisecond

// Snapshot is the observable reveal state of one text box.
type Snapshot struct {
	Text    string        `json:"text"`
	Shown   string        `json:"shown"`
	Visible int           `json:"visible"`
	Total   int           `json:"total"`
	Delay   time.Duration `json:"-"`
	Active  bool          `json:"active"`
}

// Revealer owns the reveal state of a single text box. At most one reveal runs
// on a box at a time; starting another cancels the previous one and its
// callback.
type Revealer struct {
	name    string
	sched   *scheduler.Scheduler
	delay   time.Duration
	text    string
	ends    []int
	visible int
	active  bool
	step    *scheduler.Timer
	pending func()
}

// New creates a revealer bound to sched. A non-positive delay selects DefaultDelay.
func New(name string, sched *scheduler.Scheduler, delay time.Duration) *Revealer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Revealer{name: name, sched: sched, delay: delay}
}

// Name identifies the box in logs.
func (r *Revealer) Name() string {
	return r.name
}

// Reveal clears the box and shows text progressively, calling onComplete once
// every glyph is visible. Empty text completes at once.
func (r *Revealer) Reveal(text string, onComplete func()) {
	r.cancelStep()
	r.pending = onComplete
	r.text = text
	r.ends = glyphEnds(text)
	r.visible = 0

	if len(r.ends) == 0 {
		r.finish()
		return
	}
	r.active = true
	r.schedule()
}

// CompleteImmediately stops stepping, shows fullText entirely and fires the
// pending callback, if any, exactly once.
func (r *Revealer) CompleteImmediately(fullText string) {
	r.cancelStep()
	r.text = fullText
	r.ends = glyphEnds(fullText)
	r.visible = len(r.ends)
	r.finish()
}

// SetSpeed changes the per-glyph delay. The step already waiting keeps its
// deadline; the change applies from the next step on.
func (r *Revealer) SetSpeed(delay time.Duration) bool {
	if delay <= 0 {
		log.Printf("[typewriter] %s: ignoring non-positive delay %v", r.name, delay)
		return false
	}
	r.delay = delay
	return true
}

// Delay returns the current per-glyph delay.
func (r *Revealer) Delay() time.Duration {
	return r.delay
}

// IsRevealing reports whether a reveal is in progress.
func (r *Revealer) IsRevealing() bool {
	return r.active
}

// Stop cancels the running reveal without firing its callback. The text shown
// so far stays.
func (r *Revealer) Stop() {
	r.cancelStep()
	r.pending = nil
}

// Clear stops any reveal and empties the box.
func (r *Revealer) Clear() {
	r.Stop()
	r.text = ""
	r.ends = nil
	r.visible = 0
}

// Text returns the full text of the current or last reveal.
func (r *Revealer) Text() string {
	return r.text
}

// VisibleText returns the revealed prefix. Markup before the last visible
// glyph is kept intact.
func (r *Revealer) VisibleText() string {
	if r.visible <= 0 || len(r.ends) == 0 {
		return ""
	}
	if r.visible >= len(r.ends) {
		return r.text
	}
	return r.text[:r.ends[r.visible-1]]
}

// Snapshot captures the box for rendering.
func (r *Revealer) Snapshot() Snapshot {
	return Snapshot{
		Text:    r.text,
		Shown:   r.VisibleText(),
		Visible: r.visible,
		Total:   len(r.ends),
		Delay:   r.delay,
		Active:  r.active,
	}
}

func (r *Revealer) schedule() {
	r.step = r.sched.After(r.delay, r.advance)
}

func (r *Revealer) advance() {
	r.step = nil
	r.visible++
	if r.visible >= len(r.ends) {
		r.visible = len(r.ends)
		r.finish()
		return
	}
	r.schedule()
}

func (r *Revealer) finish() {
	r.active = false
	cb := r.pending
	r.pending = nil
	if cb != nil {
		cb()
	}
}

func (r *Revealer) cancelStep() {
	if r.step != nil {
		r.step.Cancel()
		r.step = nil
	}
	r.active = false
}
