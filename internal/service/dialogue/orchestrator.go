// Package dialogue runs the turn-taking between the responder and the player:
// it pulls lines from the narrative source, routes tags and text, presents
// choices and schedules auto-advance.
package dialogue

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zhouzirui/z-interrogation/backend/internal/model/scene"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/scheduler"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/tags"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/typewriter"
)

var (
	ErrAlreadyStarted     = errors.New("dialogue already started")
	ErrNotAwaitingChoice  = errors.New("dialogue is not awaiting a choice")
	ErrInvalidChoiceIndex = errors.New("invalid choice index")
)

// DefaultAutoAdvanceDelay is the pause between a finished line and the next.
const DefaultAutoAdvanceDelay = 500 * time.Millisecond

// Source is the narrative collaborator. The orchestrator is its only caller.
type Source interface {
	HasMore() bool
	Advance() (scene.Line, error)
	PendingChoices() []scene.Choice
	ChooseIndex(i int) error
}

// Interpreter applies a line's tags before its text is revealed.
type Interpreter interface {
	Interpret(tags []string, active tags.SpeedSetter) tags.Batch
}

// Config tunes speaker detection and pacing.
type Config struct {
	PlayerMarker     string
	Separators       []string
	AutoAdvanceDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.PlayerMarker == "" {
		c.PlayerMarker = "我"
	}
	if len(c.Separators) == 0 {
		c.Separators = []string{":", "："}
	}
	if c.AutoAdvanceDelay <= 0 {
		c.AutoAdvanceDelay = DefaultAutoAdvanceDelay
	}
	return c
}

// Turn describes a line as it starts revealing.
type Turn struct {
	Speaker Speaker  `json:"speaker"`
	Name    string   `json:"name,omitempty"`
	Text    string   `json:"text"`
	Tags    []string `json:"tags,omitempty"`
}

// View is what the presentation layer needs to draw the scene.
type View struct {
	State            State               `json:"state"`
	Turn             Speaker             `json:"turn"`
	ResponderName    string              `json:"responderName,omitempty"`
	ResponderVisible bool                `json:"responderVisible"`
	PlayerVisible    bool                `json:"playerVisible"`
	ChoicesVisible   bool                `json:"choicesVisible"`
	Choices          []scene.Choice      `json:"choices,omitempty"`
	Responder        typewriter.Snapshot `json:"responder"`
	Player           typewriter.Snapshot `json:"player"`
}

// Orchestrator owns the turn sequence of one scene. All methods must be
// called from the scene loop.
type Orchestrator struct {
	src       Source
	interp    Interpreter
	sched     *scheduler.Scheduler
	responder *typewriter.Revealer
	player    *typewriter.Revealer
	cfg       Config

	state     State
	turn      Speaker
	current   *typewriter.Revealer
	pending   *scheduler.Timer
	pendingFn func()
	choices   []scene.Choice

	responderVisible bool
	playerVisible    bool
	responderName    string

	onLine func(Turn)
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithLineHook registers fn to observe every line as it starts.
func WithLineHook(fn func(Turn)) Option {
	return func(o *Orchestrator) { o.onLine = fn }
}

// New wires an orchestrator. responder and player are the two text boxes.
func New(src Source, interp Interpreter, sched *scheduler.Scheduler, responder, player *typewriter.Revealer, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		src:       src,
		interp:    interp,
		sched:     sched,
		responder: responder,
		player:    player,
		cfg:       cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start shows the opening layout and pulls the first line.
func (o *Orchestrator) Start() error {
	if o.state != StateIdle {
		return ErrAlreadyStarted
	}
	o.responderVisible = true
	o.playerVisible = false
	o.advance()
	return nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.state
}

// Choices returns the choices on offer, if any.
func (o *Orchestrator) Choices() []scene.Choice {
	return append([]scene.Choice(nil), o.choices...)
}

// SelectChoice forwards the player's pick to the source and continues. An
// out-of-range index leaves the scene waiting on the same choices.
func (o *Orchestrator) SelectChoice(index int) error {
	if o.state != StateAwaitingChoice {
		return fmt.Errorf("%w (state %s)", ErrNotAwaitingChoice, o.state)
	}
	if index < 0 || index >= len(o.choices) {
		return fmt.Errorf("%w: %d (have %d)", ErrInvalidChoiceIndex, index, len(o.choices))
	}
	if err := o.src.ChooseIndex(index); err != nil {
		return fmt.Errorf("choose %d: %w", index, err)
	}
	o.choices = nil
	o.advance()
	return nil
}

// Skip hurries the scene along: a revealing line completes at once, a pending
// auto-advance fires now. It reports whether anything happened.
func (o *Orchestrator) Skip() bool {
	switch o.state {
	case StateRevealing:
		if o.current == nil {
			return false
		}
		o.current.CompleteImmediately(o.current.Text())
		return true
	case StateAwaitingAdvance:
		fn := o.pendingFn
		if fn == nil || !o.pending.Cancel() {
			return false
		}
		o.pending, o.pendingFn = nil, nil
		fn()
		return true
	default:
		return false
	}
}

// Close cancels pending work and stops both boxes.
func (o *Orchestrator) Close() {
	o.cancelPending()
	o.responder.Stop()
	o.player.Stop()
	o.current = nil
}

// View captures the presentation state.
func (o *Orchestrator) View() View {
	return View{
		State:            o.state,
		Turn:             o.turn,
		ResponderName:    o.responderName,
		ResponderVisible: o.responderVisible,
		PlayerVisible:    o.playerVisible,
		ChoicesVisible:   o.state == StateAwaitingChoice,
		Choices:          o.Choices(),
		Responder:        o.responder.Snapshot(),
		Player:           o.player.Snapshot(),
	}
}

func (o *Orchestrator) advance() {
	o.cancelPending()
	if o.src.HasMore() {
		line, err := o.src.Advance()
		if err != nil {
			log.Printf("[dialogue] source advance failed: %v", err)
			o.finish()
			return
		}
		o.present(line)
		return
	}
	if choices := o.src.PendingChoices(); len(choices) > 0 {
		o.presentChoices(choices)
		return
	}
	o.finish()
}

func (o *Orchestrator) present(line scene.Line) {
	speaker, name, body := o.parseSpeaker(line)
	box, other := o.responder, o.player
	if speaker == Player {
		box, other = o.player, o.responder
	}
	other.Stop()

	o.interp.Interpret(line.Tags, box)

	if speaker == Player {
		o.playerVisible = true
	} else {
		o.responderVisible = true
		if name != "" {
			o.responderName = name
		}
	}

	o.state = StateRevealing
	o.turn = speaker
	o.current = box
	if o.onLine != nil {
		o.onLine(Turn{Speaker: speaker, Name: name, Text: body, Tags: line.Tags})
	}
	box.Reveal(body, func() { o.revealDone(box) })
}

func (o *Orchestrator) revealDone(box *typewriter.Revealer) {
	if o.state != StateRevealing || o.current != box {
		return
	}
	o.current = nil

	// Player lines never carry choices: clear the box and move on.
	if o.turn == Player {
		o.schedule(o.clearPlayerAndContinue)
		return
	}
	if choices := o.src.PendingChoices(); len(choices) > 0 {
		o.presentChoices(choices)
		return
	}
	if o.src.HasMore() {
		o.schedule(o.advance)
		return
	}
	o.finish()
}

func (o *Orchestrator) clearPlayerAndContinue() {
	o.player.Clear()
	o.playerVisible = false
	o.advance()
}

func (o *Orchestrator) presentChoices(choices []scene.Choice) {
	o.cancelPending()
	o.state = StateAwaitingChoice
	o.choices = append([]scene.Choice(nil), choices...)
}

func (o *Orchestrator) finish() {
	o.cancelPending()
	o.state = StateFinished
	o.choices = nil
	o.current = nil
}

func (o *Orchestrator) schedule(fn func()) {
	o.cancelPending()
	o.state = StateAwaitingAdvance
	o.pendingFn = fn
	o.pending = o.sched.After(o.cfg.AutoAdvanceDelay, func() {
		o.pending, o.pendingFn = nil, nil
		fn()
	})
}

func (o *Orchestrator) cancelPending() {
	if o.pending != nil {
		o.pending.Cancel()
	}
	o.pending, o.pendingFn = nil, nil
}

// parseSpeaker resolves the speaker from the explicit label or a leading
// "name: " prefix, returning the text with the prefix removed.
func (o *Orchestrator) parseSpeaker(line scene.Line) (Speaker, string, string) {
	body := strings.TrimSpace(line.Content)
	name := strings.TrimSpace(line.Speaker)
	if name == "" {
		if n, rest, ok := o.splitPrefix(body); ok {
			name, body = n, rest
		}
	}
	if name != "" && name == o.cfg.PlayerMarker {
		return Player, name, body
	}
	return Responder, name, body
}

func (o *Orchestrator) splitPrefix(content string) (string, string, bool) {
	cut, width := -1, 0
	for _, sep := range o.cfg.Separators {
		if sep == "" {
			continue
		}
		if i := strings.Index(content, sep); i >= 0 && (cut < 0 || i < cut) {
			cut, width = i, len(sep)
		}
	}
	if cut < 0 {
		return "", content, false
	}
	name := strings.TrimSpace(content[:cut])
	if name == "" {
		return "", content, false
	}
	return name, strings.TrimSpace(content[cut+width:]), true
}
