package dialogue_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/zhouzirui/z-interrogation/backend/internal/model/scene"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/dialogue"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/meter"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/scheduler"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/tags"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/typewriter"
)

const (
	step  = 10 * time.Millisecond
	delay = 100 * time.Millisecond
)

type fakeSource struct {
	lines    []scene.Line
	choices  []scene.Choice
	branches [][]scene.Line
	chosen   []int
	advances int
	err      error
}

func (f *fakeSource) HasMore() bool { return len(f.lines) > 0 }

func (f *fakeSource) Advance() (scene.Line, error) {
	if f.err != nil {
		return scene.Line{}, f.err
	}
	f.advances++
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, nil
}

func (f *fakeSource) PendingChoices() []scene.Choice {
	if len(f.lines) > 0 {
		return nil
	}
	return f.choices
}

func (f *fakeSource) ChooseIndex(i int) error {
	f.chosen = append(f.chosen, i)
	if i < len(f.branches) {
		f.lines = append(f.lines, f.branches[i]...)
	}
	f.choices = nil
	return nil
}

type harness struct {
	sched     *scheduler.Scheduler
	meter     *meter.Simulator
	responder *typewriter.Revealer
	player    *typewriter.Revealer
	orch      *dialogue.Orchestrator
	turns     []dialogue.Turn
}

func newHarness(src dialogue.Source) *harness {
	h := &harness{sched: scheduler.New()}
	h.meter = meter.New(meter.Config{
		Anchor:        10,
		MinAmplitude:  0.5,
		MaxAmplitude:  8,
		MinNoiseSpeed: 0.5,
		MaxNoiseSpeed: 4,
	}, meter.WithRand(rand.New(rand.NewSource(1))), meter.WithNoise(func(float64, float64) float64 { return 0 }))
	h.responder = typewriter.New("responder", h.sched, step)
	h.player = typewriter.New("player", h.sched, step)
	interp := tags.NewInterpreter(h.meter, h.responder, meter.DefaultDirectedSpeed)
	h.orch = dialogue.New(src, interp, h.sched, h.responder, h.player,
		dialogue.Config{AutoAdvanceDelay: delay},
		dialogue.WithLineHook(func(t dialogue.Turn) { h.turns = append(h.turns, t) }))
	return h
}

func line(content string, tags ...string) scene.Line {
	return scene.Line{Content: content, Tags: tags}
}

func TestPlayerLineRoutesToPlayerPanel(t *testing.T) {
	h := newHarness(&fakeSource{lines: []scene.Line{line("我: 你好")}})
	if err := h.orch.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	view := h.orch.View()
	if view.Turn != dialogue.Player || !view.PlayerVisible {
		t.Fatalf("expected player turn with visible panel, got %+v", view)
	}
	if view.Player.Text != "你好" {
		t.Fatalf("expected marker stripped, got %q", view.Player.Text)
	}
	if view.Responder.Text != "" {
		t.Fatalf("responder box should stay empty, got %q", view.Responder.Text)
	}

	h.sched.Advance(2 * step)
	if got := h.player.VisibleText(); got != "你好" {
		t.Fatalf("expected full player text, got %q", got)
	}
	if h.orch.State() != dialogue.StateAwaitingAdvance {
		t.Fatalf("expected awaiting advance, got %s", h.orch.State())
	}

	h.sched.Advance(delay)
	view = h.orch.View()
	if view.State != dialogue.StateFinished {
		t.Fatalf("expected finished, got %s", view.State)
	}
	if view.PlayerVisible || view.Player.Text != "" {
		t.Fatalf("player panel should be cleared and hidden, got %+v", view)
	}
}

func TestTagsDriveMeterBeforeReveal(t *testing.T) {
	src := &fakeSource{lines: []scene.Line{
		line("嫌疑人: 别问了", "fill:90", "speed:3"),
		line("嫌疑人: 好吧", "reset"),
	}}
	h := newHarness(src)
	if err := h.orch.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	st := h.meter.State()
	if st.Mode != meter.Directed || st.Target != 90 || st.Speed != 3 {
		t.Fatalf("expected directed(90, 3), got %+v", st)
	}
	view := h.orch.View()
	if view.ResponderName != "嫌疑人" || view.Responder.Text != "别问了" {
		t.Fatalf("unexpected responder view: %+v", view)
	}

	h.sched.Advance(3*step + delay)
	if h.meter.Mode() != meter.Idle {
		t.Fatalf("expected reset to release the meter, got %s", h.meter.Mode())
	}
	if got := h.responder.Text(); got != "好吧" {
		t.Fatalf("expected second line, got %q", got)
	}
}

func TestInvalidChoiceKeepsWaiting(t *testing.T) {
	src := &fakeSource{
		lines:    []scene.Line{line("嫌疑人: 你想知道什么？")},
		choices:  []scene.Choice{{Index: 0, Text: "那晚你在哪"}, {Index: 1, Text: "算了"}},
		branches: [][]scene.Line{{line("嫌疑人: 在仓库")}, {line("嫌疑人: 随你")}},
	}
	h := newHarness(src)
	if err := h.orch.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.sched.Advance(20 * step)

	view := h.orch.View()
	if view.State != dialogue.StateAwaitingChoice || !view.ChoicesVisible || len(view.Choices) != 2 {
		t.Fatalf("expected two choices on offer, got %+v", view)
	}

	err := h.orch.SelectChoice(99)
	if !errors.Is(err, dialogue.ErrInvalidChoiceIndex) {
		t.Fatalf("expected invalid index error, got %v", err)
	}
	if h.orch.State() != dialogue.StateAwaitingChoice || len(src.chosen) != 0 {
		t.Fatalf("invalid choice must not change anything")
	}

	if err := h.orch.SelectChoice(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(src.chosen) != 1 || src.chosen[0] != 1 {
		t.Fatalf("expected choice 1 forwarded, got %v", src.chosen)
	}
	if h.orch.State() != dialogue.StateRevealing || h.responder.Text() != "随你" {
		t.Fatalf("expected branch line revealing, got %s %q", h.orch.State(), h.responder.Text())
	}
	if h.orch.View().ChoicesVisible {
		t.Fatal("choices should hide after selection")
	}
}

func TestSelectChoiceOutsideChoiceState(t *testing.T) {
	h := newHarness(&fakeSource{lines: []scene.Line{line("嫌疑人: 嗯")}})
	_ = h.orch.Start()
	if err := h.orch.SelectChoice(0); !errors.Is(err, dialogue.ErrNotAwaitingChoice) {
		t.Fatalf("expected not awaiting choice, got %v", err)
	}
}

func TestAutoAdvanceWaitsForDelay(t *testing.T) {
	src := &fakeSource{lines: []scene.Line{line("甲: 一"), line("甲: 二")}}
	h := newHarness(src)
	_ = h.orch.Start()

	h.sched.Advance(step)
	if h.orch.State() != dialogue.StateAwaitingAdvance {
		t.Fatalf("expected awaiting advance, got %s", h.orch.State())
	}
	h.sched.Advance(delay - time.Millisecond)
	if src.advances != 1 {
		t.Fatalf("advanced before the delay elapsed")
	}
	h.sched.Advance(time.Millisecond)
	if src.advances != 2 || h.responder.Text() != "二" {
		t.Fatalf("expected second line after delay, got %d %q", src.advances, h.responder.Text())
	}
}

func TestSkipDoesNotDoubleAdvance(t *testing.T) {
	src := &fakeSource{lines: []scene.Line{line("甲: 第一句话"), line("甲: 二"), line("甲: 三")}}
	h := newHarness(src)
	_ = h.orch.Start()

	if !h.orch.Skip() {
		t.Fatal("skip during reveal should complete the line")
	}
	if got := h.responder.VisibleText(); got != "第一句话" {
		t.Fatalf("expected full line, got %q", got)
	}
	if h.orch.State() != dialogue.StateAwaitingAdvance {
		t.Fatalf("expected awaiting advance, got %s", h.orch.State())
	}

	if !h.orch.Skip() {
		t.Fatal("skip should fire the pending advance")
	}
	if src.advances != 2 {
		t.Fatalf("expected exactly one more advance, got %d", src.advances)
	}

	// The cancelled timer must not advance again when its deadline passes.
	h.sched.Advance(delay)
	if src.advances != 2 {
		t.Fatalf("pending advance fired twice: %d advances", src.advances)
	}
	if h.orch.State() != dialogue.StateAwaitingAdvance {
		t.Fatalf("expected awaiting advance, got %s", h.orch.State())
	}
}

func TestSpeakerDetection(t *testing.T) {
	src := &fakeSource{lines: []scene.Line{
		line("林晚：我送完最后一单就走了"),
		{Speaker: "我", Content: "确定？"},
		line("无人认领的包裹"),
		line(": 空名字"),
	}}
	h := newHarness(src)
	_ = h.orch.Start()
	for i := 0; i < 4; i++ {
		h.orch.Skip()
		h.orch.Skip()
	}

	if len(h.turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(h.turns))
	}
	want := []dialogue.Turn{
		{Speaker: dialogue.Responder, Name: "林晚", Text: "我送完最后一单就走了"},
		{Speaker: dialogue.Player, Name: "我", Text: "确定？"},
		{Speaker: dialogue.Responder, Text: "无人认领的包裹"},
		{Speaker: dialogue.Responder, Text: ": 空名字"},
	}
	for i, w := range want {
		got := h.turns[i]
		if got.Speaker != w.Speaker || got.Name != w.Name || got.Text != w.Text {
			t.Fatalf("turn %d: got %+v want %+v", i, got, w)
		}
	}
	if h.orch.View().ResponderName != "林晚" {
		t.Fatalf("unnamed lines should keep the last responder name")
	}
	if h.orch.State() != dialogue.StateFinished {
		t.Fatalf("expected finished, got %s", h.orch.State())
	}
}

func TestStartEdgeCases(t *testing.T) {
	h := newHarness(&fakeSource{})
	if err := h.orch.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if h.orch.State() != dialogue.StateFinished {
		t.Fatalf("empty source should finish, got %s", h.orch.State())
	}
	if err := h.orch.Start(); !errors.Is(err, dialogue.ErrAlreadyStarted) {
		t.Fatalf("expected already started, got %v", err)
	}

	h = newHarness(&fakeSource{choices: []scene.Choice{{Index: 0, Text: "开始"}}})
	_ = h.orch.Start()
	if h.orch.State() != dialogue.StateAwaitingChoice {
		t.Fatalf("choices-only source should wait for a choice, got %s", h.orch.State())
	}
	view := h.orch.View()
	if !view.ResponderVisible || view.PlayerVisible {
		t.Fatalf("unexpected opening layout: %+v", view)
	}
}

func TestSourceErrorFinishesScene(t *testing.T) {
	h := newHarness(&fakeSource{lines: []scene.Line{line("甲: 一")}, err: errors.New("broken script")})
	_ = h.orch.Start()
	if h.orch.State() != dialogue.StateFinished {
		t.Fatalf("expected finished, got %s", h.orch.State())
	}
}

func TestEmptyLineCompletesAtOnce(t *testing.T) {
	src := &fakeSource{lines: []scene.Line{line("甲:"), line("甲: 二")}}
	h := newHarness(src)
	_ = h.orch.Start()
	if h.orch.State() != dialogue.StateAwaitingAdvance {
		t.Fatalf("empty line should complete immediately, got %s", h.orch.State())
	}
	h.sched.Advance(delay)
	if h.responder.Text() != "二" {
		t.Fatalf("expected next line, got %q", h.responder.Text())
	}
}
