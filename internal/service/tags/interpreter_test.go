package tags_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/zhouzirui/z-interrogation/backend/internal/service/tags"
)

type fakeMeter struct {
	calls []string
}

func (m *fakeMeter) SetDirectedTarget(target, speed float64) {
	m.calls = append(m.calls, fmt.Sprintf("directed(%g,%g)", target, speed))
}

func (m *fakeMeter) ReleaseToIdle() {
	m.calls = append(m.calls, "idle")
}

type fakeBox struct {
	delays []time.Duration
}

func (b *fakeBox) SetSpeed(d time.Duration) bool {
	b.delays = append(b.delays, d)
	return true
}

func TestFillAndSpeedCommitOnceRegardlessOfOrder(t *testing.T) {
	cases := [][]string{
		{"fill:70", "speed:2"},
		{"speed:2", "fill:70"},
		{" FILL : 70 ", "Speed:2"},
	}
	for _, tagList := range cases {
		m := &fakeMeter{}
		in := tags.NewInterpreter(m, nil, 5)
		in.Interpret(tagList, nil)
		if len(m.calls) != 1 || m.calls[0] != "directed(70,2)" {
			t.Fatalf("%v: got calls %v", tagList, m.calls)
		}
	}
}

func TestFillWithoutSpeedUsesDefault(t *testing.T) {
	m := &fakeMeter{}
	in := tags.NewInterpreter(m, nil, 5)
	in.Interpret([]string{"fill:90"}, nil)
	if len(m.calls) != 1 || m.calls[0] != "directed(90,5)" {
		t.Fatalf("got calls %v", m.calls)
	}
}

func TestFillIsClamped(t *testing.T) {
	m := &fakeMeter{}
	in := tags.NewInterpreter(m, nil, 5)
	in.Interpret([]string{"fill:150"}, nil)
	in.Interpret([]string{"fill:-20"}, nil)
	want := []string{"directed(100,5)", "directed(0,5)"}
	if fmt.Sprint(m.calls) != fmt.Sprint(want) {
		t.Fatalf("got %v, want %v", m.calls, want)
	}
}

func TestResetDoesNotBlockLaterFill(t *testing.T) {
	m := &fakeMeter{}
	in := tags.NewInterpreter(m, nil, 5)
	in.Interpret([]string{"reset", "fill:50"}, nil)
	want := []string{"idle", "directed(50,5)"}
	if fmt.Sprint(m.calls) != fmt.Sprint(want) {
		t.Fatalf("got %v, want %v", m.calls, want)
	}
}

func TestTSpeedPrefersActiveBox(t *testing.T) {
	active, fallback := &fakeBox{}, &fakeBox{}
	in := tags.NewInterpreter(&fakeMeter{}, fallback, 5)

	in.Interpret([]string{"tspeed:0.1"}, active)
	if len(active.delays) != 1 || active.delays[0] != 100*time.Millisecond {
		t.Fatalf("active box delays: %v", active.delays)
	}
	if len(fallback.delays) != 0 {
		t.Fatalf("fallback should be untouched, got %v", fallback.delays)
	}

	in.Interpret([]string{"TSPEED:0.02"}, nil)
	if len(fallback.delays) != 1 || fallback.delays[0] != 20*time.Millisecond {
		t.Fatalf("fallback delays: %v", fallback.delays)
	}
}

func TestMalformedValuesAreIgnoredIndividually(t *testing.T) {
	m := &fakeMeter{}
	box := &fakeBox{}
	in := tags.NewInterpreter(m, box, 5)

	in.Interpret([]string{"fill:abc", "speed:2", "tspeed:fast", "tspeed:0.03"}, nil)
	if len(m.calls) != 0 {
		t.Fatalf("speed alone must not direct the meter, got %v", m.calls)
	}
	if len(box.delays) != 1 || box.delays[0] != 30*time.Millisecond {
		t.Fatalf("expected only the valid tspeed, got %v", box.delays)
	}

	in.Interpret([]string{"fill:40", "speed:NaN", "speed:-1"}, nil)
	if len(m.calls) != 1 || m.calls[0] != "directed(40,5)" {
		t.Fatalf("bad speeds should fall back to default, got %v", m.calls)
	}
}

func TestUnknownAndEmptyTagsAreNoOps(t *testing.T) {
	m := &fakeMeter{}
	in := tags.NewInterpreter(m, nil, 5)
	if b := in.Interpret(nil, nil); !b.Empty() {
		t.Fatalf("nil tags produced %+v", b)
	}
	if b := in.Interpret([]string{"shake", "mood:tense", ""}, nil); !b.Empty() {
		t.Fatalf("unknown tags produced %+v", b)
	}
	if len(m.calls) != 0 {
		t.Fatalf("unexpected meter calls %v", m.calls)
	}
}

func TestMissingCollaboratorsAreNoOps(t *testing.T) {
	in := tags.NewInterpreter(nil, nil, 5)
	batch := in.Interpret([]string{"reset", "fill:80", "tspeed:0.1"}, nil)
	if batch.Directed == nil || batch.Directed.Target != 80 {
		t.Fatalf("parse result should still carry the directive: %+v", batch)
	}
	if len(batch.Immediate) != 2 {
		t.Fatalf("expected reset and tspeed commands, got %d", len(batch.Immediate))
	}
}

func TestParseKeepsImmediateOrder(t *testing.T) {
	in := tags.NewInterpreter(nil, nil, 5)
	batch := in.Parse([]string{"tspeed:0.05", "reset"})
	if len(batch.Immediate) != 2 {
		t.Fatalf("got %d commands", len(batch.Immediate))
	}
	if _, ok := batch.Immediate[0].(tags.TypingSpeedCommand); !ok {
		t.Fatalf("first command is %T", batch.Immediate[0])
	}
	if _, ok := batch.Immediate[1].(tags.ResetCommand); !ok {
		t.Fatalf("second command is %T", batch.Immediate[1])
	}
}
