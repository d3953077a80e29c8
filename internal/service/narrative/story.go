package narrative

import (
	"fmt"
	"log"

	"github.com/zhouzirui/z-interrogation/backend/internal/model/scene"
)

// Story is a cursor over a Script. It is not safe for concurrent use.
type Story struct {
	script *Script
	knot   *Knot
	pos    int
	ended  bool
	taken  map[string]map[int]bool
	visits map[string]int
}

// NewStory starts a fresh walk at the script's start knot.
func NewStory(script *Script) *Story {
	s := &Story{
		script: script,
		taken:  make(map[string]map[int]bool),
		visits: make(map[string]int),
	}
	s.enter(script.Start)
	s.settle()
	return s
}

// HasMore reports whether Advance would produce a line.
func (s *Story) HasMore() bool {
	return !s.ended && s.pos < len(s.knot.Lines)
}

// Advance returns the next line and moves past it.
func (s *Story) Advance() (scene.Line, error) {
	if !s.HasMore() {
		return scene.Line{}, ErrNoContent
	}
	l := s.knot.Lines[s.pos]
	s.pos++
	s.settle()
	return scene.Line{
		Speaker: l.Speaker,
		Content: l.Text,
		Tags:    append([]string(nil), l.Tags...),
	}, nil
}

// PendingChoices lists the options on offer once the current knot's lines
// are exhausted. Indices are positions in the returned slice.
func (s *Story) PendingChoices() []scene.Choice {
	if s.ended || s.HasMore() {
		return nil
	}
	open := s.openChoices()
	out := make([]scene.Choice, 0, len(open))
	for i, idx := range open {
		out = append(out, scene.Choice{Index: i, Text: s.knot.Choices[idx].Text})
	}
	return out
}

// ChooseIndex follows the i-th pending choice.
func (s *Story) ChooseIndex(i int) error {
	if s.HasMore() {
		return fmt.Errorf("%w: lines still pending", ErrChoiceRange)
	}
	open := s.openChoices()
	if i < 0 || i >= len(open) {
		return fmt.Errorf("%w: %d (have %d)", ErrChoiceRange, i, len(open))
	}
	idx := open[i]
	choice := s.knot.Choices[idx]
	if !choice.Sticky {
		if s.taken[s.knot.Name] == nil {
			s.taken[s.knot.Name] = make(map[int]bool)
		}
		s.taken[s.knot.Name][idx] = true
	}
	s.jump(choice.Goto)
	return nil
}

// Ended reports whether the story reached END.
func (s *Story) Ended() bool {
	return s.ended
}

// Visits returns how many times knot has been entered.
func (s *Story) Visits(knot string) int {
	return s.visits[knot]
}

// Knot names the knot the cursor is in.
func (s *Story) Knot() string {
	return s.knot.Name
}

func (s *Story) openChoices() []int {
	var open []int
	for i := range s.knot.Choices {
		if !s.taken[s.knot.Name][i] {
			open = append(open, i)
		}
	}
	return open
}

func (s *Story) enter(name string) {
	s.knot = s.script.Knots[name]
	s.pos = 0
	s.visits[name]++
}

func (s *Story) jump(target string) {
	if target == End {
		s.ended = true
		return
	}
	s.enter(target)
	s.settle()
}

// settle follows diverts from exhausted knots that offer no choices.
func (s *Story) settle() {
	for hops := 0; !s.ended && s.pos >= len(s.knot.Lines); hops++ {
		if len(s.openChoices()) > 0 {
			return
		}
		if s.knot.Divert == "" || s.knot.Divert == End {
			s.ended = true
			return
		}
		if hops > len(s.script.Knots) {
			log.Printf("[narrative] %s: divert loop at %s, ending", s.script.ID, s.knot.Name)
			s.ended = true
			return
		}
		s.enter(s.knot.Divert)
	}
}
