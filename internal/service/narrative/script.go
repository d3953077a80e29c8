// Package narrative loads branching interrogation scripts and walks them one
// line at a time.
//
// A script is a JSON document of named knots. Each knot holds lines, an
// optional set of choices and an optional divert taken when its lines run out:
//
//	{
//	  "id": "night-guard",
//	  "start": "intro",
//	  "knots": {
//	    "intro": {
//	      "lines": ["陈默: 我整晚都在岗亭 #fill:30", {"speaker": "我", "text": "监控呢？"}],
//	      "choices": [{"text": "追问监控", "goto": "camera"}],
//	      "goto": "END"
//	    }
//	  }
//	}
//
// String lines may carry trailing "#tag" markers.
package narrative

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// End is the divert target that closes the scene.
const End = "END"

var (
	ErrInvalidScript  = errors.New("invalid script")
	ErrUnknownKnot    = errors.New("unknown knot")
	ErrScriptNotFound = errors.New("script not found")
	ErrNoContent      = errors.New("no content to advance")
	ErrChoiceRange    = errors.New("choice index out of range")
)

// Script is a compiled, immutable script. Stories share it.
type Script struct {
	ID    string
	Title string
	Start string
	Knots map[string]*Knot
}

// Knot is a named block of lines.
type Knot struct {
	Name    string
	Lines   []ScriptLine
	Choices []ScriptChoice
	Divert  string
}

// ScriptLine is one authored line.
type ScriptLine struct {
	Speaker string
	Text    string
	Tags    []string
}

// ScriptChoice is one authored option. Non-sticky choices disappear once
// taken.
type ScriptChoice struct {
	Text   string
	Goto   string
	Sticky bool
}

// Compile parses and validates a script document.
func Compile(data []byte) (*Script, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidScript)
	}
	doc := gjson.ParseBytes(data)

	script := &Script{
		ID:    strings.TrimSpace(doc.Get("id").String()),
		Title: doc.Get("title").String(),
		Start: strings.TrimSpace(doc.Get("start").String()),
		Knots: make(map[string]*Knot),
	}
	if script.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidScript)
	}

	knots := doc.Get("knots")
	if !knots.IsObject() {
		return nil, fmt.Errorf("%w: %s has no knots", ErrInvalidScript, script.ID)
	}
	var firstErr error
	knots.ForEach(func(key, value gjson.Result) bool {
		knot, err := compileKnot(key.String(), value)
		if err != nil {
			firstErr = fmt.Errorf("%s: %w", script.ID, err)
			return false
		}
		script.Knots[knot.Name] = knot
		return true
	})
	if firstErr != nil {
		return nil, firstErr
	}

	if script.Start == "" {
		script.Start = "start"
	}
	if err := script.validate(); err != nil {
		return nil, err
	}
	return script, nil
}

func compileKnot(name string, value gjson.Result) (*Knot, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == End {
		return nil, fmt.Errorf("%w: bad knot name %q", ErrInvalidScript, name)
	}
	knot := &Knot{Name: name, Divert: strings.TrimSpace(value.Get("goto").String())}

	for i, item := range value.Get("lines").Array() {
		switch {
		case item.Type == gjson.String:
			text, tags := splitInlineTags(item.String())
			knot.Lines = append(knot.Lines, ScriptLine{Text: text, Tags: tags})
		case item.IsObject():
			text, tags := splitInlineTags(item.Get("text").String())
			for _, tag := range item.Get("tags").Array() {
				if t := strings.TrimSpace(tag.String()); t != "" {
					tags = append(tags, t)
				}
			}
			knot.Lines = append(knot.Lines, ScriptLine{
				Speaker: strings.TrimSpace(item.Get("speaker").String()),
				Text:    text,
				Tags:    tags,
			})
		default:
			return nil, fmt.Errorf("%w: knot %s line %d", ErrInvalidScript, name, i)
		}
	}

	for i, item := range value.Get("choices").Array() {
		text := strings.TrimSpace(item.Get("text").String())
		target := strings.TrimSpace(item.Get("goto").String())
		if text == "" || target == "" {
			return nil, fmt.Errorf("%w: knot %s choice %d needs text and goto", ErrInvalidScript, name, i)
		}
		knot.Choices = append(knot.Choices, ScriptChoice{
			Text:   text,
			Goto:   target,
			Sticky: item.Get("sticky").Bool(),
		})
	}
	return knot, nil
}

func (s *Script) validate() error {
	if _, ok := s.Knots[s.Start]; !ok {
		return fmt.Errorf("%w: %s start %q", ErrUnknownKnot, s.ID, s.Start)
	}
	for _, knot := range s.Knots {
		if knot.Divert != "" && !s.hasTarget(knot.Divert) {
			return fmt.Errorf("%w: %s.%s diverts to %q", ErrUnknownKnot, s.ID, knot.Name, knot.Divert)
		}
		for _, c := range knot.Choices {
			if !s.hasTarget(c.Goto) {
				return fmt.Errorf("%w: %s.%s choice %q goes to %q", ErrUnknownKnot, s.ID, knot.Name, c.Text, c.Goto)
			}
		}
	}
	return nil
}

func (s *Script) hasTarget(name string) bool {
	if name == End {
		return true
	}
	_, ok := s.Knots[name]
	return ok
}

// splitInlineTags separates "text #a #b" into its text and tags.
func splitInlineTags(raw string) (string, []string) {
	parts := strings.Split(raw, "#")
	text := strings.TrimSpace(parts[0])
	var tags []string
	for _, p := range parts[1:] {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return text, tags
}
