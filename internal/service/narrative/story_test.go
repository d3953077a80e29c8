package narrative_test

import (
	"errors"
	"reflect"
	"testing"
	"testing/fstest"

	"github.com/zhouzirui/z-interrogation/backend/internal/service/narrative"
)

const sample = `{
  "id": "sample",
  "start": "a",
  "knots": {
    "a": {
      "lines": ["甲: 你好 #fill:40 # speed:2 ", {"speaker": "我", "text": "嗯", "tags": ["tspeed:0.1"]}],
      "choices": [
        {"text": "继续", "goto": "b"},
        {"text": "再来", "goto": "a", "sticky": true},
        {"text": "离开", "goto": "END"}
      ]
    },
    "b": {"lines": ["甲: 结束了"], "goto": "c"},
    "c": {"goto": "END"}
  }
}`

func compile(t *testing.T, doc string) *narrative.Script {
	t.Helper()
	script, err := narrative.Compile([]byte(doc))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return script
}

func TestStoryWalksLinesAndTags(t *testing.T) {
	story := narrative.NewStory(compile(t, sample))

	line, err := story.Advance()
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if line.Content != "甲: 你好" || !reflect.DeepEqual(line.Tags, []string{"fill:40", "speed:2"}) {
		t.Fatalf("unexpected first line: %+v", line)
	}
	if story.PendingChoices() != nil {
		t.Fatal("choices must wait until lines are exhausted")
	}

	line, _ = story.Advance()
	if line.Speaker != "我" || line.Content != "嗯" || len(line.Tags) != 1 {
		t.Fatalf("unexpected second line: %+v", line)
	}
	if story.HasMore() {
		t.Fatal("expected knot exhausted")
	}
	if _, err := story.Advance(); !errors.Is(err, narrative.ErrNoContent) {
		t.Fatalf("expected no content, got %v", err)
	}

	choices := story.PendingChoices()
	if len(choices) != 3 || choices[0].Text != "继续" || choices[2].Index != 2 {
		t.Fatalf("unexpected choices: %+v", choices)
	}
}

func TestOnceChoicesDisappear(t *testing.T) {
	story := narrative.NewStory(compile(t, sample))
	story.Advance()
	story.Advance()

	if err := story.ChooseIndex(1); err != nil {
		t.Fatalf("choose sticky: %v", err)
	}
	if story.Visits("a") != 2 {
		t.Fatalf("expected a visited twice, got %d", story.Visits("a"))
	}
	story.Advance()
	story.Advance()
	if n := len(story.PendingChoices()); n != 3 {
		t.Fatalf("sticky choice should remain, got %d choices", n)
	}

	if err := story.ChooseIndex(0); err != nil {
		t.Fatalf("choose: %v", err)
	}
	line, _ := story.Advance()
	if line.Content != "甲: 结束了" {
		t.Fatalf("unexpected branch line %q", line.Content)
	}
	if !story.Ended() || story.HasMore() || story.PendingChoices() != nil {
		t.Fatal("expected divert chain to reach END")
	}
}

func TestChooseIndexErrors(t *testing.T) {
	story := narrative.NewStory(compile(t, sample))
	if err := story.ChooseIndex(0); !errors.Is(err, narrative.ErrChoiceRange) {
		t.Fatalf("choosing with lines pending should fail, got %v", err)
	}
	story.Advance()
	story.Advance()
	if err := story.ChooseIndex(3); !errors.Is(err, narrative.ErrChoiceRange) {
		t.Fatalf("expected range error, got %v", err)
	}
	if err := story.ChooseIndex(2); err != nil {
		t.Fatalf("choose END: %v", err)
	}
	if !story.Ended() {
		t.Fatal("expected story to end")
	}
}

func TestCompileRejectsBrokenScripts(t *testing.T) {
	cases := map[string]struct {
		doc  string
		want error
	}{
		"malformed":      {`{"id":`, narrative.ErrInvalidScript},
		"missing id":     {`{"knots":{"a":{}}}`, narrative.ErrInvalidScript},
		"no knots":       {`{"id":"x"}`, narrative.ErrInvalidScript},
		"bad start":      {`{"id":"x","start":"nope","knots":{"a":{}}}`, narrative.ErrUnknownKnot},
		"bad divert":     {`{"id":"x","start":"a","knots":{"a":{"goto":"b"}}}`, narrative.ErrUnknownKnot},
		"bad choice":     {`{"id":"x","start":"a","knots":{"a":{"choices":[{"text":"t","goto":"z"}]}}}`, narrative.ErrUnknownKnot},
		"choice no goto": {`{"id":"x","start":"a","knots":{"a":{"choices":[{"text":"t"}]}}}`, narrative.ErrInvalidScript},
		"numeric line":   {`{"id":"x","start":"a","knots":{"a":{"lines":[3]}}}`, narrative.ErrInvalidScript},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := narrative.Compile([]byte(tc.doc)); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDivertLoopEnds(t *testing.T) {
	script := compile(t, `{"id":"loop","start":"a","knots":{"a":{"goto":"b"},"b":{"goto":"a"}}}`)
	story := narrative.NewStory(script)
	if !story.Ended() || story.HasMore() {
		t.Fatal("empty divert loop should end the story")
	}
}

func TestBuiltinLibrary(t *testing.T) {
	lib, err := narrative.NewLibrary()
	if err != nil {
		t.Fatalf("load builtin: %v", err)
	}
	if got := lib.IDs(); !reflect.DeepEqual(got, []string{"courier", "night-guard"}) {
		t.Fatalf("unexpected ids: %v", got)
	}
	story, err := lib.Open("night-guard")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !story.HasMore() {
		t.Fatal("builtin script should have an opening line")
	}
	if _, err := lib.Open("missing"); !errors.Is(err, narrative.ErrScriptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLoadFSRejectsDuplicates(t *testing.T) {
	fsys := fstest.MapFS{
		"s/one.json":  {Data: []byte(`{"id":"x","start":"a","knots":{"a":{}}}`)},
		"s/two.json":  {Data: []byte(`{"id":"x","start":"a","knots":{"a":{}}}`)},
		"s/notes.txt": {Data: []byte("ignored")},
	}
	if _, err := narrative.LoadFS(fsys, "s"); !errors.Is(err, narrative.ErrInvalidScript) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}
