package repl

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/steveyegge/elab/internal/pipeline"
	"github.com/steveyegge/elab/internal/storage"
)

const storyYAML = `schemaVersion: "1.1"
story:
  id: flow-8
  title: Export weekly report
  description: Managers download the weekly report
  domain: reporting
  acceptance_criteria:
    - id: AC-1
      description: Export the report as CSV
    - id: AC-2
      description: The export should be fast
`

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func writeStory(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write story: %v", err)
	}
	return path
}

func newTestREPL(t *testing.T, withStore bool) (*REPL, *bytes.Buffer) {
	t.Helper()
	var store storage.Storage
	if withStore {
		s, err := storage.NewStorage(context.Background(), &storage.Config{
			Path: filepath.Join(t.TempDir(), "elab.db"),
		})
		if err != nil {
			t.Fatalf("failed to open storage: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		store = s
	}
	runner, err := pipeline.NewRunner(store, nil, nil)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	var out bytes.Buffer
	r, err := New(&Config{Runner: runner, Out: &out})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r, &out
}

func TestNewRequiresRunner(t *testing.T) {
	if _, err := New(&Config{}); err == nil {
		t.Error("expected error without a runner")
	}
}

func TestNewLoadsStoryFile(t *testing.T) {
	path := writeStory(t, t.TempDir(), "story.yaml", storyYAML)
	runner, err := pipeline.NewRunner(nil, nil, nil)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	r, err := New(&Config{Runner: runner, Out: io.Discard, StoryFile: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if r.doc == nil || r.doc.Story.ID != "flow-8" {
		t.Fatalf("story not loaded: %+v", r.doc)
	}
	if got := r.prompt(); got != "elab[flow-8]> " {
		t.Errorf("prompt = %q", got)
	}
}

func TestProcessInput(t *testing.T) {
	r, out := newTestREPL(t, false)

	if err := r.processInput("analyze"); err != errNoStory {
		t.Errorf("analyze without story = %v, want errNoStory", err)
	}
	if err := r.processInput("frobnicate"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("unknown command error = %v", err)
	}
	if err := r.processInput("load"); err == nil {
		t.Error("load without a path should fail")
	}

	path := writeStory(t, t.TempDir(), "story.yaml", storyYAML)
	if err := r.processInput("load " + path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !strings.Contains(out.String(), "✓ Loaded flow-8: Export weekly report (2 acceptance criteria)") {
		t.Errorf("load output = %q", out.String())
	}

	out.Reset()
	if err := r.processInput("ANALYZE"); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if !strings.Contains(out.String(), "Analysis: flow-8") || !strings.Contains(out.String(), "Readiness:") {
		t.Errorf("analyze output = %q", out.String())
	}
	if r.last == nil {
		t.Fatal("analysis was not kept")
	}

	if err := r.processInput("gaps zero"); err == nil {
		t.Error("gaps with a bad count should fail")
	}
	if err := r.processInput("readiness"); err != nil {
		t.Errorf("readiness failed: %v", err)
	}

	if err := r.processInput("exit"); err != io.EOF {
		t.Errorf("exit = %v, want io.EOF", err)
	}
}

func TestStoryFileIsReread(t *testing.T) {
	r, out := newTestREPL(t, false)
	dir := t.TempDir()
	path := writeStory(t, dir, "story.yaml", storyYAML)
	if err := r.processInput("load " + path); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	edited := strings.Replace(storyYAML, "Export weekly report", "Export monthly report", 1)
	writeStory(t, dir, "story.yaml", edited)
	out.Reset()
	if err := r.processInput("show"); err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out.String(), "Export monthly report") {
		t.Errorf("show did not pick up the edit: %q", out.String())
	}

	writeStory(t, dir, "story.yaml", "story: [")
	out.Reset()
	if err := r.processInput("show"); err != nil {
		t.Fatalf("show with a broken file failed: %v", err)
	}
	if !strings.Contains(out.String(), "using last loaded version") || !strings.Contains(out.String(), "Export monthly report") {
		t.Errorf("broken file output = %q", out.String())
	}
}

func TestDiffAgainstFile(t *testing.T) {
	r, out := newTestREPL(t, false)
	dir := t.TempDir()
	prev := writeStory(t, dir, "prev.yaml", storyYAML)
	curr := writeStory(t, dir, "story.yaml",
		strings.Replace(storyYAML, "should be fast", "must finish within 5 seconds", 1))

	if err := r.processInput("load " + curr); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := r.processInput("diff"); err == nil {
		t.Error("diff without a previous version or store should fail")
	}

	out.Reset()
	if err := r.processInput("diff " + prev); err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	for _, want := range []string{"flow-8 v1 → v2", "-The export should be fast", "+The export must finish within 5 seconds"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("diff output missing %q:\n%s", want, out.String())
		}
	}
}

func TestElaborateAndHistory(t *testing.T) {
	r, out := newTestREPL(t, true)
	path := writeStory(t, t.TempDir(), "story.yaml", storyYAML)

	if err := r.processInput("history"); err != errNoStory {
		t.Errorf("history without story = %v, want errNoStory", err)
	}
	if err := r.processInput("load " + path); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	out.Reset()
	if err := r.processInput("elaborate"); err != nil {
		t.Fatalf("elaborate failed: %v", err)
	}
	if !strings.Contains(out.String(), "Elaboration: flow-8") {
		t.Errorf("elaborate output = %q", out.String())
	}

	out.Reset()
	if err := r.processInput("history"); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out.String(), "History: flow-8") || !strings.Contains(out.String(), "v0 → v1") {
		t.Errorf("history output = %q", out.String())
	}

	out.Reset()
	if err := r.processInput("events 5"); err != nil {
		t.Fatalf("events failed: %v", err)
	}
	if lines := strings.Count(out.String(), "\n"); lines != 10 {
		t.Errorf("events printed %d lines, want 10 (two per event):\n%s", lines, out.String())
	}

	out.Reset()
	if err := r.processInput("prune"); err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if !strings.Contains(out.String(), "Deleted 0 event(s)") {
		t.Errorf("prune output = %q", out.String())
	}
}

func TestCompletions(t *testing.T) {
	dir := t.TempDir()
	writeStory(t, dir, "story.yaml", storyYAML)
	writeStory(t, dir, "notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "stories"), 0755); err != nil {
		t.Fatal(err)
	}

	c := newCompleter([]string{"load", "history", "help", "elaborate"})

	got, prefix := c.getCompletions("h")
	if prefix != "h" || len(got) != 2 || got[0] != "help " || got[1] != "history " {
		t.Errorf("command completion = %v (prefix %q)", got, prefix)
	}

	got, prefix = c.getCompletions("load " + dir + string(filepath.Separator))
	want := []string{
		filepath.Join(dir, "stories") + string(filepath.Separator),
		filepath.Join(dir, "story.yaml") + " ",
	}
	if prefix != dir+string(filepath.Separator) || len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("file completion = %v (prefix %q), want %v", got, prefix, want)
	}

	if got, _ := c.getCompletions("history flow-8 "); got != nil {
		t.Errorf("no completion expected after history argument, got %v", got)
	}

	line := []rune("hel")
	suffixes, length := c.Do(line, len(line))
	if length != 3 || len(suffixes) != 1 || string(suffixes[0]) != "p " {
		t.Errorf("Do = %q, %d", suffixes, length)
	}
}
