package main

import (
	"os"
	"path/filepath"
	"testing"

	"mooceditor"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	return &app{file: filepath.Join(t.TempDir(), "questions.json"), settings: &mooceditor.Settings{}}
}

func mustRun(t *testing.T, a *app, cmd string, args ...string) {
	t.Helper()
	if err := a.run(cmd, args); err != nil {
		t.Fatalf("%s %v failed: %v", cmd, args, err)
	}
}

func TestEditSession(t *testing.T) {
	a := newTestApp(t)
	mustRun(t, a, "new")
	if err := a.run("new", nil); err == nil {
		t.Fatalf("expected new to refuse an existing file")
	}
	mustRun(t, a, "add", "list_pick")
	mustRun(t, a, "add", "mcq_single")
	mustRun(t, a, "move", "1", "down")
	mustRun(t, a, "delete-item", "2", "options", "3")
	mustRun(t, a, "check")

	doc, err := mooceditor.OpenDocument(a.file)
	if err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	if doc.Len() != 2 {
		t.Fatalf("expected 2 questions, got %d", doc.Len())
	}
	q, _ := doc.Get(1)
	lp, ok := q.Payload.(*mooceditor.ListPick)
	if !ok {
		t.Fatalf("expected list_pick second, got %s", q.Type)
	}
	if len(lp.Options) != 2 {
		t.Fatalf("expected 2 options left, got %v", lp.Options)
	}

	if err := a.run("delete", []string{"5"}); err == nil {
		t.Fatalf("expected an error for a missing question")
	}
	if err := a.run("add", []string{"crossword"}); err == nil {
		t.Fatalf("expected an error for an unknown type")
	}
	if err := a.run("frobnicate", nil); err == nil {
		t.Fatalf("expected an error for an unknown command")
	}
}

func TestCheckReportsProblems(t *testing.T) {
	a := newTestApp(t)
	data := `[{"type":"mcq_single","question":"q","options":[{"text":"a"},{"text":"b"}],"answer":[0,1],"media":null}]`
	if err := os.WriteFile(a.file, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := a.run("check", nil); err == nil {
		t.Fatalf("expected check to fail")
	}
}

func TestImportPicksSuggestions(t *testing.T) {
	a := newTestApp(t)
	response := filepath.Join(t.TempDir(), "response.txt")
	raw := "```json\n[" +
		`{"q_type":"List Pick","question":"Fruits ?","options":["Pomme","Voiture"],"réponses":["Pomme"]},` +
		`{"q_type":"List Pick","question":"Légumes ?","options":["Carotte","Vélo"],"réponses":["Carotte"]}` +
		"]\n```"
	if err := os.WriteFile(response, []byte(raw), 0644); err != nil {
		t.Fatalf("failed to write response: %v", err)
	}

	mustRun(t, a, "import", "-response", response, "-pick", "2")
	doc, err := mooceditor.OpenDocument(a.file)
	if err != nil {
		t.Fatalf("expected import to create the file: %v", err)
	}
	if doc.Len() != 1 || doc.Label(0) != "1. [list_pick] Légumes ?" {
		t.Fatalf("expected only the second suggestion, got %v", doc.Labels())
	}

	// importing the same response again only adds the missing question
	mustRun(t, a, "import", "-response", response)
	doc, _ = mooceditor.OpenDocument(a.file)
	if doc.Len() != 2 {
		t.Fatalf("expected the duplicate skipped, got %v", doc.Labels())
	}
}

func TestParsePicks(t *testing.T) {
	tests := []struct {
		in      string
		n       int
		want    []int
		wantErr bool
	}{
		{"", 3, []int{0, 1, 2}, false},
		{"1, 3", 3, []int{0, 2}, false},
		{"4", 3, nil, true},
		{"a", 3, nil, true},
	}
	for _, tt := range tests {
		got, err := parsePicks(tt.in, tt.n)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePicks(%q): unexpected error %v", tt.in, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("parsePicks(%q): expected %v, got %v", tt.in, tt.want, got)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parsePicks(%q): expected %v, got %v", tt.in, tt.want, got)
			}
		}
	}
}
