package mooceditor

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestHistory(t *testing.T) *HistoryDB {
	t.Helper()
	db, err := OpenHistoryDB(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestHistoryRecordAndRead(t *testing.T) {
	db := openTestHistory(t)
	q, _ := NewQuestion(TypeOrderPhrase)
	data, err := encodeJSON(q)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	older := &Run{ID: "r1", Category: "All", Engine: "fake", SourceText: "texte", Prompt: "p", Status: RunFailed, Error: "boom", CreatedAt: time.Now().Add(-time.Hour)}
	if err := db.RecordRun(older, nil); err != nil {
		t.Fatalf("failed to record: %v", err)
	}
	newer := &Run{ID: "r2", Category: "Order the Phrase", Engine: "fake", SourceText: "texte", Prompt: "p", Raw: "[]", Status: RunCompleted, Total: 2, Mapped: 1, CreatedAt: time.Now()}
	items := []RunItem{
		{ItemIndex: 0, Tag: "order_phrase", Status: ItemMapped, Summary: "Order the phrase", Question: string(data)},
		{ItemIndex: 1, Tag: "Order the Phrase", Status: ItemDropped, Reason: "bad"},
	}
	if err := db.RecordRun(newer, items); err != nil {
		t.Fatalf("failed to record: %v", err)
	}

	runs, err := db.GetRuns(0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "r2" || runs[1].Status != RunFailed {
		t.Fatalf("expected newest first, got %+v", runs)
	}
	if limited, _ := db.GetRuns(1); len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	run, err := db.GetRun("r2")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.Mapped != 1 || run.Raw != "[]" {
		t.Fatalf("unexpected run %+v", run)
	}

	got, err := db.GetRunItems("r2")
	if err != nil {
		t.Fatalf("failed to get items: %v", err)
	}
	if len(got) != 2 || got[1].Status != ItemDropped || got[1].Reason != "bad" {
		t.Fatalf("unexpected items %+v", got)
	}

	questions, err := db.MappedQuestions("r2")
	if err != nil {
		t.Fatalf("failed to decode questions: %v", err)
	}
	if len(questions) != 1 || questions[0].Type != TypeOrderPhrase {
		t.Fatalf("unexpected questions %v", questions)
	}
}

func TestHistoryRunNotFound(t *testing.T) {
	db := openTestHistory(t)
	if _, err := db.GetRun("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := db.MappedQuestions("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestHistoryDuplicateRunRollsBack(t *testing.T) {
	db := openTestHistory(t)
	run := &Run{ID: "r", Category: "All", Engine: "fake", Status: RunCompleted, CreatedAt: time.Now()}
	items := []RunItem{{ItemIndex: 0, Status: ItemDropped}, {ItemIndex: 0, Status: ItemDropped}}
	if err := db.RecordRun(run, items); err == nil {
		t.Fatalf("expected duplicate item index to fail")
	}
	if _, err := db.GetRun("r"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected the run rolled back, got %v", err)
	}
}
