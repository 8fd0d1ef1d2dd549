package mooceditor

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned for an unknown run id
var ErrRunNotFound = errors.New("run not found")

// HistoryDB stores every generation run and the outcome of its items
type HistoryDB struct {
	db *sql.DB
}

// OpenHistoryDB opens the sqlite database at dbPath and creates its tables
func OpenHistoryDB(dbPath string) (*HistoryDB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	h := &HistoryDB{db: db}
	if err := h.CreateTables(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// CreateTables creates the tables if they don't exist
func (h *HistoryDB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			engine TEXT NOT NULL,
			source_text TEXT NOT NULL,
			prompt TEXT NOT NULL,
			raw_response TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			total INTEGER NOT NULL DEFAULT 0,
			mapped INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_items (
			run_id TEXT NOT NULL,
			item_index INTEGER NOT NULL,
			tag TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			question TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, item_index),
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,
	}

	for _, query := range queries {
		if _, err := h.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// RecordRun stores a run and its items in one transaction
func (h *HistoryDB) RecordRun(run *Run, items []RunItem) error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, category, engine, source_text, prompt, raw_response, status, error, total, mapped, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Category, run.Engine, run.SourceText, run.Prompt, run.Raw, string(run.Status), run.Error, run.Total, run.Mapped, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	for _, item := range items {
		_, err := tx.Exec(
			"INSERT INTO run_items (run_id, item_index, tag, status, reason, summary, question) VALUES (?, ?, ?, ?, ?, ?, ?)",
			run.ID, item.ItemIndex, item.Tag, string(item.Status), item.Reason, item.Summary, item.Question,
		)
		if err != nil {
			return fmt.Errorf("failed to create run item %d: %w", item.ItemIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = "id, category, engine, source_text, prompt, raw_response, status, error, total, mapped, created_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var status string
	err := row.Scan(&run.ID, &run.Category, &run.Engine, &run.SourceText, &run.Prompt, &run.Raw,
		&status, &run.Error, &run.Total, &run.Mapped, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	return &run, nil
}

// GetRun retrieves a run by ID
func (h *HistoryDB) GetRun(id string) (*Run, error) {
	run, err := scanRun(h.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetRuns retrieves the most recent runs first, optionally limited by count
func (h *HistoryDB) GetRuns(limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := h.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetRunItems retrieves the items of a run in response order
func (h *HistoryDB) GetRunItems(runID string) ([]RunItem, error) {
	rows, err := h.db.Query(
		"SELECT run_id, item_index, tag, status, reason, summary, question FROM run_items WHERE run_id = ? ORDER BY item_index",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get run items: %w", err)
	}
	defer rows.Close()

	items := []RunItem{}
	for rows.Next() {
		var item RunItem
		var status string
		if err := rows.Scan(&item.RunID, &item.ItemIndex, &item.Tag, &status, &item.Reason, &item.Summary, &item.Question); err != nil {
			return nil, fmt.Errorf("failed to scan run item: %w", err)
		}
		item.Status = ItemStatus(status)
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run items: %w", err)
	}
	return items, nil
}

// MappedQuestions decodes the questions a run produced, so an earlier
// generation can be imported again without calling the model.
func (h *HistoryDB) MappedQuestions(runID string) ([]*Question, error) {
	if _, err := h.GetRun(runID); err != nil {
		return nil, err
	}
	items, err := h.GetRunItems(runID)
	if err != nil {
		return nil, err
	}
	out := []*Question{}
	for _, item := range items {
		if item.Status != ItemMapped || item.Question == "" {
			continue
		}
		q := &Question{}
		if err := json.Unmarshal([]byte(item.Question), q); err != nil {
			return nil, fmt.Errorf("failed to decode item %d of run %s: %w", item.ItemIndex, runID, err)
		}
		out = append(out, q)
	}
	return out, nil
}
