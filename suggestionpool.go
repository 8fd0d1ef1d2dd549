package mooceditor

import (
	"fmt"
	"sync"
	"time"
)

// PendingSuggestion is a generated question waiting to be accepted
type PendingSuggestion struct {
	ID       string    `json:"id"`
	RunID    string    `json:"run_id"`
	Summary  string    `json:"summary"`
	Question *Question `json:"question"`
	AddedAt  time.Time `json:"added_at"`
}

// SuggestionPool queues generated questions in arrival order until the
// user accepts or discards them.
type SuggestionPool struct {
	mu      sync.RWMutex
	pending map[string]*PendingSuggestion
	queue   []string // FIFO queue of suggestion IDs
}

func NewSuggestionPool() *SuggestionPool {
	return &SuggestionPool{
		pending: make(map[string]*PendingSuggestion),
		queue:   make([]string, 0),
	}
}

// AddResult queues every mapped question of a generation result and
// returns the IDs it assigned.
func (sp *SuggestionPool) AddResult(res *GenerationResult) []string {
	ids := make([]string, 0, len(res.Suggestions))
	for _, s := range res.Suggestions {
		ids = append(ids, sp.Add(res.RunID, s))
	}
	return ids
}

// Add queues one suggestion and returns its ID
func (sp *SuggestionPool) Add(runID string, s Suggestion) string {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	id := fmt.Sprintf("%s-%d", runID, s.Index)
	if _, ok := sp.pending[id]; !ok {
		sp.queue = append(sp.queue, id)
	}
	sp.pending[id] = &PendingSuggestion{
		ID:       id,
		RunID:    runID,
		Summary:  s.Summary,
		Question: s.Question,
		AddedAt:  time.Now(),
	}
	return id
}

// Get removes and returns the oldest suggestion, or nil when empty
func (sp *SuggestionPool) Get() *PendingSuggestion {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if len(sp.queue) == 0 {
		return nil
	}
	id := sp.queue[0]
	sp.queue = sp.queue[1:]
	s := sp.pending[id]
	delete(sp.pending, id)
	return s
}

// Peek returns the suggestion with id without removing it
func (sp *SuggestionPool) Peek(id string) (*PendingSuggestion, bool) {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	s, ok := sp.pending[id]
	return s, ok
}

// Take removes and returns the suggestion with id
func (sp *SuggestionPool) Take(id string) (*PendingSuggestion, bool) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	s, ok := sp.pending[id]
	if !ok {
		return nil, false
	}
	sp.remove(id)
	return s, true
}

func (sp *SuggestionPool) Remove(id string) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.remove(id)
}

func (sp *SuggestionPool) remove(id string) {
	delete(sp.pending, id)
	for i, qid := range sp.queue {
		if qid == id {
			sp.queue = append(sp.queue[:i], sp.queue[i+1:]...)
			break
		}
	}
}

func (sp *SuggestionPool) Clear() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.pending = make(map[string]*PendingSuggestion)
	sp.queue = sp.queue[:0]
}

func (sp *SuggestionPool) Size() int {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return len(sp.queue)
}

func (sp *SuggestionPool) IsEmpty() bool {
	return sp.Size() == 0
}

// List returns the pending suggestions in queue order
func (sp *SuggestionPool) List() []*PendingSuggestion {
	sp.mu.RLock()
	defer sp.mu.RUnlock()

	out := make([]*PendingSuggestion, 0, len(sp.queue))
	for _, id := range sp.queue {
		out = append(out, sp.pending[id])
	}
	return out
}

// AcceptReport tells what AcceptInto did with each suggestion
type AcceptReport struct {
	Added   []int         `json:"added"` // document indices of the new questions
	Skipped []DedupResult `json:"skipped"`
	Missing []string      `json:"missing"`
}

// AcceptInto appends the suggestions with the given IDs to doc, oldest
// first, or every pending suggestion when ids is empty. Questions the
// document already has are skipped. Accepted and skipped suggestions
// leave the pool.
func (sp *SuggestionPool) AcceptInto(doc *Document, ids []string) (*AcceptReport, error) {
	if len(ids) == 0 {
		for _, s := range sp.List() {
			ids = append(ids, s.ID)
		}
	}

	report := &AcceptReport{Added: []int{}, Skipped: []DedupResult{}, Missing: []string{}}
	dedup := NewQuestionDedup(doc.Questions())
	for _, id := range ids {
		s, ok := sp.Peek(id)
		if !ok {
			report.Missing = append(report.Missing, id)
			continue
		}
		res := dedup.CheckDuplicate(s.Question)
		if res.IsDuplicate {
			sp.Remove(id)
			res.SuggestionID = id
			report.Skipped = append(report.Skipped, *res)
			VerboseLog("Skipped suggestion %s: %s", id, res.Reason)
			continue
		}
		// a suggestion that cannot be copied stays pending
		q, err := s.Question.Clone()
		if err != nil {
			return report, fmt.Errorf("failed to copy suggestion %s: %w", id, err)
		}
		sp.Remove(id)
		report.Added = append(report.Added, doc.Append(q))
	}
	return report, nil
}
