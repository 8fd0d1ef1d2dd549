package mooceditor

import "time"

// GenerationRequest asks for questions inspired by a source text.
// Category names both the prompt template and the requested question
// format ("All", "MCQ Single Choice", ...).
type GenerationRequest struct {
	Category   string `json:"category"`
	SourceText string `json:"source_text"`
}

// GenerationResult is what one model call produced, after normalization
type GenerationResult struct {
	RunID       string       `json:"run_id"`
	Category    string       `json:"category"`
	Engine      string       `json:"engine"`
	Prompt      string       `json:"prompt"`
	Raw         string       `json:"raw"`
	Total       int          `json:"total"`
	Suggestions []Suggestion `json:"suggestions"`
	Failures    []Failure    `json:"failures"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Questions returns the mapped questions in response order
func (r *GenerationResult) Questions() []*Question {
	out := make([]*Question, len(r.Suggestions))
	for i, s := range r.Suggestions {
		out[i] = s.Question
	}
	return out
}

// GenerationOutcome is delivered once by Generator.GenerateAsync
type GenerationOutcome struct {
	Result *GenerationResult
	Err    error
}

// RunStatus is the final state of a generation run
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ItemStatus records what happened to one generated item
type ItemStatus string

const (
	ItemMapped  ItemStatus = "mapped"
	ItemDropped ItemStatus = "dropped"
)

// Run is one generation request as stored in the history database
type Run struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Engine     string    `json:"engine"`
	SourceText string    `json:"source_text"`
	Prompt     string    `json:"prompt"`
	Raw        string    `json:"raw"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	Total      int       `json:"total"`
	Mapped     int       `json:"mapped"`
	CreatedAt  time.Time `json:"created_at"`
}

// RunItem is the outcome of one item of a run
type RunItem struct {
	RunID     string     `json:"run_id"`
	ItemIndex int        `json:"item_index"`
	Tag       string     `json:"tag"`
	Status    ItemStatus `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	Question  string     `json:"question,omitempty"` // JSON of the mapped question
}
