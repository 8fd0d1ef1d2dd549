package mooceditor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Engine is a language model that answers a filled prompt with text
type Engine interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator fills a prompt, asks the engine and normalizes the answer.
// History and transcripts are recorded when configured.
type Generator struct {
	engine     Engine
	prompts    *PromptStore
	normalizer *Normalizer
	history    *HistoryDB
	logDir     string
}

func NewGenerator(engine Engine, prompts *PromptStore) *Generator {
	return &Generator{
		engine:     engine,
		prompts:    prompts,
		normalizer: NewNormalizer(),
	}
}

// SetHistory records every run in db
func (g *Generator) SetHistory(db *HistoryDB) { g.history = db }

// SetLogDir writes one transcript per run into dir
func (g *Generator) SetLogDir(dir string) { g.logDir = dir }

func (g *Generator) SetNormalizer(n *Normalizer) { g.normalizer = n }

// Generate runs one request. Engine and parse failures are returned,
// items that cannot be mapped are listed in the result's Failures.
func (g *Generator) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	run := &Run{
		ID:         uuid.NewString(),
		Category:   req.Category,
		Engine:     g.engine.Name(),
		SourceText: req.SourceText,
		CreatedAt:  time.Now(),
	}
	editorLog.Printf("Starting generation %s: category %q with %s", run.ID, req.Category, run.Engine)

	prompt, err := g.prompts.Fill(req.Category, req.SourceText)
	if err != nil {
		return nil, err
	}
	run.Prompt = prompt

	var logger *LLMLogger
	if g.logDir != "" {
		logger, err = NewLLMLogger(g.logDir, run.ID, req)
		if err != nil {
			editorLog.Printf("Failed to create transcript for run %s: %v", run.ID, err)
		} else {
			defer logger.Close()
			logger.LogLLMRequest(run.Engine, prompt)
		}
	}

	raw, err := g.engine.Complete(ctx, prompt)
	if err != nil {
		err = fmt.Errorf("failed to generate questions: %w", err)
		g.fail(run, logger, "engine", err)
		return nil, err
	}
	run.Raw = raw
	if logger != nil {
		logger.LogLLMResponse(run.Engine, raw)
	}

	res, err := g.normalizer.Normalize(raw, req.Category)
	if err != nil {
		g.fail(run, logger, "parse", err)
		return nil, err
	}

	items := make([]RunItem, 0, res.Total)
	for _, s := range res.Suggestions {
		data, err := encodeJSON(s.Question)
		if err != nil {
			return nil, fmt.Errorf("failed to encode generated question: %w", err)
		}
		tag := string(s.Question.Type)
		items = append(items, RunItem{RunID: run.ID, ItemIndex: s.Index, Tag: tag, Status: ItemMapped, Summary: s.Summary, Question: string(data)})
		if logger != nil {
			logger.LogItemResult(s.Index, ItemMapped, tag)
		}
	}
	for _, f := range res.Failures {
		items = append(items, RunItem{RunID: run.ID, ItemIndex: f.Index, Tag: f.Tag, Status: ItemDropped, Reason: f.Reason})
		if logger != nil {
			logger.LogItemResult(f.Index, ItemDropped, f.Reason)
		}
	}

	run.Status = RunCompleted
	run.Total = res.Total
	run.Mapped = len(res.Suggestions)
	g.record(run, items)

	editorLog.Printf("Generation %s complete: %d of %d items mapped", run.ID, run.Mapped, run.Total)
	return &GenerationResult{
		RunID:       run.ID,
		Category:    req.Category,
		Engine:      run.Engine,
		Prompt:      prompt,
		Raw:         raw,
		Total:       res.Total,
		Suggestions: res.Suggestions,
		Failures:    res.Failures,
		CreatedAt:   run.CreatedAt,
	}, nil
}

// GenerateAsync runs Generate in the background and delivers exactly one
// outcome. The caller applies the result to its document itself.
func (g *Generator) GenerateAsync(ctx context.Context, req GenerationRequest) <-chan GenerationOutcome {
	out := make(chan GenerationOutcome, 1)
	go func() {
		defer close(out)
		res, err := g.Generate(ctx, req)
		out <- GenerationOutcome{Result: res, Err: err}
	}()
	return out
}

func (g *Generator) fail(run *Run, logger *LLMLogger, stage string, err error) {
	editorLog.Printf("Generation %s failed: %v", run.ID, err)
	if logger != nil {
		logger.LogError(stage, err)
	}
	run.Status = RunFailed
	run.Error = err.Error()
	g.record(run, nil)
}

func (g *Generator) record(run *Run, items []RunItem) {
	if g.history == nil {
		return
	}
	if err := g.history.RecordRun(run, items); err != nil {
		editorLog.Printf("Failed to record run %s: %v", run.ID, err)
	}
}
