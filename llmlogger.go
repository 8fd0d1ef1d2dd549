package mooceditor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LLMLogger writes the transcript of one generation run to <dir>/<run-id>.log
type LLMLogger struct {
	file  *os.File
	mu    sync.Mutex
	runID string
}

// NewLLMLogger creates the transcript file of a run and writes its header
func NewLLMLogger(dir, runID string, req GenerationRequest) (*LLMLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s.log", runID))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := &LLMLogger{
		file:  file,
		runID: runID,
	}

	logger.Logf("=== Question Generation Log ===\n")
	logger.Logf("Run ID: %s\n", runID)
	logger.Logf("Category: %s\n", req.Category)
	logger.Logf("Source Text Length: %d characters\n", len([]rune(req.SourceText)))
	logger.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	logger.Logf("========================\n\n")

	return logger, nil
}

// Logf writes a formatted entry with a timestamp
func (ll *LLMLogger) Logf(format string, args ...interface{}) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.write(format, args...)
}

func (ll *LLMLogger) write(format string, args ...interface{}) {
	if ll.file == nil {
		return
	}
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(ll.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	ll.file.Sync()
}

func (ll *LLMLogger) LogLLMRequest(engine, prompt string) {
	ll.Logf("=== LLM REQUEST (%s) ===\n", engine)
	ll.Logf("Prompt:\n%s\n", prompt)
	ll.Logf("=====================\n\n")
}

func (ll *LLMLogger) LogLLMResponse(engine, response string) {
	ll.Logf("=== LLM RESPONSE (%s) ===\n", engine)
	ll.Logf("Response:\n%s\n", response)
	ll.Logf("======================\n\n")
}

// LogItemResult records what the normalizer did with one item
func (ll *LLMLogger) LogItemResult(index int, status ItemStatus, detail string) {
	ll.Logf("Item %d: %s - %s\n", index, status, detail)
}

// LogError records why a run stopped early
func (ll *LLMLogger) LogError(stage string, err error) {
	ll.Logf("ERROR (%s): %v\n", stage, err)
}

func (ll *LLMLogger) Close() error {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	if ll.file == nil {
		return nil
	}
	ll.write("=== Question Generation Complete ===\n")
	ll.write("Completed: %s\n", time.Now().Format(time.RFC3339))
	err := ll.file.Close()
	ll.file = nil
	return err
}
