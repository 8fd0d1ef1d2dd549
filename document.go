package mooceditor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// Direction selects the neighbour Move swaps with
type Direction int

const (
	Up Direction = iota
	Down
)

// ParseDirection converts "up" or "down" into a Direction
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	}
	return Up, fmt.Errorf("%w: direction must be up or down, got %q", ErrFormat, s)
}

// labelWidth is how many runes of the prompt a list caption shows
const labelWidth = 35

// Document is the ordered list of questions backing one quiz file.
// It is not safe for concurrent use.
type Document struct {
	questions []*Question
	path      string
	dirty     bool
}

// NewDocument creates an empty, unsaved document
func NewDocument() *Document {
	return &Document{questions: []*Question{}}
}

// OpenDocument loads a document from path
func OpenDocument(path string) (*Document, error) {
	d := NewDocument()
	if err := d.Load(path); err != nil {
		return nil, err
	}
	return d, nil
}

// New clears the document and forgets its file path
func (d *Document) New() {
	d.questions = []*Question{}
	d.path = ""
	d.dirty = false
}

// Len returns the number of questions
func (d *Document) Len() int {
	return len(d.questions)
}

// Questions returns the questions in order. The slice is shared with the
// document; callers must not append to it.
func (d *Document) Questions() []*Question {
	return d.questions
}

// Path returns the file the document was last loaded from or saved to
func (d *Document) Path() string {
	return d.path
}

// Dirty reports whether the document changed since it was loaded or saved
func (d *Document) Dirty() bool {
	return d.dirty
}

// MarkDirty records an in-place edit of one of the questions
func (d *Document) MarkDirty() {
	d.dirty = true
}

// Get returns the question at index i
func (d *Document) Get(i int) (*Question, error) {
	if i < 0 || i >= len(d.questions) {
		return nil, fmt.Errorf("%w: question %d of %d", ErrIndexOutOfRange, i, len(d.questions))
	}
	return d.questions[i], nil
}

// Set replaces the question at index i
func (d *Document) Set(i int, q *Question) error {
	if _, err := d.Get(i); err != nil {
		return err
	}
	d.questions[i] = q
	d.dirty = true
	return nil
}

// Append adds q at the end and returns its index
func (d *Document) Append(q *Question) int {
	d.questions = append(d.questions, q)
	d.dirty = true
	return len(d.questions) - 1
}

// Delete removes the question at index i
func (d *Document) Delete(i int) error {
	if _, err := d.Get(i); err != nil {
		return err
	}
	d.questions = append(d.questions[:i], d.questions[i+1:]...)
	d.dirty = true
	return nil
}

// Move swaps the question at index i with its neighbour and returns the
// question's new index. Moving the first question up or the last one
// down changes nothing.
func (d *Document) Move(i int, dir Direction) (int, error) {
	if _, err := d.Get(i); err != nil {
		return i, err
	}
	j := i - 1
	if dir == Down {
		j = i + 1
	}
	if j < 0 || j >= len(d.questions) {
		return i, nil
	}
	d.questions[i], d.questions[j] = d.questions[j], d.questions[i]
	d.dirty = true
	return j, nil
}

// Load replaces the document with the contents of path. On any error the
// current questions and path are left as they were.
func (d *Document) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	questions, err := DecodeQuestions(path, data)
	if err != nil {
		return err
	}

	d.questions = questions
	d.path = path
	d.dirty = false
	VerboseLog("Loaded %d questions from %s", len(questions), path)
	return nil
}

// DecodeQuestions parses a document body. source names the input in errors.
func DecodeQuestions(source string, data []byte) ([]*Question, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		if _, ok := err.(*json.UnmarshalTypeError); ok {
			return nil, fmt.Errorf("%s: %w", source, ErrNotArray)
		}
		return nil, newParseError(source, err)
	}
	if items == nil {
		return nil, fmt.Errorf("%s: %w", source, ErrNotArray)
	}

	questions := make([]*Question, 0, len(items))
	for i, raw := range items {
		q := &Question{}
		if err := json.Unmarshal(raw, q); err != nil {
			return nil, newParseError(fmt.Sprintf("%s question %d", source, i+1), err)
		}
		if q.decodeErr != nil {
			editorLog.Printf("Question %d of %s kept as raw data: %v", i+1, source, q.decodeErr)
		} else if q.Payload == nil {
			editorLog.Printf("Question %d of %s has unsupported type %q, kept as raw data", i+1, source, q.Type)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// Encode renders the document as indented JSON with sorted keys and
// literal non-ASCII characters.
func (d *Document) Encode() ([]byte, error) {
	return EncodeQuestions(d.questions)
}

// EncodeQuestions renders questions the way Save writes them
func EncodeQuestions(questions []*Question) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(questions); err != nil {
		return nil, fmt.Errorf("failed to encode questions: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the document to path. An empty path means the current one.
// The file is replaced atomically: either the new content is fully
// written or the previous file is left untouched.
func (d *Document) Save(path string) error {
	if path == "" {
		path = d.path
	}
	if path == "" {
		return fmt.Errorf("failed to save: document has no file path")
	}

	data, err := d.Encode()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}

	d.path = path
	d.dirty = false
	VerboseLog("Saved %d questions to %s", len(d.questions), path)
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if info, err := os.Stat(path); err == nil {
		os.Chmod(tmpName, info.Mode().Perm())
	} else {
		os.Chmod(tmpName, 0o644)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	tmpName = ""
	return nil
}

// Label returns the caption of question i in the question list:
// "N. [type] prompt", with long prompts shortened.
func (d *Document) Label(i int) string {
	q, err := d.Get(i)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%d. [%s] %s", i+1, typeTag(q), shortText(q))
}

// Labels returns the caption of every question
func (d *Document) Labels() []string {
	out := make([]string, len(d.questions))
	for i := range d.questions {
		out[i] = d.Label(i)
	}
	return out
}

func typeTag(q *Question) string {
	if q.Type == "" {
		return "unknown"
	}
	return string(q.Type)
}

func shortText(q *Question) string {
	var text string
	switch {
	case q.Type == TypeMultiQuestions:
		n := 0
		if mq, ok := q.Payload.(*MultiQuestions); ok {
			n = len(mq.Questions)
		}
		text = fmt.Sprintf("Multi-Block (%d questions)", n)
	case q.Text == "":
		text = "No question text"
	default:
		text = q.Text
	}
	if utf8.RuneCountInString(text) > labelWidth {
		text = string([]rune(text)[:labelWidth]) + "..."
	}
	return text
}
