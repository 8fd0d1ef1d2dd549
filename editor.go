package mooceditor

import (
	"fmt"
	"strings"
)

// Form is the flat, user-editable view of a question payload. Each
// question type has its own form struct; FormFor produces one and
// ApplyForm writes it back.
type Form interface {
	FormType() Type
}

// FormFor returns the editable form of q's payload
func FormFor(q *Question) (Form, error) {
	if err := q.Editable(); err != nil {
		return nil, err
	}
	return q.Payload.form(q), nil
}

// ApplyForm validates f and writes it into q. When an error is returned
// q is exactly as it was before the call.
func ApplyForm(q *Question, f Form) error {
	if err := q.Editable(); err != nil {
		return err
	}
	if f == nil || f.FormType() != q.Type {
		return wrongForm(q.Type)
	}
	return q.Payload.apply(q, f)
}

// NewForm returns an empty form for type t, ready to be decoded into
func NewForm(t Type) (Form, error) {
	switch t {
	case TypeListPick:
		return &ListPickForm{}, nil
	case TypeMCQSingle:
		return &ChoiceForm{}, nil
	case TypeMCQMultiple:
		return &MultiChoiceForm{}, nil
	case TypeWordFill:
		return &WordFillForm{}, nil
	case TypeDropdown:
		return &DropdownForm{}, nil
	case TypeMatchSentence:
		return &MatchSentenceForm{}, nil
	case TypeMatchPhrases:
		return &MatchPhrasesForm{}, nil
	case TypeSequenceAudio:
		return &SequenceForm{}, nil
	case TypeOrderPhrase:
		return &OrderPhraseForm{}, nil
	case TypeCategorization:
		return &CategorizationForm{}, nil
	case TypeImageTagging:
		return &TaggingForm{}, nil
	case TypeMultiQuestions:
		return &MultiForm{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

// TextForm holds the prompt and hint shared by every question type
type TextForm struct {
	Question string `json:"question"`
	Hint     string `json:"hint"`
}

// TextFormFor returns the prompt section of q
func TextFormFor(q *Question) TextForm {
	return TextForm{Question: q.Text, Hint: q.Hint}
}

// ApplyText sets the prompt and hint. An empty hint removes the key.
func ApplyText(q *Question, f TextForm) {
	q.Text = strings.TrimSpace(f.Question)
	q.Hint = strings.TrimSpace(f.Hint)
}

// MediaForm holds the media file paths of a question
type MediaForm struct {
	Video string `json:"video"`
	Audio string `json:"audio"`
	Image string `json:"image"`
}

// MediaFormFor returns the media section of q
func MediaFormFor(q *Question) MediaForm {
	if q.Media == nil {
		return MediaForm{}
	}
	return MediaForm{Video: q.Media.Video, Audio: q.Media.Audio, Image: q.Media.Image}
}

// ApplyMedia sets the media paths. Media becomes null when all paths are
// empty and no other media keys were read from the file.
func ApplyMedia(q *Question, f MediaForm) {
	m := &Media{
		Video: strings.TrimSpace(f.Video),
		Audio: strings.TrimSpace(f.Audio),
		Image: strings.TrimSpace(f.Image),
	}
	if q.Media != nil {
		m.Extra = q.Media.Extra
	}
	if m.IsZero() && len(m.Extra) == 0 {
		q.Media = nil
		return
	}
	q.Media = m
}

// LessonForm holds the lesson PDF path
type LessonForm struct {
	PDF string `json:"pdf"`
}

// LessonFormFor returns the lesson section of q
func LessonFormFor(q *Question) LessonForm {
	if q.Lesson == nil {
		return LessonForm{}
	}
	return LessonForm{PDF: q.Lesson.PDF}
}

// ApplyLesson sets the lesson PDF; an empty path removes the lesson
func ApplyLesson(q *Question, f LessonForm) {
	pdf := strings.TrimSpace(f.PDF)
	if pdf == "" {
		q.Lesson = nil
		return
	}
	l := &Lesson{PDF: pdf}
	if q.Lesson != nil {
		l.Extra = q.Lesson.Extra
	}
	q.Lesson = l
}

// listEditor is implemented by payloads with lists that grow and shrink
// through add and delete buttons.
type listEditor interface {
	Lists() []string
	addItem(list string) error
	deleteItem(list string, k int) error
}

// Lists returns the names of the lists AddItem and DeleteItem accept for q
func Lists(q *Question) []string {
	if le, ok := q.Payload.(listEditor); ok {
		return le.Lists()
	}
	return nil
}

// AddItem appends a default entry to the named list of q, keeping answer
// structures consistent.
func AddItem(q *Question, list string) error {
	if err := q.Editable(); err != nil {
		return err
	}
	le, ok := q.Payload.(listEditor)
	if !ok {
		return fmt.Errorf("%w: %s has no editable lists", ErrFormat, q.Type)
	}
	return le.addItem(list)
}

// DeleteItem removes entry k of the named list of q and renumbers or
// prunes the answer accordingly.
func DeleteItem(q *Question, list string, k int) error {
	if err := q.Editable(); err != nil {
		return err
	}
	le, ok := q.Payload.(listEditor)
	if !ok {
		return fmt.Errorf("%w: %s has no editable lists", ErrFormat, q.Type)
	}
	return le.deleteItem(list, k)
}

func wrongForm(t Type) error {
	return fmt.Errorf("%w: %s question", ErrWrongForm, t)
}

func unknownList(t Type, list string) error {
	return fmt.Errorf("%w: %s has no list %q", ErrFormat, t, list)
}

// checkDelete verifies k is a valid position of a list of length n that
// may not shrink below least.
func checkDelete(list string, k, n, least int) error {
	if k < 0 || k >= n {
		return fmt.Errorf("%w: %s entry %d of %d", ErrIndexOutOfRange, list, k, n)
	}
	if n <= least {
		return fmt.Errorf("%w: %s needs at least %d entries", ErrMinItems, list, least)
	}
	return nil
}

// dropIndex removes index k from an answer list and shifts every index
// above k down by one.
func dropIndex(answer []int, k int) []int {
	out := make([]int, 0, len(answer))
	for _, a := range answer {
		switch {
		case a == k:
			continue
		case a > k:
			out = append(out, a-1)
		default:
			out = append(out, a)
		}
	}
	return out
}

func removeAt[T any](s []T, k int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:k]...)
	return append(out, s[k+1:]...)
}

func copyStrings(s []string) []string {
	return append([]string{}, s...)
}

func copyInts(s []int) []int {
	return append([]int{}, s...)
}
