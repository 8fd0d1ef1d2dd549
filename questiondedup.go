package mooceditor

import (
	"fmt"
	"strings"
	"unicode"
)

// QuestionDedup detects questions the document already has. Two questions
// are duplicates when they have the same type and the same prompt once
// case, punctuation and spacing are ignored. Fill-in questions, whose
// prompt is a fixed instruction, are compared on their sentence instead.
type QuestionDedup struct {
	seen map[string]int // key -> index in the document, -1 for accepted suggestions
}

// DedupResult is the verdict for one question
type DedupResult struct {
	SuggestionID   string `json:"suggestion_id,omitempty"`
	IsDuplicate    bool   `json:"is_duplicate"`
	Reason         string `json:"reason"`
	DuplicateIndex int    `json:"duplicate_index"`
}

// NewQuestionDedup indexes the existing questions
func NewQuestionDedup(existing []*Question) *QuestionDedup {
	qd := &QuestionDedup{seen: make(map[string]int, len(existing))}
	for i, q := range existing {
		if key := dedupKey(q); key != "" {
			if _, ok := qd.seen[key]; !ok {
				qd.seen[key] = i
			}
		}
	}
	return qd
}

// CheckDuplicate reports whether q repeats a known question. A unique
// question is remembered so later repeats within the same batch are caught.
func (qd *QuestionDedup) CheckDuplicate(q *Question) *DedupResult {
	key := dedupKey(q)
	if key == "" {
		return &DedupResult{Reason: "nothing to compare", DuplicateIndex: -1}
	}
	if i, ok := qd.seen[key]; ok {
		reason := "same question as an earlier suggestion"
		if i >= 0 {
			reason = fmt.Sprintf("same question as number %d", i+1)
		}
		return &DedupResult{IsDuplicate: true, Reason: reason, DuplicateIndex: i}
	}
	qd.seen[key] = -1
	return &DedupResult{Reason: "unique", DuplicateIndex: -1}
}

func dedupKey(q *Question) string {
	if q == nil {
		return ""
	}
	text := q.Text
	switch p := q.Payload.(type) {
	case *WordFill:
		text = strings.Join(p.SentenceParts, " _ ")
	case *FillBlanksDropdown:
		text = strings.Join(p.SentenceParts, " _ ")
	case *OrderPhrase:
		text = strings.Join(p.Answer, " ")
	}
	norm := normalizeText(text)
	if norm == "" {
		return ""
	}
	return string(q.Type) + "|" + norm
}

// normalizeText lowercases s, drops punctuation and collapses spaces
func normalizeText(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || unicode.IsPunct(r) || r == '_':
			space = true
		}
	}
	return b.String()
}
