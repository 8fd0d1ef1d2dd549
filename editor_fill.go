package mooceditor

import (
	"fmt"
	"strings"
)

// WordFillForm edits a word_fill question. Blank i sits between
// SentenceParts[i] and SentenceParts[i+1] and is answered by Answers[i].
type WordFillForm struct {
	SentenceParts []string `json:"sentence_parts"`
	Answers       []string `json:"answers"`
}

func (*WordFillForm) FormType() Type { return TypeWordFill }

// BlankField is one dropdown blank: its choices and the correct one
type BlankField struct {
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
}

// DropdownForm edits a fill_blanks_dropdown question
type DropdownForm struct {
	SentenceParts []string     `json:"sentence_parts"`
	Blanks        []BlankField `json:"blanks"`
}

func (*DropdownForm) FormType() Type { return TypeDropdown }

func (p *WordFill) form(_ *Question) Form {
	return &WordFillForm{
		SentenceParts: copyStrings(p.SentenceParts),
		Answers:       copyStrings(p.Answers),
	}
}

func (p *WordFill) apply(_ *Question, f Form) error {
	form, ok := f.(*WordFillForm)
	if !ok {
		return wrongForm(TypeWordFill)
	}
	parts, err := cleanParts(form.SentenceParts)
	if err != nil {
		return err
	}
	if len(form.Answers) != len(parts)-1 {
		return invalid("answers", "%d sentence parts need %d answers, got %d", len(parts), len(parts)-1, len(form.Answers))
	}
	answers := make([]string, len(form.Answers))
	for i, a := range form.Answers {
		a = strings.TrimSpace(a)
		if a == "" {
			return invalid(fmt.Sprintf("answers[%d]", i), "answer is empty")
		}
		answers[i] = a
	}
	p.SentenceParts = parts
	p.Answers = answers
	return nil
}

func (p *WordFill) Lists() []string { return []string{"sentence_parts", "answers"} }

func (p *WordFill) addItem(list string) error {
	switch list {
	case "sentence_parts":
		p.SentenceParts = append(p.SentenceParts, "")
	case "answers":
		p.Answers = append(p.Answers, "")
	default:
		return unknownList(TypeWordFill, list)
	}
	return nil
}

func (p *WordFill) deleteItem(list string, k int) error {
	switch list {
	case "sentence_parts":
		if err := checkDelete(list, k, len(p.SentenceParts), 1); err != nil {
			return err
		}
		p.SentenceParts = removeAt(p.SentenceParts, k)
	case "answers":
		if err := checkDelete(list, k, len(p.Answers), 0); err != nil {
			return err
		}
		p.Answers = removeAt(p.Answers, k)
	default:
		return unknownList(TypeWordFill, list)
	}
	return nil
}

func (p *FillBlanksDropdown) form(_ *Question) Form {
	blanks := make([]BlankField, len(p.OptionsForBlanks))
	for i, opts := range p.OptionsForBlanks {
		blanks[i].Options = copyStrings(opts)
		if i < len(p.Answers) {
			blanks[i].Answer = p.Answers[i]
		}
	}
	return &DropdownForm{SentenceParts: copyStrings(p.SentenceParts), Blanks: blanks}
}

func (p *FillBlanksDropdown) apply(_ *Question, f Form) error {
	form, ok := f.(*DropdownForm)
	if !ok {
		return wrongForm(TypeDropdown)
	}
	parts, err := cleanParts(form.SentenceParts)
	if err != nil {
		return err
	}
	if len(form.Blanks) != len(parts)-1 {
		return invalid("blanks", "%d sentence parts need %d blanks, got %d", len(parts), len(parts)-1, len(form.Blanks))
	}

	options := make([][]string, len(form.Blanks))
	answers := make([]string, len(form.Blanks))
	for i, b := range form.Blanks {
		opts := make([]string, 0, len(b.Options))
		filled := 0
		for _, o := range b.Options {
			if o == "" {
				continue
			}
			if strings.TrimSpace(o) != "" {
				filled++
			}
			opts = append(opts, o)
		}
		if filled == 0 {
			return invalid(fmt.Sprintf("blanks[%d].options", i), "blank needs at least one option")
		}
		if strings.TrimSpace(b.Answer) == "" {
			return invalid(fmt.Sprintf("blanks[%d].answer", i), "choose the correct option")
		}
		if !contains(opts, b.Answer) {
			return invalid(fmt.Sprintf("blanks[%d].answer", i), "%q is not one of the blank's options", b.Answer)
		}
		options[i] = opts
		answers[i] = b.Answer
	}

	p.SentenceParts = parts
	p.OptionsForBlanks = options
	p.Answers = answers
	return nil
}

// Choices returns the closed set of values blank i accepts
func (p *FillBlanksDropdown) Choices(i int) ([]string, error) {
	if i < 0 || i >= len(p.OptionsForBlanks) {
		return nil, fmt.Errorf("%w: blank %d of %d", ErrIndexOutOfRange, i, len(p.OptionsForBlanks))
	}
	return copyStrings(p.OptionsForBlanks[i]), nil
}

// SetAnswer selects the answer of blank i, which must be one of its options
func (p *FillBlanksDropdown) SetAnswer(i int, answer string) error {
	choices, err := p.Choices(i)
	if err != nil {
		return err
	}
	if !contains(choices, answer) {
		return invalid(fmt.Sprintf("answers[%d]", i), "%q is not one of the blank's options", answer)
	}
	for len(p.Answers) <= i {
		p.Answers = append(p.Answers, "")
	}
	p.Answers[i] = answer
	return nil
}

func (p *FillBlanksDropdown) Lists() []string { return []string{"sentence_parts", "blanks"} }

func (p *FillBlanksDropdown) addItem(list string) error {
	switch list {
	case "sentence_parts":
		p.SentenceParts = append(p.SentenceParts, "")
	case "blanks":
		p.AddBlank([]string{" ", "Option A", "Option B"}, "Option A")
	default:
		return unknownList(TypeDropdown, list)
	}
	return nil
}

func (p *FillBlanksDropdown) deleteItem(list string, k int) error {
	switch list {
	case "sentence_parts":
		if err := checkDelete(list, k, len(p.SentenceParts), 1); err != nil {
			return err
		}
		p.SentenceParts = removeAt(p.SentenceParts, k)
	case "blanks":
		return p.DeleteBlank(k)
	default:
		return unknownList(TypeDropdown, list)
	}
	return nil
}

// AddBlank appends a blank with its options and answer
func (p *FillBlanksDropdown) AddBlank(options []string, answer string) {
	p.OptionsForBlanks = append(p.OptionsForBlanks, copyStrings(options))
	p.Answers = append(p.Answers, answer)
}

// DeleteBlank removes blank k together with its answer
func (p *FillBlanksDropdown) DeleteBlank(k int) error {
	if err := checkDelete("blanks", k, len(p.OptionsForBlanks), 1); err != nil {
		return err
	}
	p.OptionsForBlanks = removeAt(p.OptionsForBlanks, k)
	if k < len(p.Answers) {
		p.Answers = removeAt(p.Answers, k)
	}
	return nil
}

// cleanParts drops the trailing newlines a multi-line text box leaves
// and requires at least one part.
func cleanParts(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, invalid("sentence_parts", "at least one sentence part is required")
	}
	parts := make([]string, len(in))
	for i, s := range in {
		parts[i] = strings.TrimRight(s, "\r\n")
	}
	return parts, nil
}
