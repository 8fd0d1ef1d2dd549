package mooceditor

import (
	"fmt"
	"strings"
)

// EmptyOptionText replaces an mcq option saved with neither text nor image
const EmptyOptionText = "Empty Option"

const minOptions = 2

// ListPickForm edits a list_pick question. Correct[i] marks Options[i].
type ListPickForm struct {
	Options []string `json:"options"`
	Correct []bool   `json:"correct"`
}

func (*ListPickForm) FormType() Type { return TypeListPick }

// ChoiceForm edits an mcq_single question; Correct is the index of the right option.
type ChoiceForm struct {
	Options []Option `json:"options"`
	Correct int      `json:"correct"`
}

func (*ChoiceForm) FormType() Type { return TypeMCQSingle }

// MultiChoiceForm edits an mcq_multiple question
type MultiChoiceForm struct {
	Options []Option `json:"options"`
	Correct []bool   `json:"correct"`
}

func (*MultiChoiceForm) FormType() Type { return TypeMCQMultiple }

func (p *ListPick) form(_ *Question) Form {
	return &ListPickForm{
		Options: copyStrings(p.Options),
		Correct: correctFlags(p.Answer, len(p.Options)),
	}
}

func (p *ListPick) apply(_ *Question, f Form) error {
	form, ok := f.(*ListPickForm)
	if !ok {
		return wrongForm(TypeListPick)
	}
	if len(form.Correct) != len(form.Options) {
		return invalid("correct", "expected %d flags, got %d", len(form.Options), len(form.Correct))
	}
	if len(form.Options) == 0 {
		return invalid("options", "at least one option is required")
	}
	options := make([]string, len(form.Options))
	for i, o := range form.Options {
		o = strings.TrimSpace(o)
		if o == "" {
			return invalid(fmt.Sprintf("options[%d]", i), "option text is empty")
		}
		options[i] = o
	}
	p.Options = options
	p.Answer = flaggedIndices(form.Correct)
	return nil
}

func (p *ListPick) Lists() []string { return []string{"options"} }

func (p *ListPick) addItem(list string) error {
	if list != "options" {
		return unknownList(TypeListPick, list)
	}
	p.AddOption("New Cute Option")
	return nil
}

func (p *ListPick) deleteItem(list string, k int) error {
	if list != "options" {
		return unknownList(TypeListPick, list)
	}
	return p.DeleteOption(k)
}

// AddOption appends an option that is not marked correct
func (p *ListPick) AddOption(text string) {
	p.Options = append(p.Options, text)
}

// DeleteOption removes option k; answer indices above k shift down and k itself is dropped
func (p *ListPick) DeleteOption(k int) error {
	if err := checkDelete("options", k, len(p.Options), minOptions); err != nil {
		return err
	}
	p.Options = removeAt(p.Options, k)
	p.Answer = dropIndex(p.Answer, k)
	return nil
}

func (p *MCQSingle) form(_ *Question) Form {
	correct := 0
	if len(p.Answer) > 0 {
		correct = p.Answer[0]
	}
	return &ChoiceForm{Options: append([]Option{}, p.Options...), Correct: correct}
}

func (p *MCQSingle) apply(_ *Question, f Form) error {
	form, ok := f.(*ChoiceForm)
	if !ok {
		return wrongForm(TypeMCQSingle)
	}
	if len(form.Options) == 0 {
		return invalid("options", "at least one option is required")
	}
	if form.Correct < 0 || form.Correct >= len(form.Options) {
		return invalid("correct", "index %d is outside the %d options", form.Correct, len(form.Options))
	}
	p.Options = normalizeOptions(form.Options)
	p.Answer = []int{form.Correct}
	return nil
}

func (p *MCQSingle) Lists() []string { return []string{"options"} }

func (p *MCQSingle) addItem(list string) error {
	if list != "options" {
		return unknownList(TypeMCQSingle, list)
	}
	p.AddOption(Option{Text: "New Amazing Option"})
	return nil
}

func (p *MCQSingle) deleteItem(list string, k int) error {
	if list != "options" {
		return unknownList(TypeMCQSingle, list)
	}
	return p.DeleteOption(k)
}

// AddOption appends an option
func (p *MCQSingle) AddOption(o Option) {
	p.Options = append(p.Options, o)
}

// DeleteOption removes option k. Deleting the correct option makes option
// 0 correct; a correct option after k moves down by one.
func (p *MCQSingle) DeleteOption(k int) error {
	if err := checkDelete("options", k, len(p.Options), minOptions); err != nil {
		return err
	}
	correct := 0
	if len(p.Answer) > 0 {
		correct = p.Answer[0]
	}
	switch {
	case correct == k:
		correct = 0
	case correct > k:
		correct--
	}
	p.Options = removeAt(p.Options, k)
	p.Answer = []int{correct}
	return nil
}

func (p *MCQMultiple) form(_ *Question) Form {
	return &MultiChoiceForm{
		Options: append([]Option{}, p.Options...),
		Correct: correctFlags(p.Answer, len(p.Options)),
	}
}

func (p *MCQMultiple) apply(_ *Question, f Form) error {
	form, ok := f.(*MultiChoiceForm)
	if !ok {
		return wrongForm(TypeMCQMultiple)
	}
	if len(form.Correct) != len(form.Options) {
		return invalid("correct", "expected %d flags, got %d", len(form.Options), len(form.Correct))
	}
	answer := flaggedIndices(form.Correct)
	if len(answer) == 0 {
		return invalid("correct", "select at least one correct option")
	}
	p.Options = normalizeOptions(form.Options)
	p.Answer = answer
	return nil
}

func (p *MCQMultiple) Lists() []string { return []string{"options"} }

func (p *MCQMultiple) addItem(list string) error {
	if list != "options" {
		return unknownList(TypeMCQMultiple, list)
	}
	p.AddOption(Option{Text: "New Fantastic Option"})
	return nil
}

func (p *MCQMultiple) deleteItem(list string, k int) error {
	if list != "options" {
		return unknownList(TypeMCQMultiple, list)
	}
	return p.DeleteOption(k)
}

// AddOption appends an option that is not marked correct
func (p *MCQMultiple) AddOption(o Option) {
	p.Options = append(p.Options, o)
}

// DeleteOption removes option k; answer indices above k shift down and k itself is dropped
func (p *MCQMultiple) DeleteOption(k int) error {
	if err := checkDelete("options", k, len(p.Options), minOptions); err != nil {
		return err
	}
	p.Options = removeAt(p.Options, k)
	p.Answer = dropIndex(p.Answer, k)
	return nil
}

// normalizeOptions trims every option and gives empty ones placeholder
// text so the list never shrinks on save.
func normalizeOptions(in []Option) []Option {
	out := make([]Option, len(in))
	for i, o := range in {
		img := strings.TrimSpace(o.Image)
		text := strings.TrimSpace(o.Text)
		if img == "" && text == "" {
			text = EmptyOptionText
		}
		out[i] = Option{Image: img, Text: text, Extra: o.Extra}
	}
	return out
}

func correctFlags(answer []int, n int) []bool {
	flags := make([]bool, n)
	for _, a := range answer {
		if a >= 0 && a < n {
			flags[a] = true
		}
	}
	return flags
}

func flaggedIndices(flags []bool) []int {
	out := []int{}
	for i, set := range flags {
		if set {
			out = append(out, i)
		}
	}
	return out
}
