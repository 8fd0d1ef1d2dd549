package mooceditor

import (
	"fmt"
	"strings"
)

// SubField is the summary row of one sub-question in a block
type SubField struct {
	Type     Type   `json:"type"`
	Question string `json:"question"`
}

// MultiForm edits the sub-question rows of a multi_questions block.
// Changing a row's type replaces that sub-question with the new type's
// default, keeping its prompt.
type MultiForm struct {
	Items []SubField `json:"items"`
}

func (*MultiForm) FormType() Type { return TypeMultiQuestions }

func (p *MultiQuestions) form(_ *Question) Form {
	items := make([]SubField, len(p.Questions))
	for i, sub := range p.Questions {
		if sub == nil {
			continue
		}
		items[i] = SubField{Type: sub.Type, Question: sub.Text}
	}
	return &MultiForm{Items: items}
}

func (p *MultiQuestions) apply(_ *Question, f Form) error {
	form, ok := f.(*MultiForm)
	if !ok {
		return wrongForm(TypeMultiQuestions)
	}
	if len(form.Items) != len(p.Questions) {
		return invalid("items", "expected %d sub-questions, got %d", len(p.Questions), len(form.Items))
	}

	next := make([]*Question, len(p.Questions))
	for i, item := range form.Items {
		field := fmt.Sprintf("items[%d].type", i)
		if err := checkSubType(item.Type); err != nil {
			return invalid(field, "%v", err)
		}
		cur := p.Questions[i]
		if cur != nil && cur.Type == item.Type {
			next[i] = cur
			continue
		}
		fresh, err := NewQuestion(item.Type)
		if err != nil {
			return invalid(field, "%v", err)
		}
		next[i] = fresh
	}

	for i, item := range form.Items {
		next[i].Text = strings.TrimSpace(item.Question)
	}
	p.Questions = next
	return nil
}

func checkSubType(t Type) error {
	if t == TypeMultiQuestions {
		return fmt.Errorf("multi_questions cannot be nested")
	}
	if !IsKnown(t) {
		return fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return nil
}

// SubTypes lists the types a sub-question may have
func SubTypes() []Type {
	out := []Type{}
	for _, t := range Types() {
		if t != TypeMultiQuestions {
			out = append(out, t)
		}
	}
	return out
}

// Sub returns sub-question i for in-place editing with FormFor and ApplyForm
func (p *MultiQuestions) Sub(i int) (*Question, error) {
	if i < 0 || i >= len(p.Questions) {
		return nil, fmt.Errorf("%w: sub-question %d of %d", ErrIndexOutOfRange, i, len(p.Questions))
	}
	if p.Questions[i] == nil {
		return nil, fmt.Errorf("%w: sub-question %d is empty", ErrUndecoded, i)
	}
	return p.Questions[i], nil
}

// ChangeType replaces sub-question i with a default of type t, keeping its prompt
func (p *MultiQuestions) ChangeType(i int, t Type) error {
	if i < 0 || i >= len(p.Questions) {
		return fmt.Errorf("%w: sub-question %d of %d", ErrIndexOutOfRange, i, len(p.Questions))
	}
	if err := checkSubType(t); err != nil {
		return invalid("type", "%v", err)
	}
	fresh, err := NewQuestion(t)
	if err != nil {
		return err
	}
	if old := p.Questions[i]; old != nil {
		fresh.Text = old.Text
	}
	p.Questions[i] = fresh
	return nil
}

func (p *MultiQuestions) Lists() []string { return []string{"questions"} }

func (p *MultiQuestions) addItem(list string) error {
	if list != "questions" {
		return unknownList(TypeMultiQuestions, list)
	}
	p.Questions = append(p.Questions, &Question{
		Type: TypeMCQSingle,
		Text: "New cute sub-question! 💖",
		Payload: &MCQSingle{
			Options: []Option{
				{Image: "image1.jpg", Text: "Option A"},
				{Image: "image2.jpg", Text: "Option B"},
			},
			Answer: []int{0},
		},
	})
	return nil
}

func (p *MultiQuestions) deleteItem(list string, k int) error {
	if list != "questions" {
		return unknownList(TypeMultiQuestions, list)
	}
	if err := checkDelete(list, k, len(p.Questions), 1); err != nil {
		return err
	}
	p.Questions = removeAt(p.Questions, k)
	return nil
}
