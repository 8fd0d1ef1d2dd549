package mooceditor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StimulusField is one item to sort and the category it belongs to
type StimulusField struct {
	Text     string `json:"text"`
	Image    string `json:"image"`
	Category string `json:"category"`
}

// CategorizationForm edits a categorization_multiple question.
// Categories excludes the blank placeholder, which is always kept first.
type CategorizationForm struct {
	Categories []string        `json:"categories"`
	Stimuli    []StimulusField `json:"stimuli"`
}

func (*CategorizationForm) FormType() Type { return TypeCategorization }

// StimulusKey returns the answer key of a stimulus: its text, or the
// base name of its image for image-only stimuli.
func StimulusKey(st Stimulus) string {
	if st.Text != nil && *st.Text != "" {
		return *st.Text
	}
	if st.Image != nil && *st.Image != "" {
		return baseName(*st.Image)
	}
	return ""
}

// baseName strips the directory part of a slash or backslash separated path
func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

func (p *Categorization) form(_ *Question) Form {
	cats := []string{}
	for _, c := range p.Categories {
		if strings.TrimSpace(c) != "" {
			cats = append(cats, c)
		}
	}
	stimuli := make([]StimulusField, len(p.Stimuli))
	for i, st := range p.Stimuli {
		if st.Text != nil {
			stimuli[i].Text = *st.Text
		}
		if st.Image != nil {
			stimuli[i].Image = *st.Image
		}
		stimuli[i].Category = p.Answer[StimulusKey(st)]
	}
	return &CategorizationForm{Categories: cats, Stimuli: stimuli}
}

func (p *Categorization) apply(_ *Question, f Form) error {
	form, ok := f.(*CategorizationForm)
	if !ok {
		return wrongForm(TypeCategorization)
	}

	categories := []string{CategoryPlaceholder}
	for i, c := range form.Categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if contains(categories, c) {
			return invalid(fmt.Sprintf("categories[%d]", i), "category %q is listed twice", c)
		}
		categories = append(categories, c)
	}
	if len(categories) < 2 {
		return invalid("categories", "at least one category is required")
	}
	if len(form.Stimuli) == 0 {
		return invalid("stimuli", "at least one item is required")
	}

	stimuli := make([]Stimulus, len(form.Stimuli))
	answer := make(map[string]string, len(form.Stimuli))
	seen := map[string]bool{}
	for i, sf := range form.Stimuli {
		field := fmt.Sprintf("stimuli[%d]", i)
		var st Stimulus
		if text := strings.TrimSpace(sf.Text); text != "" {
			st.Text = strPtr(text)
		}
		if image := strings.TrimSpace(sf.Image); image != "" {
			st.Image = strPtr(image)
		}
		key := StimulusKey(st)
		if key == "" {
			return invalid(field, "an item needs text or an image")
		}
		if seen[key] {
			return invalid(field, "two items share the key %q", key)
		}
		seen[key] = true
		st.Extra = p.stimulusExtra(key)
		if cat := strings.TrimSpace(sf.Category); cat != "" {
			if cat == CategoryPlaceholder || !contains(categories, cat) {
				return invalid(field+".category", "%q is not a category", cat)
			}
			answer[key] = cat
		}
		stimuli[i] = st
	}

	p.Categories = categories
	p.Stimuli = stimuli
	p.Answer = answer
	return nil
}

// stimulusExtra returns the unmodelled keys of the stimulus with answer key key
func (p *Categorization) stimulusExtra(key string) map[string]json.RawMessage {
	for _, st := range p.Stimuli {
		if StimulusKey(st) == key {
			return st.Extra
		}
	}
	return nil
}

func (p *Categorization) Lists() []string { return []string{"categories", "stimuli"} }

func (p *Categorization) addItem(list string) error {
	switch list {
	case "categories":
		p.Categories = append(p.Categories, "New Cute Category")
	case "stimuli":
		p.AddStimulus(Stimulus{Text: strPtr("New Adorable Item")})
	default:
		return unknownList(TypeCategorization, list)
	}
	return nil
}

func (p *Categorization) deleteItem(list string, k int) error {
	switch list {
	case "categories":
		return p.DeleteCategory(k)
	case "stimuli":
		return p.DeleteStimulus(k)
	}
	return unknownList(TypeCategorization, list)
}

// AddStimulus appends an item with no category yet
func (p *Categorization) AddStimulus(st Stimulus) {
	p.Stimuli = append(p.Stimuli, st)
}

// DeleteStimulus removes item k and its answer entry
func (p *Categorization) DeleteStimulus(k int) error {
	if err := checkDelete("stimuli", k, len(p.Stimuli), 1); err != nil {
		return err
	}
	st := p.Stimuli[k]
	delete(p.Answer, StimulusKey(st))
	// older files keyed image items by their full path
	if st.Image != nil {
		delete(p.Answer, *st.Image)
	}
	p.Stimuli = removeAt(p.Stimuli, k)
	return nil
}

// DeleteCategory removes category k and unassigns the items sorted into it.
// The blank placeholder cannot be deleted.
func (p *Categorization) DeleteCategory(k int) error {
	if err := checkDelete("categories", k, len(p.Categories), 2); err != nil {
		return err
	}
	name := p.Categories[k]
	if strings.TrimSpace(name) == "" {
		return invalid(fmt.Sprintf("categories[%d]", k), "the blank placeholder cannot be deleted")
	}
	p.Categories = removeAt(p.Categories, k)
	for key, cat := range p.Answer {
		if cat == name {
			delete(p.Answer, key)
		}
	}
	return nil
}
