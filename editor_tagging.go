package mooceditor

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

var (
	newTagPoint         = Point{100, 100}
	newAlternativePoint = Point{150, 150}
)

// TagField is one draggable tag and where it belongs on the image
type TagField struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// TaggingForm edits the base image of an image_tagging question
type TaggingForm struct {
	Image       string     `json:"image"`
	ButtonLabel string     `json:"button_label"`
	Tags        []TagField `json:"tags"`
}

func (*TaggingForm) FormType() Type { return TypeImageTagging }

// TagCoord is the position of one base tag on an alternative image
type TagCoord struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// AlternativeForm edits one alternative image
type AlternativeForm struct {
	Image       string     `json:"image"`
	ButtonLabel string     `json:"button_label"`
	Coords      []TagCoord `json:"coords"`
}

func (p *ImageTagging) form(q *Question) Form {
	tags := make([]TagField, len(p.Tags))
	for i, tag := range p.Tags {
		pt := p.Answer[tag.ID]
		tags[i] = TagField{ID: tag.ID, Label: tag.Label, X: pt[0], Y: pt[1]}
	}
	form := &TaggingForm{ButtonLabel: p.ButtonLabel, Tags: tags}
	if q != nil && q.Media != nil {
		form.Image = q.Media.Image
	}
	return form
}

func (p *ImageTagging) apply(q *Question, f Form) error {
	form, ok := f.(*TaggingForm)
	if !ok {
		return wrongForm(TypeImageTagging)
	}
	image := strings.TrimSpace(form.Image)
	if image == "" {
		return invalid("image", "image tagging needs an image")
	}
	if len(form.Tags) == 0 {
		return invalid("tags", "at least one tag is required")
	}
	tags := make([]Tag, len(form.Tags))
	answer := make(map[string]Point, len(form.Tags))
	for i, tf := range form.Tags {
		id := strings.TrimSpace(tf.ID)
		if id == "" {
			return invalid(fmt.Sprintf("tags[%d].id", i), "tag id is empty")
		}
		if _, dup := answer[id]; dup {
			return invalid(fmt.Sprintf("tags[%d].id", i), "tag id %q is used twice", id)
		}
		tags[i] = Tag{ID: id, Label: strings.TrimSpace(tf.Label), Extra: p.tagExtra(id)}
		answer[id] = Point{tf.X, tf.Y}
	}

	if q.Media == nil {
		q.Media = &Media{}
	}
	q.Media.Image = image
	p.ButtonLabel = strings.TrimSpace(form.ButtonLabel)
	p.Tags = tags
	p.Answer = answer
	return nil
}

func (p *ImageTagging) Lists() []string { return []string{"tags", "alternatives"} }

func (p *ImageTagging) addItem(list string) error {
	switch list {
	case "tags":
		p.AddTag()
		return nil
	case "alternatives":
		return p.SetAlternativeCount(len(p.Alternatives) + 1)
	}
	return unknownList(TypeImageTagging, list)
}

func (p *ImageTagging) deleteItem(list string, k int) error {
	switch list {
	case "tags":
		return p.DeleteTag(k)
	case "alternatives":
		if err := checkDelete(list, k, len(p.Alternatives), 0); err != nil {
			return err
		}
		p.Alternatives = removeAt(p.Alternatives, k)
		return nil
	}
	return unknownList(TypeImageTagging, list)
}

// AddTag appends a tag with a fresh id and default coordinates and returns it
func (p *ImageTagging) AddTag() Tag {
	n := len(p.Tags) + 1
	id := fmt.Sprintf("tag%d", n)
	for p.hasTag(id) {
		n++
		id = fmt.Sprintf("tag%d", n)
	}
	tag := Tag{ID: id, Label: "New Tag"}
	p.Tags = append(p.Tags, tag)
	p.Answer[id] = newTagPoint
	return tag
}

// DeleteTag removes base tag k and its coordinates. Alternatives keep the
// tag until SyncAlternatives is called.
func (p *ImageTagging) DeleteTag(k int) error {
	if err := checkDelete("tags", k, len(p.Tags), 1); err != nil {
		return err
	}
	delete(p.Answer, p.Tags[k].ID)
	p.Tags = removeAt(p.Tags, k)
	return nil
}

// SetAlternativeCount grows or shrinks the alternative list to n. New
// alternatives copy the base tags at a default position.
func (p *ImageTagging) SetAlternativeCount(n int) error {
	if n < 0 {
		return invalid("alternatives", "count cannot be negative")
	}
	for len(p.Alternatives) < n {
		alt := Alternative{
			Media:       &Media{Image: "alternative.jpg"},
			ButtonLabel: fmt.Sprintf("Alt View %d", len(p.Alternatives)+1),
			Tags:        append([]Tag{}, p.Tags...),
			Answer:      make(map[string]Point, len(p.Tags)),
		}
		for _, tag := range p.Tags {
			alt.Answer[tag.ID] = newAlternativePoint
		}
		p.Alternatives = append(p.Alternatives, alt)
	}
	p.Alternatives = p.Alternatives[:n]
	return nil
}

// AlternativeFormFor returns alternative i with one coordinate row per base tag
func (p *ImageTagging) AlternativeFormFor(i int) (*AlternativeForm, error) {
	if i < 0 || i >= len(p.Alternatives) {
		return nil, fmt.Errorf("%w: alternative %d of %d", ErrIndexOutOfRange, i, len(p.Alternatives))
	}
	alt := p.Alternatives[i]
	form := &AlternativeForm{ButtonLabel: alt.ButtonLabel, Coords: make([]TagCoord, len(p.Tags))}
	if alt.Media != nil {
		form.Image = alt.Media.Image
	}
	for j, tag := range p.Tags {
		pt := alt.Answer[tag.ID]
		form.Coords[j] = TagCoord{ID: tag.ID, X: pt[0], Y: pt[1]}
	}
	return form, nil
}

// ApplyAlternative validates f and stores it as alternative i
func (p *ImageTagging) ApplyAlternative(i int, f AlternativeForm) error {
	if i < 0 || i >= len(p.Alternatives) {
		return fmt.Errorf("%w: alternative %d of %d", ErrIndexOutOfRange, i, len(p.Alternatives))
	}
	image := strings.TrimSpace(f.Image)
	if image == "" {
		return invalid("image", "an alternative needs an image")
	}
	answer := make(map[string]Point, len(f.Coords))
	for j, c := range f.Coords {
		if !p.hasTag(c.ID) {
			return invalid(fmt.Sprintf("coords[%d]", j), "%q is not a tag of the base image", c.ID)
		}
		answer[c.ID] = Point{c.X, c.Y}
	}

	alt := &p.Alternatives[i]
	alt.Media = &Media{Image: image}
	alt.ButtonLabel = strings.TrimSpace(f.ButtonLabel)
	alt.Answer = answer
	return nil
}

// SyncAlternatives makes every alternative carry exactly the base tags.
// Known coordinates are kept, missing ones get the default position. It
// returns how many alternatives changed.
func (p *ImageTagging) SyncAlternatives() int {
	changed := 0
	for i := range p.Alternatives {
		alt := &p.Alternatives[i]
		tags := append([]Tag{}, p.Tags...)
		answer := make(map[string]Point, len(p.Tags))
		for _, tag := range p.Tags {
			if pt, ok := alt.Answer[tag.ID]; ok {
				answer[tag.ID] = pt
			} else {
				answer[tag.ID] = newAlternativePoint
			}
		}
		if !reflect.DeepEqual(tags, alt.Tags) || !reflect.DeepEqual(answer, alt.Answer) {
			changed++
		}
		alt.Tags = tags
		alt.Answer = answer
	}
	return changed
}

// tagExtra returns the unmodelled keys of the base tag id
func (p *ImageTagging) tagExtra(id string) map[string]json.RawMessage {
	for _, tag := range p.Tags {
		if tag.ID == id {
			return tag.Extra
		}
	}
	return nil
}

func (p *ImageTagging) hasTag(id string) bool {
	for _, tag := range p.Tags {
		if tag.ID == id {
			return true
		}
	}
	return false
}
