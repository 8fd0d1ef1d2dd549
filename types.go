package mooceditor

import (
	"encoding/json"
	"fmt"
)

// Type is the discriminant of a question record ("type" key).
type Type string

const (
	TypeListPick       Type = "list_pick"
	TypeMCQSingle      Type = "mcq_single"
	TypeMCQMultiple    Type = "mcq_multiple"
	TypeWordFill       Type = "word_fill"
	TypeMatchSentence  Type = "match_sentence"
	TypeSequenceAudio  Type = "sequence_audio"
	TypeOrderPhrase    Type = "order_phrase"
	TypeCategorization Type = "categorization_multiple"
	TypeDropdown       Type = "fill_blanks_dropdown"
	TypeMatchPhrases   Type = "match_phrases"
	TypeMultiQuestions Type = "multi_questions"
	TypeImageTagging   Type = "image_tagging"
)

// Payload is the type-specific part of a question. The set of
// implementations is closed: see the catalog in catalog.go.
type Payload interface {
	Type() Type
	// fillDefaults replaces missing lists and maps with empty ones after decoding.
	fillDefaults()
	// form copies the payload into its editable form.
	form(q *Question) Form
	// apply validates f and, only when it is valid, writes it into q.
	apply(q *Question, f Form) error
}

// Media lists the optional media files shown with a question.
type Media struct {
	Video string                     `json:"video,omitempty"`
	Audio string                     `json:"audio,omitempty"`
	Image string                     `json:"image,omitempty"`
	Extra map[string]json.RawMessage `json:"-"`
}

func (m Media) MarshalJSON() ([]byte, error) {
	type media Media
	return encodeObject(media(m), m.Extra)
}

func (m *Media) UnmarshalJSON(data []byte) error {
	type media Media
	var known media
	extra, err := decodeObject(data, &known, "video", "audio", "image")
	if err != nil {
		return err
	}
	*m = Media(known)
	m.Extra = extra
	return nil
}

// IsZero reports whether no media path is set.
func (m *Media) IsZero() bool {
	return m == nil || (m.Video == "" && m.Audio == "" && m.Image == "")
}

// Lesson references a PDF lesson attached to a question.
type Lesson struct {
	PDF   string                     `json:"pdf"`
	Extra map[string]json.RawMessage `json:"-"`
}

func (l Lesson) MarshalJSON() ([]byte, error) {
	type lesson Lesson
	return encodeObject(lesson(l), l.Extra)
}

func (l *Lesson) UnmarshalJSON(data []byte) error {
	type lesson Lesson
	var known lesson
	extra, err := decodeObject(data, &known, "pdf")
	if err != nil {
		return err
	}
	*l = Lesson(known)
	l.Extra = extra
	return nil
}

// Option is one answer choice of an mcq question; text, image or both.
// Keys such as correct or feedback that other editors write are kept in Extra.
type Option struct {
	Image string                     `json:"image"`
	Text  string                     `json:"text"`
	Extra map[string]json.RawMessage `json:"-"`
}

func (o Option) MarshalJSON() ([]byte, error) {
	type option Option
	return encodeObject(option(o), o.Extra)
}

// UnmarshalJSON accepts both the object form and a bare string, which
// older documents use for text-only options.
func (o *Option) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*o = Option{Text: text}
		return nil
	}
	type option Option
	var known option
	extra, err := decodeObject(data, &known, "image", "text")
	if err != nil {
		return fmt.Errorf("option must be a string or an object: %w", err)
	}
	*o = Option(known)
	o.Extra = extra
	return nil
}

// Point is an [x, y] pixel coordinate.
type Point [2]float64

// ListPick lets the player pick every correct entry of a plain string list.
type ListPick struct {
	Options []string `json:"options"`
	Answer  []int    `json:"answer"`
}

// MCQSingle is a single-answer multiple-choice question.
type MCQSingle struct {
	Options []Option `json:"options"`
	Answer  []int    `json:"answer"`
}

// MCQMultiple is a multiple-answer multiple-choice question.
type MCQMultiple struct {
	Options []Option `json:"options"`
	Answer  []int    `json:"answer"`
}

// WordFill blanks sit between consecutive sentence parts.
type WordFill struct {
	SentenceParts []string `json:"sentence_parts"`
	Answers       []string `json:"answers"`
}

// FillBlanksDropdown is a WordFill whose blanks are closed selections.
type FillBlanksDropdown struct {
	SentenceParts    []string   `json:"sentence_parts"`
	OptionsForBlanks [][]string `json:"options_for_blanks"`
	Answers          []string   `json:"answers"`
}

type SentencePair struct {
	Sentence  string                     `json:"sentence"`
	ImagePath string                     `json:"image_path"`
	Extra     map[string]json.RawMessage `json:"-"`
}

func (sp SentencePair) MarshalJSON() ([]byte, error) {
	type pair SentencePair
	return encodeObject(pair(sp), sp.Extra)
}

func (sp *SentencePair) UnmarshalJSON(data []byte) error {
	type pair SentencePair
	var known pair
	extra, err := decodeObject(data, &known, "sentence", "image_path")
	if err != nil {
		return err
	}
	*sp = SentencePair(known)
	sp.Extra = extra
	return nil
}

// MatchSentence matches sentences to images. Answer maps image_path to sentence.
type MatchSentence struct {
	Pairs  []SentencePair    `json:"pairs"`
	Answer map[string]string `json:"answer"`
}

type PhrasePair struct {
	Source  string                     `json:"source"`
	Targets []string                   `json:"targets"`
	Extra   map[string]json.RawMessage `json:"-"`
}

func (pp PhrasePair) MarshalJSON() ([]byte, error) {
	type pair PhrasePair
	return encodeObject(pair(pp), pp.Extra)
}

func (pp *PhrasePair) UnmarshalJSON(data []byte) error {
	type pair PhrasePair
	var known pair
	extra, err := decodeObject(data, &known, "source", "targets")
	if err != nil {
		return err
	}
	*pp = PhrasePair(known)
	pp.Extra = extra
	return nil
}

// MatchPhrases matches phrase beginnings to endings. Answer maps source to target.
type MatchPhrases struct {
	Pairs  []PhrasePair      `json:"pairs"`
	Answer map[string]string `json:"answer"`
}

type AudioOption struct {
	Option string                     `json:"option"`
	Audio  string                     `json:"audio,omitempty"`
	Extra  map[string]json.RawMessage `json:"-"`
}

func (ao AudioOption) MarshalJSON() ([]byte, error) {
	type option AudioOption
	return encodeObject(option(ao), ao.Extra)
}

func (ao *AudioOption) UnmarshalJSON(data []byte) error {
	type option AudioOption
	var known option
	extra, err := decodeObject(data, &known, "option", "audio")
	if err != nil {
		return err
	}
	*ao = AudioOption(known)
	ao.Extra = extra
	return nil
}

// SequenceAudio asks for the order of audio clips; Answer is a permutation of clip indices.
type SequenceAudio struct {
	AudioOptions []AudioOption `json:"audio_options"`
	Answer       []int         `json:"answer"`
}

// OrderPhrase asks to reorder PhraseShuffled into Answer.
type OrderPhrase struct {
	PhraseShuffled []string `json:"phrase_shuffled"`
	Answer         []string `json:"answer"`
}

// Stimulus is an item to sort into a category. Both keys are always
// written, null when unset.
type Stimulus struct {
	Text  *string                    `json:"text"`
	Image *string                    `json:"image"`
	Extra map[string]json.RawMessage `json:"-"`
}

func (st Stimulus) MarshalJSON() ([]byte, error) {
	type stimulus Stimulus
	return encodeObject(stimulus(st), st.Extra)
}

func (st *Stimulus) UnmarshalJSON(data []byte) error {
	type stimulus Stimulus
	var known stimulus
	extra, err := decodeObject(data, &known, "text", "image")
	if err != nil {
		return err
	}
	*st = Stimulus(known)
	st.Extra = extra
	return nil
}

// Categorization sorts stimuli into categories. Answer maps StimulusKey to category.
type Categorization struct {
	Categories []string          `json:"categories"`
	Stimuli    []Stimulus        `json:"stimuli"`
	Answer     map[string]string `json:"answer"`
}

type Tag struct {
	ID    string                     `json:"id"`
	Label string                     `json:"label"`
	Extra map[string]json.RawMessage `json:"-"`
}

func (t Tag) MarshalJSON() ([]byte, error) {
	type tag Tag
	return encodeObject(tag(t), t.Extra)
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	type tag Tag
	var known tag
	extra, err := decodeObject(data, &known, "id", "label")
	if err != nil {
		return err
	}
	*t = Tag(known)
	t.Extra = extra
	return nil
}

// Alternative is another image on which the same tags are placed.
type Alternative struct {
	Media       *Media                     `json:"media"`
	ButtonLabel string                     `json:"button_label"`
	Tags        []Tag                      `json:"tags"`
	Answer      map[string]Point           `json:"answer"`
	Extra       map[string]json.RawMessage `json:"-"`
}

func (a Alternative) MarshalJSON() ([]byte, error) {
	type alternative Alternative
	return encodeObject(alternative(a), a.Extra)
}

func (a *Alternative) UnmarshalJSON(data []byte) error {
	type alternative Alternative
	var known alternative
	extra, err := decodeObject(data, &known, "media", "button_label", "tags", "answer")
	if err != nil {
		return err
	}
	*a = Alternative(known)
	a.Extra = extra
	return nil
}

// ImageTagging places tags on the question's media image. Answer maps tag id to coordinates.
type ImageTagging struct {
	ButtonLabel  string           `json:"button_label"`
	Tags         []Tag            `json:"tags"`
	Answer       map[string]Point `json:"answer"`
	Alternatives []Alternative    `json:"alternatives"`
}

// MultiQuestions groups nested questions into one block.
type MultiQuestions struct {
	Questions []*Question `json:"questions"`
}

func (*ListPick) Type() Type           { return TypeListPick }
func (*MCQSingle) Type() Type          { return TypeMCQSingle }
func (*MCQMultiple) Type() Type        { return TypeMCQMultiple }
func (*WordFill) Type() Type           { return TypeWordFill }
func (*FillBlanksDropdown) Type() Type { return TypeDropdown }
func (*MatchSentence) Type() Type      { return TypeMatchSentence }
func (*MatchPhrases) Type() Type       { return TypeMatchPhrases }
func (*SequenceAudio) Type() Type      { return TypeSequenceAudio }
func (*OrderPhrase) Type() Type        { return TypeOrderPhrase }
func (*Categorization) Type() Type     { return TypeCategorization }
func (*ImageTagging) Type() Type       { return TypeImageTagging }
func (*MultiQuestions) Type() Type     { return TypeMultiQuestions }

func (p *ListPick) fillDefaults() {
	p.Options = nonNilStrings(p.Options)
	p.Answer = nonNilInts(p.Answer)
}

func (p *MCQSingle) fillDefaults() {
	if p.Options == nil {
		p.Options = []Option{}
	}
	p.Answer = nonNilInts(p.Answer)
}

func (p *MCQMultiple) fillDefaults() {
	if p.Options == nil {
		p.Options = []Option{}
	}
	p.Answer = nonNilInts(p.Answer)
}

func (p *WordFill) fillDefaults() {
	p.SentenceParts = nonNilStrings(p.SentenceParts)
	p.Answers = nonNilStrings(p.Answers)
}

func (p *FillBlanksDropdown) fillDefaults() {
	p.SentenceParts = nonNilStrings(p.SentenceParts)
	p.Answers = nonNilStrings(p.Answers)
	if p.OptionsForBlanks == nil {
		p.OptionsForBlanks = [][]string{}
	}
	for i := range p.OptionsForBlanks {
		p.OptionsForBlanks[i] = nonNilStrings(p.OptionsForBlanks[i])
	}
}

func (p *MatchSentence) fillDefaults() {
	if p.Pairs == nil {
		p.Pairs = []SentencePair{}
	}
	if p.Answer == nil {
		p.Answer = map[string]string{}
	}
}

func (p *MatchPhrases) fillDefaults() {
	if p.Pairs == nil {
		p.Pairs = []PhrasePair{}
	}
	for i := range p.Pairs {
		p.Pairs[i].Targets = nonNilStrings(p.Pairs[i].Targets)
	}
	if p.Answer == nil {
		p.Answer = map[string]string{}
	}
}

func (p *SequenceAudio) fillDefaults() {
	if p.AudioOptions == nil {
		p.AudioOptions = []AudioOption{}
	}
	p.Answer = nonNilInts(p.Answer)
}

func (p *OrderPhrase) fillDefaults() {
	p.PhraseShuffled = nonNilStrings(p.PhraseShuffled)
	p.Answer = nonNilStrings(p.Answer)
}

func (p *Categorization) fillDefaults() {
	p.Categories = nonNilStrings(p.Categories)
	if p.Stimuli == nil {
		p.Stimuli = []Stimulus{}
	}
	if p.Answer == nil {
		p.Answer = map[string]string{}
	}
}

func (p *ImageTagging) fillDefaults() {
	if p.Tags == nil {
		p.Tags = []Tag{}
	}
	if p.Answer == nil {
		p.Answer = map[string]Point{}
	}
	if p.Alternatives == nil {
		p.Alternatives = []Alternative{}
	}
	for i := range p.Alternatives {
		alt := &p.Alternatives[i]
		if alt.Tags == nil {
			alt.Tags = []Tag{}
		}
		if alt.Answer == nil {
			alt.Answer = map[string]Point{}
		}
	}
}

func (p *MultiQuestions) fillDefaults() {
	if p.Questions == nil {
		p.Questions = []*Question{}
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilInts(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}

func strPtr(s string) *string { return &s }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
