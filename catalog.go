package mooceditor

import "fmt"

// typeSpec is one catalog entry. template builds a new default every
// call, so no two questions ever share nested lists or maps.
type typeSpec struct {
	Type       Type
	Name       string
	Required   []string
	Optional   []string
	newPayload func() Payload
	template   func() *Question
}

var commonOptional = []string{"hint", "media", "lesson"}

// catalog lists every supported question type in the order the
// "add question" menu shows them.
var catalog = []typeSpec{
	{
		Type:       TypeListPick,
		Name:       "List Pick (Select Multiple)",
		Required:   []string{"type", "question", "options", "answer"},
		newPayload: func() Payload { return &ListPick{} },
		template: func() *Question {
			return &Question{
				Type: TypeListPick,
				Text: "Pick all the cute options you want! 💖",
				Payload: &ListPick{
					Options: []string{"Option 1", "Option 2", "Option 3"},
					Answer:  []int{0},
				},
			}
		},
	},
	{
		Type:       TypeMCQSingle,
		Name:       "Single Choice MCQ",
		Required:   []string{"type", "question", "options", "answer"},
		newPayload: func() Payload { return &MCQSingle{} },
		template: func() *Question {
			return &Question{
				Type: TypeMCQSingle,
				Text: "Choose the best answer, babe! 💕",
				Payload: &MCQSingle{
					Options: defaultImageOptions("Option A", "Option B", "Option C"),
					Answer:  []int{0},
				},
			}
		},
	},
	{
		Type:       TypeMCQMultiple,
		Name:       "Multiple Choice MCQ",
		Required:   []string{"type", "question", "options", "answer"},
		newPayload: func() Payload { return &MCQMultiple{} },
		template: func() *Question {
			return &Question{
				Type: TypeMCQMultiple,
				Text: "Pick all the right answers, sweetie! 💖",
				Payload: &MCQMultiple{
					Options: defaultImageOptions("Option A", "Option B", "Option C"),
					Answer:  []int{0, 1},
				},
			}
		},
	},
	{
		Type:       TypeWordFill,
		Name:       "Word Fill (Fill Blanks)",
		Required:   []string{"type", "question", "sentence_parts", "answers"},
		newPayload: func() Payload { return &WordFill{} },
		template: func() *Question {
			return &Question{
				Type: TypeWordFill,
				Text: "Fill in the cute blanks! 💕",
				Payload: &WordFill{
					SentenceParts: []string{"Fill this ", " with the perfect word ", " please!"},
					Answers:       []string{"blank", "darling"},
				},
			}
		},
	},
	{
		Type:       TypeMatchSentence,
		Name:       "Match Sentences to Images",
		Required:   []string{"type", "question", "pairs", "answer"},
		newPayload: func() Payload { return &MatchSentence{} },
		template: func() *Question {
			return &Question{
				Type: TypeMatchSentence,
				Text: "Match the adorable sentences with images! 💖",
				Payload: &MatchSentence{
					Pairs: []SentencePair{
						{Sentence: "Cute sentence 1", ImagePath: "image1.jpg"},
						{Sentence: "Sweet sentence 2", ImagePath: "image2.jpg"},
					},
					Answer: map[string]string{
						"image1.jpg": "Cute sentence 1",
						"image2.jpg": "Sweet sentence 2",
					},
				},
			}
		},
	},
	{
		Type:       TypeSequenceAudio,
		Name:       "Audio Sequence Order",
		Required:   []string{"type", "question", "audio_options", "answer"},
		newPayload: func() Payload { return &SequenceAudio{} },
		template: func() *Question {
			return &Question{
				Type:  TypeSequenceAudio,
				Text:  "Put these sweet sounds in order! 🎵",
				Media: &Media{Audio: "audio.mp3"},
				Payload: &SequenceAudio{
					AudioOptions: []AudioOption{
						{Option: "First lovely sound"},
						{Option: "Second amazing sound"},
					},
					Answer: []int{0, 1},
				},
			}
		},
	},
	{
		Type:       TypeOrderPhrase,
		Name:       "Order Phrases Correctly",
		Required:   []string{"type", "question", "phrase_shuffled", "answer"},
		newPayload: func() Payload { return &OrderPhrase{} },
		template: func() *Question {
			return &Question{
				Type: TypeOrderPhrase,
				Text: "Put these phrases in the right order, honey! 💕",
				Payload: &OrderPhrase{
					PhraseShuffled: []string{"Second phrase", "First phrase", "Third phrase"},
					Answer:         []string{"First phrase", "Second phrase", "Third phrase"},
				},
			}
		},
	},
	{
		Type:       TypeCategorization,
		Name:       "Categorization Multiple",
		Required:   []string{"type", "question", "stimuli", "categories", "answer"},
		newPayload: func() Payload { return &Categorization{} },
		template: func() *Question {
			return &Question{
				Type: TypeCategorization,
				Text: "Categorize these cute items! 📂",
				Payload: &Categorization{
					Categories: []string{CategoryPlaceholder, "Category A", "Category B"},
					Stimuli: []Stimulus{
						{Text: strPtr("Adorable Item 1")},
						{Text: strPtr("Sweet Item 2")},
					},
					Answer: map[string]string{
						"Adorable Item 1": "Category A",
						"Sweet Item 2":    "Category B",
					},
				},
			}
		},
	},
	{
		Type:       TypeDropdown,
		Name:       "Fill Blanks with Dropdowns",
		Required:   []string{"type", "question", "sentence_parts", "options_for_blanks", "answers"},
		newPayload: func() Payload { return &FillBlanksDropdown{} },
		template: func() *Question {
			return &Question{
				Type: TypeDropdown,
				Text: "Choose from the dropdowns, sweetie! ⬇️",
				Payload: &FillBlanksDropdown{
					SentenceParts: []string{"Choose ", " and then ", " from these cute dropdowns."},
					OptionsForBlanks: [][]string{
						{" ", "option1", "option2"},
						{" ", "choice1", "choice2"},
					},
					Answers: []string{"option1", "choice1"},
				},
			}
		},
	},
	{
		Type:       TypeMatchPhrases,
		Name:       "Match Phrase Beginnings to Endings",
		Required:   []string{"type", "question", "pairs", "answer"},
		newPayload: func() Payload { return &MatchPhrases{} },
		template: func() *Question {
			return &Question{
				Type: TypeMatchPhrases,
				Text: "Match the phrase beginnings with their perfect endings! 💖",
				Payload: &MatchPhrases{
					Pairs: []PhrasePair{{
						Source:  "Beginning of cute phrase 1...",
						Targets: []string{" ", "ending A", "ending B", "ending C"},
					}},
					Answer: map[string]string{"Beginning of cute phrase 1...": "ending A"},
				},
			}
		},
	},
	{
		Type:       TypeMultiQuestions,
		Name:       "Multi-Questions Block",
		Required:   []string{"type", "questions"},
		newPayload: func() Payload { return &MultiQuestions{} },
		template: func() *Question {
			return &Question{
				Type: TypeMultiQuestions,
				Payload: &MultiQuestions{Questions: []*Question{
					{
						Type: TypeMCQSingle,
						Text: "First cute question! 💖",
						Payload: &MCQSingle{
							Options: []Option{
								{Image: "image1.jpg", Text: "Option 1"},
								{Image: "image2.jpg", Text: "Option 2"},
							},
							Answer: []int{0},
						},
					},
					{
						Type: TypeMCQMultiple,
						Text: "Second adorable question! 💕",
						Payload: &MCQMultiple{
							Options: []Option{
								{Image: "image3.jpg", Text: "Choice A"},
								{Image: "image4.jpg", Text: "Choice B"},
							},
							Answer: []int{0, 1},
						},
					},
				}},
			}
		},
	},
	{
		Type:       TypeImageTagging,
		Name:       "Image Tagging (Drag & Drop)",
		Required:   []string{"type", "question", "media", "tags", "answer"},
		Optional:   []string{"button_label", "alternatives"},
		newPayload: func() Payload { return &ImageTagging{} },
		template: func() *Question {
			return &Question{
				Type:  TypeImageTagging,
				Text:  "Tag the cute image! 💖",
				Media: &Media{Image: "body.jpg"},
				Payload: &ImageTagging{
					ButtonLabel: "Alternative View",
					Tags: []Tag{
						{ID: "tag1", Label: "Tag 1"},
						{ID: "tag2", Label: "Tag 2"},
					},
					Answer: map[string]Point{
						"tag1": {100, 150},
						"tag2": {200, 250},
					},
					Alternatives: []Alternative{},
				},
			}
		},
	},
}

// CategoryPlaceholder is the blank first category shown as "not sorted yet".
const CategoryPlaceholder = " "

func defaultImageOptions(texts ...string) []Option {
	opts := make([]Option, len(texts))
	for i, t := range texts {
		opts[i] = Option{Image: fmt.Sprintf("image%d.jpg", i+1), Text: t}
	}
	return opts
}

func lookup(t Type) (*typeSpec, bool) {
	for i := range catalog {
		if catalog[i].Type == t {
			return &catalog[i], true
		}
	}
	return nil, false
}

// NewQuestion returns a fresh default question of type t.
func NewQuestion(t Type) (*Question, error) {
	entry, ok := lookup(t)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	q := entry.template()
	q.Payload.fillDefaults()
	return q, nil
}

// IsKnown reports whether t is a catalog type.
func IsKnown(t Type) bool {
	_, ok := lookup(t)
	return ok
}

// Types returns every catalog type in menu order.
func Types() []Type {
	out := make([]Type, len(catalog))
	for i, entry := range catalog {
		out[i] = entry.Type
	}
	return out
}

// DisplayName returns the menu caption of t, or the raw tag for unknown types.
func DisplayName(t Type) string {
	if entry, ok := lookup(t); ok {
		return entry.Name
	}
	return string(t)
}

// FieldsOf reports the required and optional keys of a question of type t.
func FieldsOf(t Type) (required, optional []string, err error) {
	entry, ok := lookup(t)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	required = append([]string(nil), entry.Required...)
	optional = append([]string(nil), entry.Optional...)
	for _, key := range commonOptional {
		if !contains(required, key) {
			optional = append(optional, key)
		}
	}
	return required, optional, nil
}

func newPayload(t Type) Payload {
	if entry, ok := lookup(t); ok {
		return entry.newPayload()
	}
	return nil
}
