package mooceditor

import (
	"fmt"
	"strconv"
	"strings"
)

// SequenceForm edits a sequence_audio question. Order is typed by the
// user as "[0, 1, 2]" or "0, 1, 2".
type SequenceForm struct {
	AudioOptions []AudioOption `json:"audio_options"`
	Order        string        `json:"order"`
}

func (*SequenceForm) FormType() Type { return TypeSequenceAudio }

// OrderPhraseForm edits an order_phrase question, one phrase per line
type OrderPhraseForm struct {
	Shuffled string `json:"phrase_shuffled"`
	Answer   string `json:"answer"`
}

func (*OrderPhraseForm) FormType() Type { return TypeOrderPhrase }

// ParseSequence reads a clip order written as a bracketed list or a
// comma separated list of integers. Anything else is ErrFormat.
func ParseSequence(text string) ([]int, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "[") || strings.HasSuffix(s, "]") {
		if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
			return nil, fmt.Errorf("%w: unbalanced brackets in %q", ErrFormat, text)
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
		if s == "" {
			return []int{}, nil
		}
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty sequence, use [0, 1, 2] or 0, 1, 2", ErrFormat)
	}
	fields := strings.Split(s, ",")
	order := make([]int, len(fields))
	for i, field := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer, use [0, 1, 2] or 0, 1, 2", ErrFormat, strings.TrimSpace(field))
		}
		order[i] = n
	}
	return order, nil
}

// FormatSequence writes an order the way ParseSequence reads it
func FormatSequence(order []int) string {
	parts := make([]string, len(order))
	for i, n := range order {
		parts[i] = strconv.Itoa(n)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (p *SequenceAudio) form(_ *Question) Form {
	return &SequenceForm{
		AudioOptions: append([]AudioOption{}, p.AudioOptions...),
		Order:        FormatSequence(p.Answer),
	}
}

func (p *SequenceAudio) apply(_ *Question, f Form) error {
	form, ok := f.(*SequenceForm)
	if !ok {
		return wrongForm(TypeSequenceAudio)
	}
	if len(form.AudioOptions) == 0 {
		return invalid("audio_options", "at least one clip is required")
	}
	opts := make([]AudioOption, len(form.AudioOptions))
	for i, o := range form.AudioOptions {
		label := strings.TrimSpace(o.Option)
		if label == "" {
			return invalid(fmt.Sprintf("audio_options[%d]", i), "clip label is empty")
		}
		opts[i] = AudioOption{Option: label, Audio: strings.TrimSpace(o.Audio), Extra: o.Extra}
	}
	order, err := ParseSequence(form.Order)
	if err != nil {
		return err
	}
	if err := checkPermutation(order, len(opts)); err != nil {
		return invalid("order", "%v", err)
	}
	p.AudioOptions = opts
	p.Answer = order
	return nil
}

// SetOrder parses text and stores it as the answer. On error the answer is unchanged.
func (p *SequenceAudio) SetOrder(text string) error {
	order, err := ParseSequence(text)
	if err != nil {
		return err
	}
	if err := checkPermutation(order, len(p.AudioOptions)); err != nil {
		return invalid("order", "%v", err)
	}
	p.Answer = order
	return nil
}

func (p *SequenceAudio) Lists() []string { return []string{"audio_options"} }

func (p *SequenceAudio) addItem(list string) error {
	if list != "audio_options" {
		return unknownList(TypeSequenceAudio, list)
	}
	p.AudioOptions = append(p.AudioOptions, AudioOption{Option: fmt.Sprintf("Sound %d", len(p.AudioOptions)+1)})
	p.Answer = append(p.Answer, len(p.AudioOptions)-1)
	return nil
}

func (p *SequenceAudio) deleteItem(list string, k int) error {
	if list != "audio_options" {
		return unknownList(TypeSequenceAudio, list)
	}
	if err := checkDelete(list, k, len(p.AudioOptions), 1); err != nil {
		return err
	}
	p.AudioOptions = removeAt(p.AudioOptions, k)
	p.Answer = dropIndex(p.Answer, k)
	return nil
}

func (p *OrderPhrase) form(_ *Question) Form {
	return &OrderPhraseForm{
		Shuffled: strings.Join(p.PhraseShuffled, "\n"),
		Answer:   strings.Join(p.Answer, "\n"),
	}
}

func (p *OrderPhrase) apply(_ *Question, f Form) error {
	form, ok := f.(*OrderPhraseForm)
	if !ok {
		return wrongForm(TypeOrderPhrase)
	}
	shuffled := splitLines(form.Shuffled)
	answer := splitLines(form.Answer)
	if len(answer) == 0 {
		return invalid("answer", "at least one phrase is required")
	}
	if !sameMultiset(shuffled, answer) {
		return invalid("phrase_shuffled", "must contain exactly the phrases of the answer")
	}
	p.PhraseShuffled = shuffled
	p.Answer = answer
	return nil
}

// splitLines returns the trimmed, non-empty lines of s
func splitLines(s string) []string {
	out := []string{}
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
