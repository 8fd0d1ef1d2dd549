package mooceditor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Labels the generation prompts use for each question format. A request
// may name a format by this label or by its document type tag.
var aiLabels = []struct {
	Label string
	Type  Type
}{
	{"MCQ Single Choice", TypeMCQSingle},
	{"MCQ Multiple Choice", TypeMCQMultiple},
	{"Fill in the Blanks", TypeWordFill},
	{"Fill in the Blanks (Dropdown)", TypeDropdown},
	{"Order the Phrase", TypeOrderPhrase},
	{"Categorization", TypeCategorization},
	{"Match Phrases", TypeMatchPhrases},
	{"List Pick", TypeListPick},
}

const (
	// SelfTagged asks the model to tag every item with its own q_type.
	SelfTagged = "All"

	aiHint = "Basé sur le texte que tu as fourni, ma chérie!"
)

var (
	defaultSingleDistractors   = []string{"A", "B", "C"}
	defaultMultipleDistractors = []string{"D", "E"}
)

// Item is one generic object returned by the model, before mapping.
type Item map[string]interface{}

// Suggestion is an item that mapped cleanly onto a question.
type Suggestion struct {
	Index    int       `json:"index"`
	Summary  string    `json:"summary"`
	Question *Question `json:"question"`
}

// Failure is an item that was dropped, with the reason why.
type Failure struct {
	Index  int    `json:"index"`
	Tag    string `json:"tag"`
	Reason string `json:"reason"`
}

// NormalizeResult holds every item of one model response, split into
// those that mapped and those that did not.
type NormalizeResult struct {
	Total       int          `json:"total"`
	Suggestions []Suggestion `json:"suggestions"`
	Failures    []Failure    `json:"failures"`
}

// Questions returns the mapped questions in response order.
func (r *NormalizeResult) Questions() []*Question {
	out := make([]*Question, len(r.Suggestions))
	for i, s := range r.Suggestions {
		out[i] = s.Question
	}
	return out
}

// Normalizer turns raw model output into questions. Option order of
// choice questions is shuffled with its own source so tests can seed it.
// A Normalizer may be shared by concurrent callers.
type Normalizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewNormalizer() *Normalizer {
	return NewSeededNormalizer(time.Now().UnixNano())
}

func NewSeededNormalizer(seed int64) *Normalizer {
	return &Normalizer{rng: rand.New(rand.NewSource(seed))}
}

func (n *Normalizer) shuffle(options []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
}

// ResolveLabel maps a requested label to a question type. selfTag is true
// for "All" and its "All-<n>" variants, in which case t is empty.
func ResolveLabel(label string) (t Type, selfTag bool, err error) {
	label = strings.TrimSpace(label)
	if strings.EqualFold(label, SelfTagged) || strings.HasPrefix(strings.ToLower(label), "all-") {
		return "", true, nil
	}
	for _, l := range aiLabels {
		if strings.EqualFold(l.Label, label) {
			return l.Type, false, nil
		}
	}
	if IsKnown(Type(label)) {
		return Type(label), false, nil
	}
	return "", false, fmt.Errorf("%w: %q", ErrUnknownType, label)
}

// AILabel returns the prompt label of t, or the tag itself when the model
// is never asked for that type.
func AILabel(t Type) string {
	for _, l := range aiLabels {
		if l.Type == t {
			return l.Label
		}
	}
	return string(t)
}

// ParseItems extracts the generic items from raw model text. The trimmed
// text is parsed first; only if that fails is the content of the first
// ```json fence tried. A single object is read as a one-item list.
func ParseItems(raw string) ([]Item, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, newParseError("model response", errors.New("response is empty"))
	}
	items, err := decodeItems(text)
	if err == nil {
		return items, nil
	}
	fenced, ok := fencedJSON(text)
	if !ok {
		return nil, newParseError("model response", err)
	}
	items, ferr := decodeItems(fenced)
	if ferr != nil {
		return nil, newParseError("fenced model response", ferr)
	}
	VerboseLog("Parsed model response from its json fence")
	return items, nil
}

func decodeItems(text string) ([]Item, error) {
	var value interface{}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after the JSON value")
	}
	switch v := value.(type) {
	case map[string]interface{}:
		return []Item{v}, nil
	case []interface{}:
		items := make([]Item, 0, len(v))
		for _, el := range v {
			obj, _ := el.(map[string]interface{})
			// non-objects stay in place as nil items so indices match the response
			items = append(items, obj)
		}
		return items, nil
	}
	return nil, errors.New("response is neither an object nor an array")
}

// fencedJSON returns the text between the first ```json marker and the
// next closing fence.
func fencedJSON(text string) (string, bool) {
	lower := strings.ToLower(text)
	start := strings.Index(lower, "```json")
	if start < 0 {
		return "", false
	}
	rest := text[start+len("```json"):]
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}

// Normalize parses raw and maps every item. requested is a type tag, a
// prompt label or SelfTagged. Items that cannot be mapped are reported in
// Failures and do not stop the batch.
func (n *Normalizer) Normalize(raw, requested string) (*NormalizeResult, error) {
	stamp, selfTag, err := ResolveLabel(requested)
	if err != nil {
		return nil, err
	}
	items, err := ParseItems(raw)
	if err != nil {
		return nil, err
	}

	res := &NormalizeResult{Total: len(items), Suggestions: []Suggestion{}, Failures: []Failure{}}
	for i, item := range items {
		if item == nil {
			res.Failures = append(res.Failures, Failure{Index: i, Reason: "item is not a JSON object"})
			continue
		}
		if !selfTag {
			item["q_type"] = AILabel(stamp)
		}
		tag, _ := item["q_type"].(string)
		q, err := n.MapItem(item)
		if err != nil {
			VerboseLog("Dropped model item %d (%s): %v", i, tag, err)
			res.Failures = append(res.Failures, Failure{Index: i, Tag: tag, Reason: err.Error()})
			continue
		}
		res.Suggestions = append(res.Suggestions, Suggestion{Index: i, Summary: Summary(item), Question: q})
	}
	return res, nil
}

// MapItem converts one tagged item into a question of its q_type.
func (n *Normalizer) MapItem(item Item) (*Question, error) {
	tag, _ := item["q_type"].(string)
	if tag == "" {
		return nil, errors.New("item has no q_type")
	}
	t, selfTag, err := ResolveLabel(tag)
	if err != nil {
		return nil, err
	}
	if selfTag {
		return nil, fmt.Errorf("%q is not a question format", tag)
	}

	switch t {
	case TypeMCQSingle:
		return n.mapSingle(item)
	case TypeMCQMultiple:
		return n.mapMultiple(item)
	case TypeListPick:
		return mapListPick(item)
	case TypeWordFill:
		return mapWordFill(item)
	case TypeDropdown:
		return mapDropdown(item)
	case TypeOrderPhrase:
		return mapOrderPhrase(item)
	case TypeCategorization:
		return mapCategorization(item)
	case TypeMatchPhrases:
		return mapMatchPhrases(item)
	}
	return nil, fmt.Errorf("%s questions cannot be generated", t)
}

func (n *Normalizer) mapSingle(item Item) (*Question, error) {
	text := item.stringOr("", "question")
	correct, err := item.requiredString("réponse", "reponse", "answer")
	if err != nil {
		return nil, err
	}
	distractors, ok, err := item.strings("distracteurs", "distractors")
	if err != nil {
		return nil, err
	}
	if !ok {
		distractors = defaultSingleDistractors
	}

	options := distinctOptions([]string{correct}, distractors)
	if len(options) < minOptions {
		return nil, errors.New("no distractor differs from the answer")
	}
	n.shuffle(options)
	answer := indexOf(options, correct)
	return &Question{
		Type:    TypeMCQSingle,
		Text:    text,
		Hint:    aiHint,
		Payload: &MCQSingle{Options: textOptions(options), Answer: []int{answer}},
	}, nil
}

func (n *Normalizer) mapMultiple(item Item) (*Question, error) {
	text := item.stringOr("", "question")
	correct, err := item.requiredStrings("réponses", "reponses", "answers")
	if err != nil {
		return nil, err
	}
	if len(correct) == 0 {
		return nil, errors.New("no correct answers given")
	}
	distractors, ok, err := item.strings("distracteurs", "distractors")
	if err != nil {
		return nil, err
	}
	if !ok {
		distractors = defaultMultipleDistractors
	}

	// a value listed as both correct and distractor counts as correct
	options := distinctOptions(correct, distractors)
	if len(options) < minOptions {
		return nil, errors.New("fewer than two distinct options")
	}
	n.shuffle(options)
	return &Question{
		Type:    TypeMCQMultiple,
		Text:    text,
		Hint:    aiHint,
		Payload: &MCQMultiple{Options: textOptions(options), Answer: indicesOf(options, correct)},
	}, nil
}

func mapListPick(item Item) (*Question, error) {
	options, err := item.requiredStrings("options")
	if err != nil {
		return nil, err
	}
	correct, _, err := item.strings("réponses", "reponses", "answers")
	if err != nil {
		return nil, err
	}
	return &Question{
		Type:    TypeListPick,
		Text:    item.stringOr("Sélectionne toutes les bonnes réponses.", "question"),
		Payload: &ListPick{Options: options, Answer: indicesOf(options, correct)},
	}, nil
}

func mapWordFill(item Item) (*Question, error) {
	parts, err := item.requiredStrings("sentence_parts")
	if err != nil {
		return nil, err
	}
	answers, err := item.requiredStrings("answers", "réponses", "reponses")
	if err != nil {
		return nil, err
	}
	if len(answers) != len(parts)-1 {
		return nil, fmt.Errorf("%d sentence parts need %d answers, got %d", len(parts), len(parts)-1, len(answers))
	}
	return &Question{
		Type:    TypeWordFill,
		Text:    "Remplis les blancs, ma chérie!",
		Payload: &WordFill{SentenceParts: parts, Answers: answers},
	}, nil
}

func mapDropdown(item Item) (*Question, error) {
	parts, err := item.requiredStrings("sentence_parts")
	if err != nil {
		return nil, err
	}
	answers, err := item.requiredStrings("answers", "réponses", "reponses")
	if err != nil {
		return nil, err
	}
	raw, ok := item["options_for_blanks"].([]interface{})
	if !ok {
		return nil, errors.New("options_for_blanks must be a list of lists")
	}
	options := make([][]string, len(raw))
	for i, el := range raw {
		list, err := toStrings(el)
		if err != nil {
			return nil, fmt.Errorf("options_for_blanks[%d]: %w", i, err)
		}
		options[i] = list
	}
	blanks := len(parts) - 1
	if len(answers) != blanks || len(options) != blanks {
		return nil, fmt.Errorf("%d sentence parts need %d blanks, got %d answers and %d option lists",
			len(parts), blanks, len(answers), len(options))
	}
	for i, a := range answers {
		if !contains(options[i], a) {
			return nil, fmt.Errorf("answer %q is not an option of blank %d", a, i)
		}
	}
	return &Question{
		Type:    TypeDropdown,
		Text:    "Choisis la bonne option dans les menus déroulants.",
		Payload: &FillBlanksDropdown{SentenceParts: parts, OptionsForBlanks: options, Answers: answers},
	}, nil
}

func mapOrderPhrase(item Item) (*Question, error) {
	answer, err := item.requiredStrings("réponse", "reponse", "answer")
	if err != nil {
		return nil, err
	}
	shuffled, err := item.requiredStrings("phrase_shuffled")
	if err != nil {
		return nil, err
	}
	if !sameMultiset(shuffled, answer) {
		return nil, errors.New("phrase_shuffled is not a reordering of the answer")
	}
	return &Question{
		Type:    TypeOrderPhrase,
		Text:    item.stringOr("Mets les mots dans le bon ordre.", "question"),
		Payload: &OrderPhrase{PhraseShuffled: shuffled, Answer: answer},
	}, nil
}

func mapCategorization(item Item) (*Question, error) {
	categories, _, err := item.strings("categories")
	if err != nil {
		return nil, err
	}
	rawStimuli, _ := item["stimuli"].([]interface{})
	stimuli := make([]Stimulus, 0, len(rawStimuli))
	for i, el := range rawStimuli {
		switch v := el.(type) {
		case string:
			stimuli = append(stimuli, Stimulus{Text: strPtr(v)})
		case map[string]interface{}:
			var st Stimulus
			if s, ok := v["text"].(string); ok && s != "" {
				st.Text = strPtr(s)
			}
			if s, ok := v["image"].(string); ok && s != "" {
				st.Image = strPtr(s)
			}
			stimuli = append(stimuli, st)
		default:
			return nil, fmt.Errorf("stimuli[%d] must be a string or an object", i)
		}
	}
	keys := map[string]bool{}
	for i, st := range stimuli {
		key := StimulusKey(st)
		if key == "" {
			return nil, fmt.Errorf("stimuli[%d] has neither text nor image", i)
		}
		if keys[key] {
			return nil, fmt.Errorf("stimuli[%d] repeats %q", i, key)
		}
		keys[key] = true
	}
	answer := map[string]string{}
	if m, ok := item["answer"].(map[string]interface{}); ok {
		for k, v := range m {
			if !keys[k] {
				return nil, fmt.Errorf("answer[%q] is not one of the stimuli", k)
			}
			s, err := toString(v)
			if err != nil {
				return nil, fmt.Errorf("answer[%q]: %w", k, err)
			}
			if !contains(categories, s) {
				return nil, fmt.Errorf("answer[%q]: %q is not one of the categories", k, s)
			}
			answer[k] = s
		}
	}
	return &Question{
		Type: TypeCategorization,
		Text: item.stringOr("Classe ces éléments dans les bonnes catégories.", "question"),
		Payload: &Categorization{
			Categories: append([]string{CategoryPlaceholder}, categories...),
			Stimuli:    stimuli,
			Answer:     answer,
		},
	}, nil
}

func mapMatchPhrases(item Item) (*Question, error) {
	rawPairs, _ := item["pairs"].([]interface{})
	pairs := make([]PhrasePair, 0, len(rawPairs))
	for i, el := range rawPairs {
		obj, ok := el.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("pairs[%d] must be an object", i)
		}
		source, err := Item(obj).requiredString("source")
		if err != nil {
			return nil, fmt.Errorf("pairs[%d]: %w", i, err)
		}
		targets, _, err := Item(obj).strings("targets")
		if err != nil {
			return nil, fmt.Errorf("pairs[%d]: %w", i, err)
		}
		pairs = append(pairs, PhrasePair{Source: source, Targets: nonNilStrings(targets)})
	}
	answer := map[string]string{}
	if m, ok := item["answer"].(map[string]interface{}); ok {
		for k, v := range m {
			s, err := toString(v)
			if err != nil {
				return nil, fmt.Errorf("answer[%q]: %w", k, err)
			}
			answer[k] = s
		}
	}
	return &Question{
		Type:    TypeMatchPhrases,
		Text:    item.stringOr("Associe le début de chaque phrase avec la fin correcte.", "question"),
		Payload: &MatchPhrases{Pairs: pairs, Answer: answer},
	}, nil
}

// Summary is the short preview of an item shown before it is accepted.
func Summary(item Item) string {
	tag, _ := item["q_type"].(string)
	t, _, err := ResolveLabel(tag)
	if err != nil || t == "" {
		return fmt.Sprintf("Unsupported question type: %s", tag)
	}
	q := item.stringOr("N/A", "question")
	switch t {
	case TypeMCQSingle:
		return fmt.Sprintf("Q: %s\nA: %s", q, item.stringOr("N/A", "réponse", "reponse", "answer"))
	case TypeMCQMultiple:
		return fmt.Sprintf("Q: %s\nA: %s", q, item.joined("N/A", "réponses", "reponses", "answers"))
	case TypeWordFill:
		answer := "N/A"
		if answers, ok, _ := item.strings("answers"); ok && len(answers) > 0 {
			answer = answers[0]
		}
		return fmt.Sprintf("Fill in the blank:\n%s\nAnswer: %s", item.blanked(), answer)
	case TypeDropdown:
		return fmt.Sprintf("Fill with dropdown:\n%s\nAnswers: %s", item.blanked(), item.joined("", "answers"))
	case TypeOrderPhrase:
		words, _, _ := item.strings("réponse", "reponse", "answer")
		return fmt.Sprintf("Order the phrase:\n%s", strings.Join(words, " "))
	case TypeCategorization:
		stimuli := []string{}
		raw, _ := item["stimuli"].([]interface{})
		for _, el := range raw {
			if s, err := toString(el); err == nil {
				stimuli = append(stimuli, s)
			}
		}
		return fmt.Sprintf("Q: %s\nCategories: %s\nItems: %s", q, item.joined("", "categories"), strings.Join(stimuli, ", "))
	case TypeMatchPhrases:
		pairs, _ := item["pairs"].([]interface{})
		return fmt.Sprintf("Q: %s\n(%d pairs to match)", q, len(pairs))
	case TypeListPick:
		return fmt.Sprintf("Q: %s\nCorrect answers: %s", q, item.joined("", "réponses", "reponses", "answers"))
	}
	return fmt.Sprintf("Unsupported question type: %s", tag)
}

func (it Item) lookup(keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := it[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (it Item) requiredString(keys ...string) (string, error) {
	v, ok := it.lookup(keys...)
	if !ok {
		return "", fmt.Errorf("missing %q", keys[0])
	}
	s, err := toString(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", keys[0], err)
	}
	return s, nil
}

func (it Item) stringOr(def string, keys ...string) string {
	if s, err := it.requiredString(keys...); err == nil && strings.TrimSpace(s) != "" {
		return s
	}
	return def
}

func (it Item) strings(keys ...string) ([]string, bool, error) {
	v, ok := it.lookup(keys...)
	if !ok {
		return nil, false, nil
	}
	list, err := toStrings(v)
	if err != nil {
		return nil, true, fmt.Errorf("%s: %w", keys[0], err)
	}
	return list, true, nil
}

func (it Item) requiredStrings(keys ...string) ([]string, error) {
	list, ok, err := it.strings(keys...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("missing %q", keys[0])
	}
	return list, nil
}

func (it Item) joined(def string, keys ...string) string {
	list, ok, err := it.strings(keys...)
	if !ok || err != nil {
		return def
	}
	return strings.Join(list, ", ")
}

func (it Item) blanked() string {
	parts, _, _ := it.strings("sentence_parts")
	return strings.Join(parts, " [___] ")
}

// MarshalJSON writes the item with sorted keys and literal UTF-8.
func (it Item) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(it))
	for k := range it {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := encodeJSON(k)
		if err != nil {
			return nil, err
		}
		vb, err := encodeJSON(it[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func toString(v interface{}) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case json.Number:
		return s.String(), nil
	case bool:
		return strconv.FormatBool(s), nil
	}
	return "", fmt.Errorf("expected a string, got %T", v)
}

func toStrings(v interface{}) ([]string, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]string, len(list))
	for i, el := range list {
		s, err := toString(el)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

func textOptions(texts []string) []Option {
	out := make([]Option, len(texts))
	for i, t := range texts {
		out[i] = Option{Text: t}
	}
	return out
}

// distinctOptions returns correct then distractors with repeats removed,
// keeping the first occurrence of each value.
func distinctOptions(correct, distractors []string) []string {
	out := make([]string, 0, len(correct)+len(distractors))
	for _, v := range append(append([]string{}, correct...), distractors...) {
		if !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func indicesOf(list, wanted []string) []int {
	out := []int{}
	for i, v := range list {
		if contains(wanted, v) {
			out = append(out, i)
		}
	}
	return out
}
