package mooceditor

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
)

func optionTexts(opts []Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Text
	}
	return out
}

// TestNormalizeSingleChoice verifies the correct answer is located after the shuffle.
func TestNormalizeSingleChoice(t *testing.T) {
	raw := `{"réponse": "Paris", "distracteurs": ["Lyon","Nice","Caen"]}`
	for seed := int64(0); seed < 20; seed++ {
		res, err := NewSeededNormalizer(seed).Normalize(raw, string(TypeMCQSingle))
		if err != nil {
			t.Fatalf("failed to normalize: %v", err)
		}
		if len(res.Suggestions) != 1 || len(res.Failures) != 0 {
			t.Fatalf("expected one suggestion, got %+v", res)
		}
		q := res.Suggestions[0].Question
		if q.Type != TypeMCQSingle {
			t.Fatalf("expected mcq_single, got %s", q.Type)
		}
		p := q.Payload.(*MCQSingle)
		texts := optionTexts(p.Options)
		sorted := append([]string{}, texts...)
		sort.Strings(sorted)
		if !reflect.DeepEqual(sorted, []string{"Caen", "Lyon", "Nice", "Paris"}) {
			t.Fatalf("expected a permutation of the four strings, got %v", texts)
		}
		if len(p.Answer) != 1 || texts[p.Answer[0]] != "Paris" {
			t.Fatalf("expected answer to point at Paris, got %v in %v", p.Answer, texts)
		}
		if q.Hint == "" {
			t.Fatalf("expected the generated hint")
		}
	}
}

func TestNormalizeSingleChoiceDefaultDistractors(t *testing.T) {
	res, err := NewSeededNormalizer(1).Normalize(`[{"question":"Capitale ?","réponse":"Paris"}]`, "MCQ Single Choice")
	if err != nil {
		t.Fatalf("failed to normalize: %v", err)
	}
	p := res.Suggestions[0].Question.Payload.(*MCQSingle)
	if len(p.Options) != 4 {
		t.Fatalf("expected correct answer plus three default distractors, got %v", p.Options)
	}
	if got := res.Suggestions[0].Summary; got != "Q: Capitale ?\nA: Paris" {
		t.Fatalf("unexpected summary %q", got)
	}
}

// TestNormalizeFencedListPick verifies the fence fallback after a failed raw parse.
func TestNormalizeFencedListPick(t *testing.T) {
	raw := "```json\n[{\"q_type\":\"List Pick\",\"question\":\"Pick fruits\",\"options\":[\"Apple\",\"Car\",\"Pear\"],\"réponses\":[\"Apple\",\"Pear\"]}]\n```"
	res, err := NewNormalizer().Normalize(raw, SelfTagged)
	if err != nil {
		t.Fatalf("failed to normalize: %v", err)
	}
	if len(res.Suggestions) != 1 {
		t.Fatalf("expected one suggestion, got %+v", res)
	}
	q := res.Suggestions[0].Question
	if q.Type != TypeListPick {
		t.Fatalf("expected list_pick, got %s", q.Type)
	}
	p := q.Payload.(*ListPick)
	if !reflect.DeepEqual(p.Answer, []int{0, 2}) {
		t.Fatalf("expected answer [0 2], got %v", p.Answer)
	}
	if q.Text != "Pick fruits" {
		t.Fatalf("unexpected prompt %q", q.Text)
	}
}

func TestParseItems(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"array", `[{"a":1},{"b":2}]`, 2, false},
		{"single object", `  {"a":1}  `, 1, false},
		{"fence with prose", "Voici:\n```JSON\n[{\"a\":1}]\n```\nBonne chance", 1, false},
		{"raw wins over fence", `[{"a":"` + "```json [1,2,3] ```" + `"}]`, 1, false},
		{"non-object entries kept in place", `[{"a":1}, 2, "x"]`, 3, false},
		{"empty", "   ", 0, true},
		{"no json at all", "désolé, je ne peux pas", 0, true},
		{"broken fence", "```json\n[{\"a\":\n```", 0, true},
		{"scalar", `42`, 0, true},
	}
	for _, tt := range tests {
		items, err := ParseItems(tt.raw)
		if tt.wantErr {
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("%s: expected ParseError, got %v", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
			continue
		}
		if len(items) != tt.want {
			t.Errorf("%s: expected %d items, got %d", tt.name, tt.want, len(items))
		}
	}
}

// TestNormalizeStampsRequestedType verifies a concrete request overrides
// the model's own tag while a self-tagged request trusts it.
func TestNormalizeStampsRequestedType(t *testing.T) {
	raw := `[{"q_type":"List Pick","question":"Q","réponses":["a"],"distracteurs":["b"]}]`

	res, err := NewSeededNormalizer(3).Normalize(raw, "MCQ Multiple Choice")
	if err != nil {
		t.Fatalf("failed to normalize: %v", err)
	}
	if len(res.Suggestions) != 1 || res.Suggestions[0].Question.Type != TypeMCQMultiple {
		t.Fatalf("expected the item stamped as mcq_multiple, got %+v", res)
	}

	res, err = NewSeededNormalizer(3).Normalize(raw, SelfTagged)
	if err != nil {
		t.Fatalf("failed to normalize: %v", err)
	}
	if len(res.Failures) != 1 || res.Failures[0].Tag != "List Pick" {
		t.Fatalf("expected the self-tagged list pick to fail for lack of options, got %+v", res)
	}
}

func TestNormalizeKeepsGoodItems(t *testing.T) {
	raw := `[
		{"q_type":"MCQ Single Choice","question":"Q1","réponse":"a","distracteurs":["b","c","d"]},
		{"q_type":"Crossword","question":"Q2"},
		{"q_type":"Fill in the Blanks","sentence_parts":["Le ", " dort."],"answers":["chat","chien"]},
		7,
		{"question":"no tag"},
		{"q_type":"Order the Phrase","question":"Q3","réponse":["Le","chat","dort"],"phrase_shuffled":["dort","Le","chat"]},
		{"q_type":"Fill in the Blanks (Dropdown)","sentence_parts":["Il ", "."],"options_for_blanks":[["mange","dort"]],"answers":["court"]}
	]`
	res, err := NewSeededNormalizer(5).Normalize(raw, "All-60")
	if err != nil {
		t.Fatalf("failed to normalize: %v", err)
	}
	if res.Total != 7 {
		t.Fatalf("expected 7 items, got %d", res.Total)
	}
	var mapped []int
	for _, s := range res.Suggestions {
		mapped = append(mapped, s.Index)
	}
	if !reflect.DeepEqual(mapped, []int{0, 5}) {
		t.Fatalf("expected items 0 and 5 mapped, got %v", mapped)
	}
	var failed []int
	for _, f := range res.Failures {
		failed = append(failed, f.Index)
		if f.Reason == "" {
			t.Errorf("expected a reason for item %d", f.Index)
		}
	}
	if !reflect.DeepEqual(failed, []int{1, 2, 3, 4, 6}) {
		t.Fatalf("expected items 1 2 3 4 6 dropped, got %v", failed)
	}
	if got := res.Questions(); len(got) != 2 || got[1].Type != TypeOrderPhrase {
		t.Fatalf("unexpected questions %v", got)
	}
}

func TestNormalizeEveryGeneratedType(t *testing.T) {
	tests := []struct {
		label string
		item  string
		check func(t *testing.T, q *Question)
	}{
		{"MCQ Multiple Choice", `{"question":"Q","réponses":["a","b"],"distracteurs":["c"]}`, func(t *testing.T, q *Question) {
			p := q.Payload.(*MCQMultiple)
			texts := optionTexts(p.Options)
			if len(texts) != 3 || len(p.Answer) != 2 {
				t.Fatalf("unexpected payload %v %v", texts, p.Answer)
			}
			for _, i := range p.Answer {
				if texts[i] != "a" && texts[i] != "b" {
					t.Fatalf("answer %d points at %q", i, texts[i])
				}
			}
		}},
		{"Fill in the Blanks", `{"sentence_parts":["Le ", " dort."],"answers":["chat"]}`, func(t *testing.T, q *Question) {
			if q.Type != TypeWordFill || q.Text != "Remplis les blancs, ma chérie!" {
				t.Fatalf("unexpected question %s %q", q.Type, q.Text)
			}
		}},
		{"Fill in the Blanks (Dropdown)", `{"sentence_parts":["Il ", "."],"options_for_blanks":[["mange","dort"]],"answers":["dort"]}`, func(t *testing.T, q *Question) {
			p := q.Payload.(*FillBlanksDropdown)
			if p.Answers[0] != "dort" || len(p.OptionsForBlanks[0]) != 2 {
				t.Fatalf("unexpected payload %+v", p)
			}
		}},
		{"Categorization", `{"question":"Trie","categories":["Fruit","Légume"],"stimuli":["Pomme","Carotte"],"answer":{"Pomme":"Fruit","Carotte":"Légume"}}`, func(t *testing.T, q *Question) {
			p := q.Payload.(*Categorization)
			if p.Categories[0] != CategoryPlaceholder || len(p.Categories) != 3 {
				t.Fatalf("expected placeholder prepended, got %v", p.Categories)
			}
			if StimulusKey(p.Stimuli[1]) != "Carotte" || p.Answer["Carotte"] != "Légume" {
				t.Fatalf("unexpected stimuli %v answer %v", p.Stimuli, p.Answer)
			}
		}},
		{"Match Phrases", `{"question":"Associe","pairs":[{"source":"Il fait","targets":["beau","chat"]}],"answer":{"Il fait":"beau"}}`, func(t *testing.T, q *Question) {
			p := q.Payload.(*MatchPhrases)
			if p.Pairs[0].Source != "Il fait" || p.Answer["Il fait"] != "beau" {
				t.Fatalf("unexpected payload %+v", p)
			}
		}},
		{"order_phrase", `{"reponse":["a","b"],"phrase_shuffled":["b","a"]}`, func(t *testing.T, q *Question) {
			if q.Text != "Mets les mots dans le bon ordre." {
				t.Fatalf("expected default prompt, got %q", q.Text)
			}
		}},
	}
	for _, tt := range tests {
		res, err := NewSeededNormalizer(9).Normalize(tt.item, tt.label)
		if err != nil {
			t.Fatalf("%s: failed to normalize: %v", tt.label, err)
		}
		if len(res.Suggestions) != 1 {
			t.Fatalf("%s: expected one suggestion, got failures %+v", tt.label, res.Failures)
		}
		q := res.Suggestions[0].Question
		if issues := CheckQuestion(q); len(issues) != 0 {
			t.Fatalf("%s: expected a valid question, got %v", tt.label, issues)
		}
		tt.check(t, q)
	}
}

func TestNormalizeMismatchedOrderPhrase(t *testing.T) {
	res, err := NewNormalizer().Normalize(`{"réponse":["a","b"],"phrase_shuffled":["a","c"]}`, "Order the Phrase")
	if err != nil {
		t.Fatalf("failed to normalize: %v", err)
	}
	if len(res.Failures) != 1 || !strings.Contains(res.Failures[0].Reason, "reordering") {
		t.Fatalf("expected the item dropped, got %+v", res)
	}
}

func TestNormalizeUnknownRequest(t *testing.T) {
	if _, err := NewNormalizer().Normalize(`[]`, "Crossword"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if _, err := NewNormalizer().Normalize(`not json`, "List Pick"); err == nil {
		t.Fatalf("expected a parse error")
	}
}

func TestResolveLabel(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		selfTag bool
		wantErr bool
	}{
		{"All", "", true, false},
		{"all-60", "", true, false},
		{"mcq single choice", TypeMCQSingle, false, false},
		{"Fill in the Blanks (Dropdown)", TypeDropdown, false, false},
		{"image_tagging", TypeImageTagging, false, false},
		{"Crossword", "", false, true},
	}
	for _, tt := range tests {
		got, selfTag, err := ResolveLabel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want || selfTag != tt.selfTag {
			t.Errorf("%q: expected %q/%v/%v, got %q/%v/%v", tt.in, tt.want, tt.selfTag, tt.wantErr, got, selfTag, err)
		}
	}
	if got := AILabel(TypeOrderPhrase); got != "Order the Phrase" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := AILabel(TypeSequenceAudio); got != "sequence_audio" {
		t.Fatalf("unexpected label %q", got)
	}
}

func TestNormalizeImageTaggingNotGenerated(t *testing.T) {
	res, err := NewNormalizer().Normalize(`{"question":"x"}`, "image_tagging")
	if err != nil {
		t.Fatalf("failed to normalize: %v", err)
	}
	if len(res.Failures) != 1 || !strings.Contains(res.Failures[0].Reason, "cannot be generated") {
		t.Fatalf("expected image tagging item dropped, got %+v", res)
	}
}

func TestSummaryFormats(t *testing.T) {
	tests := []struct {
		item Item
		want string
	}{
		{Item{"q_type": "Fill in the Blanks", "sentence_parts": []interface{}{"Le ", " dort."}, "answers": []interface{}{"chat"}}, "Fill in the blank:\nLe  [___]  dort.\nAnswer: chat"},
		{Item{"q_type": "Order the Phrase", "réponse": []interface{}{"Le", "chat", "dort"}}, "Order the phrase:\nLe chat dort"},
		{Item{"q_type": "Match Phrases", "question": "Q", "pairs": []interface{}{map[string]interface{}{}, map[string]interface{}{}}}, "Q: Q\n(2 pairs to match)"},
		{Item{"q_type": "List Pick", "question": "Q", "réponses": []interface{}{"a", "b"}}, "Q: Q\nCorrect answers: a, b"},
		{Item{"q_type": "Crossword"}, "Unsupported question type: Crossword"},
	}
	for _, tt := range tests {
		if got := Summary(tt.item); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestNormalizeDeduplicatesChoiceOptions(t *testing.T) {
	n := NewSeededNormalizer(3)
	res, err := n.Normalize(`{"réponses":["a","b"],"distracteurs":["b","c"]}`, "MCQ Multiple Choice")
	if err != nil {
		t.Fatalf("failed to normalize: %v", err)
	}
	if len(res.Suggestions) != 1 {
		t.Fatalf("expected one suggestion, got %+v", res)
	}
	p := res.Suggestions[0].Question.Payload.(*MCQMultiple)
	texts := optionTexts(p.Options)
	sorted := append([]string{}, texts...)
	sort.Strings(sorted)
	if !reflect.DeepEqual(sorted, []string{"a", "b", "c"}) {
		t.Fatalf("expected each value once, got %v", texts)
	}
	if len(p.Answer) != 2 {
		t.Fatalf("expected a and b correct, got %v in %v", p.Answer, texts)
	}
	for _, i := range p.Answer {
		if texts[i] == "c" {
			t.Fatalf("expected c to stay a distractor, got %v in %v", p.Answer, texts)
		}
	}

	res, err = n.Normalize(`{"réponse":"Paris","distracteurs":["Paris"]}`, "MCQ Single Choice")
	if err != nil {
		t.Fatalf("failed to normalize: %v", err)
	}
	if len(res.Failures) != 1 || len(res.Suggestions) != 0 {
		t.Fatalf("expected the item dropped when every distractor is the answer, got %+v", res)
	}
}

func TestNormalizeRejectsBadCategorization(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty stimulus", `{"categories":["Fruit"],"stimuli":[{"text":""}],"answer":{}}`, "neither text nor image"},
		{"repeated stimulus", `{"categories":["Fruit"],"stimuli":["Pomme","Pomme"],"answer":{"Pomme":"Fruit"}}`, "repeats"},
		{"unknown answer key", `{"categories":["Fruit"],"stimuli":["Pomme"],"answer":{"Poire":"Fruit"}}`, "not one of the stimuli"},
		{"unknown category", `{"categories":["Fruit"],"stimuli":["Pomme"],"answer":{"Pomme":"Légume"}}`, "not one of the categories"},
	}
	for _, tt := range tests {
		res, err := NewSeededNormalizer(1).Normalize(tt.raw, "Categorization")
		if err != nil {
			t.Fatalf("%s: failed to normalize: %v", tt.name, err)
		}
		if len(res.Failures) != 1 || !strings.Contains(res.Failures[0].Reason, tt.want) {
			t.Errorf("%s: expected a failure mentioning %q, got %+v", tt.name, tt.want, res)
		}
	}

	res, err := NewSeededNormalizer(1).Normalize(`{"categories":["Fruit"],"stimuli":[{"image":"pomme.png"}],"answer":{"pomme.png":"Fruit"}}`, "Categorization")
	if err != nil {
		t.Fatalf("failed to normalize: %v", err)
	}
	if len(res.Suggestions) != 1 {
		t.Fatalf("expected an image stimulus keyed by its path, got %+v", res)
	}
}

// TestNormalizerSharedAcrossGoroutines runs one Normalizer from many
// goroutines, as the editor server does. Run with -race.
func TestNormalizerSharedAcrossGoroutines(t *testing.T) {
	n := NewSeededNormalizer(7)
	raw := `[{"réponse":"Paris","distracteurs":["Lyon","Nice","Caen"]},{"réponses":["a","b"],"distracteurs":["c","d"]}]`
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := n.Normalize(raw, SelfTagged)
			if err != nil {
				errs <- err
				return
			}
			if len(res.Failures) != 2 {
				errs <- fmt.Errorf("expected untagged items to fail, got %+v", res)
			}
			for _, label := range []string{"MCQ Single Choice", "MCQ Multiple Choice"} {
				res, err := n.Normalize(raw, label)
				if err != nil {
					errs <- err
					return
				}
				if label == "MCQ Single Choice" {
					p := res.Suggestions[0].Question.Payload.(*MCQSingle)
					if optionTexts(p.Options)[p.Answer[0]] != "Paris" {
						errs <- fmt.Errorf("answer lost in %v", p.Options)
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
