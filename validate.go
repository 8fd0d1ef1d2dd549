package mooceditor

import (
	"fmt"
	"sort"
)

// Issue is one consistency problem found by Validate
type Issue struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("question %d: %s: %s", i.Index+1, i.Field, i.Message)
}

// Validate checks every question against the rules of its type. It never
// modifies the document.
func (d *Document) Validate() []Issue {
	var issues []Issue
	for i, q := range d.questions {
		for _, fi := range CheckQuestion(q) {
			fi.Index = i
			issues = append(issues, fi)
		}
	}
	return issues
}

// CheckQuestion returns the problems of a single question. Index is left zero.
func CheckQuestion(q *Question) []Issue {
	c := &checker{}
	c.question("", q, true)
	return c.issues
}

type checker struct {
	issues []Issue
}

func (c *checker) add(field, format string, args ...interface{}) {
	c.issues = append(c.issues, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) question(prefix string, q *Question, topLevel bool) {
	if q == nil {
		c.add(prefix+"question", "missing question record")
		return
	}
	switch {
	case q.Type == "":
		c.add(prefix+"type", "missing question type")
		return
	case !IsKnown(q.Type):
		c.add(prefix+"type", "unsupported question type %q", q.Type)
		return
	case q.decodeErr != nil:
		c.add(prefix+"payload", "%v", q.decodeErr)
		return
	}

	f := func(name string) string { return prefix + name }

	switch p := q.Payload.(type) {
	case *ListPick:
		c.indexSet(f("answer"), p.Answer, len(p.Options))
	case *MCQSingle:
		c.options(f("options"), p.Options)
		if len(p.Answer) != 1 {
			c.add(f("answer"), "must hold exactly one index, got %d", len(p.Answer))
		}
		c.indexSet(f("answer"), p.Answer, len(p.Options))
	case *MCQMultiple:
		c.options(f("options"), p.Options)
		if len(p.Answer) == 0 {
			c.add(f("answer"), "at least one correct option is required")
		}
		c.indexSet(f("answer"), p.Answer, len(p.Options))
	case *WordFill:
		if want := len(p.SentenceParts) - 1; len(p.Answers) != want {
			c.add(f("answers"), "expected %d answers for %d sentence parts, got %d", max(want, 0), len(p.SentenceParts), len(p.Answers))
		}
	case *FillBlanksDropdown:
		c.dropdown(f, p)
	case *MatchSentence:
		seen := map[string]bool{}
		for i, pair := range p.Pairs {
			seen[pair.ImagePath] = true
			if _, ok := p.Answer[pair.ImagePath]; !ok {
				c.add(f(fmt.Sprintf("pairs[%d]", i)), "image %q has no entry in answer", pair.ImagePath)
			}
		}
		c.staleKeys(f("answer"), p.Answer, seen)
	case *MatchPhrases:
		seen := map[string]bool{}
		for i, pair := range p.Pairs {
			seen[pair.Source] = true
			target, ok := p.Answer[pair.Source]
			if !ok {
				c.add(f(fmt.Sprintf("pairs[%d]", i)), "source %q has no entry in answer", pair.Source)
				continue
			}
			if !contains(pair.Targets, target) {
				c.add(f(fmt.Sprintf("pairs[%d]", i)), "answer %q is not one of the targets", target)
			}
		}
		c.staleKeys(f("answer"), p.Answer, seen)
	case *SequenceAudio:
		if err := checkPermutation(p.Answer, len(p.AudioOptions)); err != nil {
			c.add(f("answer"), "%v", err)
		}
	case *OrderPhrase:
		if !sameMultiset(p.PhraseShuffled, p.Answer) {
			c.add(f("phrase_shuffled"), "must contain exactly the phrases of answer")
		}
	case *Categorization:
		c.categorization(f, p)
	case *ImageTagging:
		c.tagging(f, q, p)
	case *MultiQuestions:
		if !topLevel {
			c.add(f("type"), "multi_questions cannot be nested")
			return
		}
		if len(p.Questions) == 0 {
			c.add(f("questions"), "a block needs at least one question")
		}
		for i, sub := range p.Questions {
			c.question(fmt.Sprintf("%squestions[%d].", prefix, i), sub, false)
		}
	}
}

func (c *checker) indexSet(field string, answer []int, n int) {
	seen := map[int]bool{}
	for _, idx := range answer {
		if idx < 0 || idx >= n {
			c.add(field, "index %d is outside the %d options", idx, n)
		}
		if seen[idx] {
			c.add(field, "index %d is listed twice", idx)
		}
		seen[idx] = true
	}
}

func (c *checker) options(field string, opts []Option) {
	for i, o := range opts {
		if o.Text == "" && o.Image == "" {
			c.add(fmt.Sprintf("%s[%d]", field, i), "option has neither text nor image")
		}
	}
}

func (c *checker) staleKeys(field string, answer map[string]string, known map[string]bool) {
	for _, k := range sortedKeys(answer) {
		if !known[k] {
			c.add(field, "key %q does not match any item", k)
		}
	}
}

func (c *checker) dropdown(f func(string) string, p *FillBlanksDropdown) {
	blanks := len(p.SentenceParts) - 1
	if len(p.OptionsForBlanks) != max(blanks, 0) {
		c.add(f("options_for_blanks"), "expected %d option lists for %d sentence parts, got %d", max(blanks, 0), len(p.SentenceParts), len(p.OptionsForBlanks))
	}
	if len(p.Answers) != len(p.OptionsForBlanks) {
		c.add(f("answers"), "expected one answer per blank (%d), got %d", len(p.OptionsForBlanks), len(p.Answers))
	}
	for i, ans := range p.Answers {
		if i >= len(p.OptionsForBlanks) {
			break
		}
		if !contains(p.OptionsForBlanks[i], ans) {
			c.add(f(fmt.Sprintf("answers[%d]", i)), "%q is not one of the options of blank %d", ans, i+1)
		}
	}
}

func (c *checker) categorization(f func(string) string, p *Categorization) {
	seen := map[string]bool{}
	for i, st := range p.Stimuli {
		key := StimulusKey(st)
		if key == "" {
			c.add(f(fmt.Sprintf("stimuli[%d]", i)), "stimulus has neither text nor image")
			continue
		}
		seen[key] = true
		cat, ok := p.Answer[key]
		if !ok {
			c.add(f(fmt.Sprintf("stimuli[%d]", i)), "stimulus %q has no category in answer", key)
			continue
		}
		if cat == CategoryPlaceholder || !contains(p.Categories, cat) {
			c.add(f(fmt.Sprintf("stimuli[%d]", i)), "category %q is not a valid category", cat)
		}
	}
	c.staleKeys(f("answer"), p.Answer, seen)
}

func (c *checker) tagging(f func(string) string, q *Question, p *ImageTagging) {
	if q.Media == nil || q.Media.Image == "" {
		c.add(f("media"), "image tagging needs a media image")
	}
	ids := map[string]bool{}
	for i, tag := range p.Tags {
		switch {
		case tag.ID == "":
			c.add(f(fmt.Sprintf("tags[%d]", i)), "tag id is empty")
		case ids[tag.ID]:
			c.add(f(fmt.Sprintf("tags[%d]", i)), "tag id %q is used twice", tag.ID)
		}
		ids[tag.ID] = true
		if _, ok := p.Answer[tag.ID]; !ok {
			c.add(f("answer"), "tag %q has no coordinates", tag.ID)
		}
	}
	for _, k := range sortedKeys(p.Answer) {
		if !ids[k] {
			c.add(f("answer"), "coordinates for unknown tag %q", k)
		}
	}

	for i, alt := range p.Alternatives {
		field := f(fmt.Sprintf("alternatives[%d]", i))
		if alt.Media == nil || alt.Media.Image == "" {
			c.add(field, "alternative needs a media image")
		}
		altIDs := map[string]bool{}
		for _, tag := range alt.Tags {
			altIDs[tag.ID] = true
		}
		for _, id := range sortedSet(ids) {
			if !altIDs[id] {
				c.add(field, "base tag %q is missing", id)
			} else if _, ok := alt.Answer[id]; !ok {
				c.add(field, "tag %q has no coordinates", id)
			}
		}
		for _, id := range sortedSet(altIDs) {
			if !ids[id] {
				c.add(field, "tag %q is not on the base image", id)
			}
		}
	}
}

func checkPermutation(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("order must list all %d clips, got %d", n, len(order))
	}
	seen := make([]bool, n)
	for _, idx := range order {
		if idx < 0 || idx >= n {
			return fmt.Errorf("clip index %d is out of range", idx)
		}
		if seen[idx] {
			return fmt.Errorf("clip index %d is listed twice", idx)
		}
		seen[idx] = true
	}
	return nil
}

func sameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := map[string]int{}
	for _, s := range a {
		counts[s]++
	}
	for _, s := range b {
		counts[s]--
		if counts[s] < 0 {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSet(m map[string]bool) []string {
	return sortedKeys(m)
}
