package mooceditor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MatchSentenceForm edits a match_sentence question. Each pair is its own
// answer: the sentence belongs with the image.
type MatchSentenceForm struct {
	Pairs []SentencePair `json:"pairs"`
}

func (*MatchSentenceForm) FormType() Type { return TypeMatchSentence }

// PhraseField is one phrase beginning with its candidate endings
type PhraseField struct {
	Source  string   `json:"source"`
	Targets []string `json:"targets"`
	Answer  string   `json:"answer"`
}

// MatchPhrasesForm edits a match_phrases question
type MatchPhrasesForm struct {
	Pairs []PhraseField `json:"pairs"`
}

func (*MatchPhrasesForm) FormType() Type { return TypeMatchPhrases }

func (p *MatchSentence) form(_ *Question) Form {
	return &MatchSentenceForm{Pairs: append([]SentencePair{}, p.Pairs...)}
}

func (p *MatchSentence) apply(_ *Question, f Form) error {
	form, ok := f.(*MatchSentenceForm)
	if !ok {
		return wrongForm(TypeMatchSentence)
	}
	if len(form.Pairs) == 0 {
		return invalid("pairs", "at least one pair is required")
	}
	pairs := make([]SentencePair, len(form.Pairs))
	answer := make(map[string]string, len(form.Pairs))
	for i, pair := range form.Pairs {
		field := fmt.Sprintf("pairs[%d]", i)
		sentence := strings.TrimSpace(pair.Sentence)
		image := strings.TrimSpace(pair.ImagePath)
		if sentence == "" || image == "" {
			return invalid(field, "a pair needs both a sentence and an image")
		}
		if _, dup := answer[image]; dup {
			return invalid(field, "image %q is used by two pairs", image)
		}
		pairs[i] = SentencePair{Sentence: sentence, ImagePath: image, Extra: pair.Extra}
		answer[image] = sentence
	}
	p.Pairs = pairs
	p.Answer = answer
	return nil
}

func (p *MatchSentence) Lists() []string { return []string{"pairs"} }

func (p *MatchSentence) addItem(list string) error {
	if list != "pairs" {
		return unknownList(TypeMatchSentence, list)
	}
	p.AddPair(SentencePair{Sentence: "New Cute Sentence", ImagePath: "new_image.jpg"})
	return nil
}

func (p *MatchSentence) deleteItem(list string, k int) error {
	if list != "pairs" {
		return unknownList(TypeMatchSentence, list)
	}
	return p.DeletePair(k)
}

// AddPair appends a pair and records it in the answer unless its image is already mapped
func (p *MatchSentence) AddPair(pair SentencePair) {
	p.Pairs = append(p.Pairs, pair)
	if _, ok := p.Answer[pair.ImagePath]; !ok {
		p.Answer[pair.ImagePath] = pair.Sentence
	}
}

// DeletePair removes pair k and its answer entry
func (p *MatchSentence) DeletePair(k int) error {
	if err := checkDelete("pairs", k, len(p.Pairs), 1); err != nil {
		return err
	}
	delete(p.Answer, p.Pairs[k].ImagePath)
	p.Pairs = removeAt(p.Pairs, k)
	return nil
}

func (p *MatchPhrases) form(_ *Question) Form {
	pairs := make([]PhraseField, len(p.Pairs))
	for i, pair := range p.Pairs {
		pairs[i] = PhraseField{
			Source:  pair.Source,
			Targets: copyStrings(pair.Targets),
			Answer:  p.Answer[pair.Source],
		}
	}
	return &MatchPhrasesForm{Pairs: pairs}
}

func (p *MatchPhrases) apply(_ *Question, f Form) error {
	form, ok := f.(*MatchPhrasesForm)
	if !ok {
		return wrongForm(TypeMatchPhrases)
	}
	if len(form.Pairs) == 0 {
		return invalid("pairs", "at least one pair is required")
	}
	pairs := make([]PhrasePair, len(form.Pairs))
	answer := make(map[string]string, len(form.Pairs))
	for i, pf := range form.Pairs {
		field := fmt.Sprintf("pairs[%d]", i)
		source := strings.TrimSpace(pf.Source)
		if source == "" {
			return invalid(field+".source", "phrase beginning is empty")
		}
		if _, dup := answer[source]; dup {
			return invalid(field+".source", "%q is used by two pairs", source)
		}
		targets := make([]string, 0, len(pf.Targets))
		for _, t := range pf.Targets {
			if t != "" {
				targets = append(targets, t)
			}
		}
		if strings.TrimSpace(pf.Answer) == "" {
			return invalid(field+".answer", "choose the correct ending")
		}
		if !contains(targets, pf.Answer) {
			return invalid(field+".answer", "%q is not one of the endings", pf.Answer)
		}
		pairs[i] = PhrasePair{Source: source, Targets: targets, Extra: p.pairExtra(source)}
		answer[source] = pf.Answer
	}
	p.Pairs = pairs
	p.Answer = answer
	return nil
}

// pairExtra returns the unmodelled keys of the pair that begins with source
func (p *MatchPhrases) pairExtra(source string) map[string]json.RawMessage {
	for _, pair := range p.Pairs {
		if pair.Source == source {
			return pair.Extra
		}
	}
	return nil
}

func (p *MatchPhrases) Lists() []string { return []string{"pairs"} }

func (p *MatchPhrases) addItem(list string) error {
	if list != "pairs" {
		return unknownList(TypeMatchPhrases, list)
	}
	p.AddPair(PhrasePair{
		Source:  fmt.Sprintf("Beginning of phrase %d...", len(p.Pairs)+1),
		Targets: []string{" ", "ending A", "ending B"},
	}, "ending A")
	return nil
}

func (p *MatchPhrases) deleteItem(list string, k int) error {
	if list != "pairs" {
		return unknownList(TypeMatchPhrases, list)
	}
	return p.DeletePair(k)
}

// AddPair appends a pair whose correct ending is answer
func (p *MatchPhrases) AddPair(pair PhrasePair, answer string) {
	p.Pairs = append(p.Pairs, pair)
	p.Answer[pair.Source] = answer
}

// DeletePair removes pair k and its answer entry
func (p *MatchPhrases) DeletePair(k int) error {
	if err := checkDelete("pairs", k, len(p.Pairs), 1); err != nil {
		return err
	}
	delete(p.Answer, p.Pairs[k].Source)
	p.Pairs = removeAt(p.Pairs, k)
	return nil
}
