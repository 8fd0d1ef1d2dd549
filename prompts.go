package mooceditor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// TextPlaceholder is replaced by the source text when a prompt is filled.
const TextPlaceholder = "{text}"

// PromptStore holds the generation prompt of every category. It is backed
// by a JSON object on disk mapping category name to template.
type PromptStore struct {
	path      string
	templates map[string]string
}

// LoadPrompts reads the templates at path. When the file is missing or not
// a valid JSON object of strings, the built-in prompts are used and written
// back to path. Failing to write them is logged, not returned.
func LoadPrompts(path string) (*PromptStore, error) {
	store := &PromptStore{path: path}

	data, err := os.ReadFile(path)
	if err == nil {
		var templates map[string]string
		if jerr := json.Unmarshal(data, &templates); jerr == nil && templates != nil {
			store.templates = templates
			VerboseLog("Loaded %d prompt templates from %s", len(templates), path)
			return store, nil
		} else if jerr != nil {
			editorLog.Printf("Prompt file %s is invalid, recreating it: %v", path, jerr)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read prompts %s: %w", path, err)
	} else {
		editorLog.Printf("Prompt file %s not found, creating it with the default prompts", path)
	}

	store.templates = DefaultPrompts()
	if err := store.Save(); err != nil {
		editorLog.Printf("Could not write %s: %v", path, err)
	}
	return store, nil
}

// NewPromptStore returns a store holding templates that is not backed by a file.
func NewPromptStore(templates map[string]string) *PromptStore {
	copied := make(map[string]string, len(templates))
	for k, v := range templates {
		copied[k] = v
	}
	return &PromptStore{templates: copied}
}

// Save writes the templates to the store's file with literal UTF-8.
func (s *PromptStore) Save() error {
	if s.path == "" {
		return errors.New("prompt store has no file path")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.templates); err != nil {
		return fmt.Errorf("failed to encode prompts: %w", err)
	}
	return writeFileAtomic(s.path, buf.Bytes())
}

func (s *PromptStore) Path() string { return s.path }

// Categories lists the prompt categories in sorted order
func (s *PromptStore) Categories() []string {
	out := make([]string, 0, len(s.templates))
	for k := range s.templates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *PromptStore) Template(category string) (string, bool) {
	t, ok := s.templates[category]
	return t, ok
}

// Set replaces or adds the template of a category
func (s *PromptStore) Set(category, template string) {
	s.templates[category] = template
}

// Fill returns the template of category with every {text} replaced by text.
// Other braces in the template are left alone.
func (s *PromptStore) Fill(category, text string) (string, error) {
	t, ok := s.templates[category]
	if !ok {
		return "", fmt.Errorf("no prompt for category %q", category)
	}
	return strings.ReplaceAll(t, TextPlaceholder, text), nil
}

const promptFormats = `Here are the possible formats:

1.  **"q_type": "MCQ Single Choice"**: A general knowledge question inspired by a theme or word in the text.
    Keys: "question", "réponse" (the single correct string), "distracteurs" (an array of 3 incorrect strings).

2.  **"q_type": "MCQ Multiple Choice"**: A general knowledge question inspired by a theme or word in the text.
    Keys: "question", "réponses" (an array of all correct strings), "distracteurs" (an array of incorrect strings).

3.  **"q_type": "Fill in the Blanks"**: Create a NEW sentence using a key vocabulary word from the text as the blank.
    Keys: "sentence_parts" (array of strings), "answers" (array with the single correct word).

4.  **"q_type": "Fill in the Blanks (Dropdown)"**: Create a NEW sentence using a key vocabulary word from the text as dropdowns.
    Keys: "sentence_parts" (array of strings), "options_for_blanks": (an array of arrays, where each inner array contains the string options for the corresponding blank. Make sure the correct answer is one of the options.), "answers" (array with the single correct word).

5.  **"q_type": "Order the Phrase"**: Take a simple, self-contained sentence from the text.
    Keys: "question", "réponse" (correctly ordered array of strings), "phrase_shuffled" (shuffled array of strings).

6.  **"q_type": "Categorization"**: Create a categorization question based on a theme from the text.
    Keys: "question", "categories" (array of strings), "stimuli" (array of strings to categorize), "answer" (a dictionary mapping stimuli to categories).

7.  **"q_type": "List Pick"**: Create a question where multiple items from a list can be chosen, based on a theme from the text.
    Keys: "question", "options" (array of all possible strings), "réponses" (array of the correct strings).
`

const promptSelfTag = `Return your answer as a single JSON array of objects. Each object represents a single question and MUST include a "q_type" key to identify the question format.

`

const promptSource = `

Text for inspiration:
---
{text}
---`

// DefaultPrompts returns the built-in prompt of every category
func DefaultPrompts() map[string]string {
	return map[string]string{
		"All-60": `Your task is to use the following text as INSPIRATION to generate 60 self-contained questions in French. The questions MUST be understandable and answerable without having read the source text. The questions difficulty MUST be targetting an A2 level student, with a heavy bias toward conjugation while still generating some on other subjects. The questions should have a sapphic twist.

Preferably the entire set of questions will tell a story

` + promptSelfTag + promptFormats + `
Generate 20 MCQ Single Choice, 15 MCQ Multiple Choice, 10 Fill in the Blanks (Dropdown), 5 List Pick, 5 Categorization, 4 Order the Phrase and 1 Fill in the Blanks question. Do not include any other text or explanation outside of the JSON array. Randomize the order, except for the 1 Fill in the Blanks that should be at the very end.` + promptSource,

		"All": `Your task is to use the following text as INSPIRATION to generate a variety of self-contained questions in French. The questions MUST be understandable and answerable without having read the source text.

` + promptSelfTag + promptFormats + `
Generate a mix of these question types. Do not include any other text or explanation outside of the JSON array.` + promptSource,

		"MCQ Single Choice": `Your task is to use the following text as INSPIRATION to generate a list of simple, clear, self-contained multiple-choice questions in French. The questions must be understandable and answerable without having read the source text.

For each question, provide:
1. A self-contained question ("question").
2. The single correct answer ("réponse").
3. A list of three plausible but incorrect answers ("distracteurs").

Return your answer as a single JSON array of objects. Each object must have three keys: "question", "réponse", and "distracteurs".` + promptSource,

		"MCQ Multiple Choice": `Your task is to use the following text as INSPIRATION to generate a list of simple, clear, self-contained multiple-choice questions in French where there can be multiple correct answers. The questions must be understandable and answerable without having read the source text.

For each question, provide:
1. A self-contained question ("question").
2. A list of all correct answers ("réponses").
3. A list of plausible but incorrect answers ("distracteurs").

Return your answer as a single JSON array of objects. Each object must have three keys: "question", "réponses", and "distracteurs".` + promptSource,

		"Fill in the Blanks": `Your task is to use the vocabulary from the following text to create NEW "fill-in-the-blank" questions in French. The new sentences you create should be general knowledge or easily understandable on their own.

For each question, choose an important word from the source text and create a new sentence where that word is the blank.

Return your answer as a single JSON array of objects. Each object must have two keys:
1. "sentence_parts": an array of strings for the new sentence.
2. "answers": an array containing the single correct word for the blank.

Example using "arc-en-ciel" from a text:
{
  "sentence_parts": ["Après la pluie, on peut parfois voir un ", " dans le ciel."],
  "answers": ["arc-en-ciel"]
}

Text for vocabulary inspiration:
---
{text}
---`,

		"Order the Phrase": `Your task is to take simple, self-contained sentences from the following text and turn them into "order the phrase" questions. Prefer sentences that are understandable on their own without needing the original text's context.

For each question, provide:
1. The question itself (e.g., "Mets les mots dans le bon ordre.").
2. The correctly ordered phrase as a list of strings ("réponse").
3. The shuffled phrase as a list of strings ("phrase_shuffled").

Return your answer as a single JSON array of objects. Each object must have three keys: "question", "réponse", and "phrase_shuffled".

Text:
---
{text}
---`,

		"Categorization": `Your task is to use the themes from the following text to generate self-contained categorization questions in French. The questions must be understandable and answerable without having read the source text.

For each question, provide:
1. The question itself.
2. A list of categories as strings.
3. A list of items (stimuli) to be categorized. Each item should be a simple string.
4. An answer mapping, where each key is an item and its value is the correct category.

Return your answer as a single JSON array of objects. Each object must have four keys: "question", "categories", "stimuli", and "answer".` + promptSource,

		"Fill in the Blanks (Dropdown)": `Your task is to use the vocabulary from the following text to create NEW "fill-in-the-blank" questions with dropdown menus in French. The new sentences you create should be general knowledge or easily understandable on their own.

For each question, provide:
1. "sentence_parts": an array of strings representing the new sentence with blanks.
2. "options_for_blanks": an array of arrays, where each inner array contains the string options for the corresponding blank. Make sure the correct answer is one of the options.
3. "answers": an array containing the single correct string for each blank.

Example using "arc-en-ciel" from a text:
{
  "sentence_parts": ["Après la pluie, on peut parfois voir un ", " dans le ciel."],
  "options_for_blanks": [["arc-en-ciel", "nuage", "soleil"]],
  "answers": ["arc-en-ciel"]
}

Text for vocabulary inspiration:
---
{text}
---`,

		"Match Phrases": `Your task is to take simple, self-contained sentences from the following text and create "match the phrases" questions in French. Split the sentences into a beginning ('source') and an ending ('target').

For each question, provide:
1. The question itself.
2. A list of 'pairs'. Each pair object should have a 'source' (the beginning of the phrase) and a list of possible 'targets' (endings), including the correct one.
3. The 'answer' mapping, where the key is the 'source' and the value is the correct 'target'.

Return your answer as a single JSON array of objects. Each object must have three keys: "question", "pairs", and "answer".

Text:
---
{text}
---`,

		"List Pick": `Your task is to use the themes from the following text to generate self-contained "list pick" questions in French, where the user can select multiple correct items from a list. The questions must be understandable and answerable without having read the source text.

For each question, provide:
1. The question itself.
2. A list of string options, including both correct and incorrect items.
3. A list of all correct answers ("réponses").

Return your answer as a single JSON array of objects. Each object must have three keys: "question", "options", and "réponses".` + promptSource,
	}
}
