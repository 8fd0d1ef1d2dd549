package mooceditor

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleDocument = `[
  {
    "type": "mcq_single",
    "question": "Quelle est la capitale de la France ?",
    "hint": "Pense à la tour Eiffel",
    "options": [{"image": null, "text": "Paris"}, "Lyon"],
    "answer": [0],
    "media": null
  },
  {
    "type": "order_phrase",
    "question": "Remets dans l'ordre",
    "phrase_shuffled": ["chat", "Le", "dort"],
    "answer": ["Le", "chat", "dort"],
    "media": {"audio": "chat.mp3"},
    "lesson": {"pdf": "lecon1.pdf"},
    "difficulty": 3
  },
  {
    "type": "crossword",
    "question": "Not supported here",
    "grid": [[1, 2], [3, 4]]
  },
  {
    "type": "multi_questions",
    "questions": [
      {"type": "list_pick", "question": "Fruits", "options": ["Pomme", "Voiture"], "answer": [0], "media": null}
    ]
  }
]`

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func decodeGeneric(t *testing.T, data []byte) []interface{} {
	t.Helper()
	var out []interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("failed to decode %s: %v", data, err)
	}
	return out
}

// TestDocumentRoundTrip verifies save(load(path)) keeps every record and value.
func TestDocumentRoundTrip(t *testing.T) {
	path := writeSample(t, sampleDocument)
	doc, err := OpenDocument(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	if doc.Len() != 4 {
		t.Fatalf("expected 4 questions, got %d", doc.Len())
	}

	out := filepath.Join(filepath.Dir(path), "copy.json")
	if err := doc.Save(out); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read saved file: %v", err)
	}

	want := decodeGeneric(t, []byte(sampleDocument))
	// bare string options are written in object form
	want[0].(map[string]interface{})["options"] = []interface{}{
		map[string]interface{}{"image": nil, "text": "Paris"},
		map[string]interface{}{"image": "", "text": "Lyon"},
	}
	got := decodeGeneric(t, data)
	if !reflect.DeepEqual(want[1:], got[1:]) {
		t.Fatalf("expected records 2-4 unchanged\nwant %v\ngot  %v", want[1:], got[1:])
	}
	if !reflect.DeepEqual(want[0], got[0]) {
		t.Fatalf("expected first record %v, got %v", want[0], got[0])
	}
	if !strings.Contains(string(data), "Quelle est la capitale de la France ?") {
		t.Fatalf("expected non-ASCII text written literally, got %s", data)
	}
	if doc.Dirty() || doc.Path() != out {
		t.Fatalf("expected clean document at %s, got dirty=%v path=%s", out, doc.Dirty(), doc.Path())
	}
}

// TestDocumentRoundTripNestedKeys verifies keys inside options, media,
// lessons, tags and alternatives survive a load/save cycle, as do null
// values and empty strings.
func TestDocumentRoundTripNestedKeys(t *testing.T) {
	const content = `[
  {
    "type": "mcq_single",
    "question": "",
    "hint": "",
    "options": [
      {"image": null, "text": "Paris", "correct": true, "feedback": "Bravo !"},
      {"image": "lyon.png", "text": "Lyon", "correct": false}
    ],
    "answer": [0],
    "media": {"image": "carte.png", "caption": "La France", "video": null},
    "lesson": {"pdf": "geo.pdf", "page": 4}
  },
  {
    "type": "image_tagging",
    "question": "Place les étiquettes",
    "button_label": "Autre vue",
    "media": {"image": "corps.jpg"},
    "tags": [{"id": "tete", "label": "Tête", "color": "#ff0000"}],
    "answer": {"tete": [10, 20]},
    "alternatives": [
      {"media": {"image": "dos.jpg"}, "button_label": "Dos", "tags": [{"id": "tete", "label": "Tête", "color": "#00ff00"}], "answer": {"tete": [30, 40]}, "zoom": 2}
    ]
  },
  {
    "type": "categorization_multiple",
    "question": "Trie",
    "categories": [" ", "Fruit"],
    "stimuli": [{"text": "Pomme", "image": null, "sound": "pomme.mp3"}],
    "answer": {"Pomme": "Fruit"},
    "media": null
  },
  {
    "type": "sequence_audio",
    "question": "Ordre",
    "audio_options": [{"option": "Un", "audio": "1.mp3", "duration": 3}],
    "answer": [0],
    "media": null
  }
]`
	path := writeSample(t, content)
	doc, err := OpenDocument(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	if err := doc.Save(path); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved file: %v", err)
	}

	want := decodeGeneric(t, []byte(content))
	got := decodeGeneric(t, data)
	for i := range want {
		if !reflect.DeepEqual(want[i], got[i]) {
			t.Errorf("record %d changed\nwant %v\ngot  %v", i+1, want[i], got[i])
		}
	}
}

// TestNestedKeysSurviveEdits verifies form edits keep the keys they do not model.
func TestNestedKeysSurviveEdits(t *testing.T) {
	questions, err := DecodeQuestions("test", []byte(`[{"type": "mcq_multiple", "question": "q",
		"options": [{"image": "", "text": "a", "feedback": "oui"}, {"image": "", "text": "b"}],
		"answer": [0], "media": {"image": "x.png", "caption": "légende"}}]`))
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	q := questions[0]
	form, err := FormFor(q)
	if err != nil {
		t.Fatalf("failed to build form: %v", err)
	}
	mf := form.(*MultiChoiceForm)
	mf.Options[0].Text = "A"
	mf.Correct = []bool{true, true}
	if err := ApplyForm(q, mf); err != nil {
		t.Fatalf("failed to apply form: %v", err)
	}
	ApplyMedia(q, MediaForm{})

	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if !strings.Contains(string(data), `"feedback":"oui"`) || !strings.Contains(string(data), `"text":"A"`) {
		t.Fatalf("expected edited option to keep feedback, got %s", data)
	}
	if !strings.Contains(string(data), `"media":{"caption":"légende"}`) {
		t.Fatalf("expected media caption kept after clearing paths, got %s", data)
	}
}

func TestDocumentUnknownTypeKeptRaw(t *testing.T) {
	doc, err := OpenDocument(writeSample(t, sampleDocument))
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	q, _ := doc.Get(2)
	if q.Payload != nil {
		t.Fatalf("expected no payload for unknown type")
	}
	if _, err := FormFor(q); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if _, ok := q.Extra["grid"]; !ok {
		t.Fatalf("expected grid kept in Extra, got %v", q.Extra)
	}
}

func TestDocumentUndecodedPayload(t *testing.T) {
	doc, err := OpenDocument(writeSample(t, `[{"type": "mcq_single", "question": "x", "options": 5, "answer": [0]}]`))
	if err != nil {
		t.Fatalf("expected lenient load, got %v", err)
	}
	q, _ := doc.Get(0)
	if q.DecodeErr() == nil {
		t.Fatalf("expected a decode error")
	}
	if _, err := FormFor(q); !errors.Is(err, ErrUndecoded) {
		t.Fatalf("expected ErrUndecoded, got %v", err)
	}
	data, err := doc.Encode()
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	got := decodeGeneric(t, data)[0].(map[string]interface{})
	if got["options"] != json.Number("5") && got["options"] != float64(5) {
		t.Fatalf("expected raw options preserved, got %v", got["options"])
	}
	if issues := doc.Validate(); len(issues) != 1 || issues[0].Field != "payload" {
		t.Fatalf("expected one payload issue, got %v", issues)
	}
}

// TestDocumentLoadFailureKeepsState verifies a failed load changes nothing.
func TestDocumentLoadFailureKeepsState(t *testing.T) {
	good := writeSample(t, sampleDocument)
	doc, err := OpenDocument(good)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}

	tests := []struct {
		name    string
		content string
		wantErr func(error) bool
	}{
		{"syntax", `[{"type": `, func(err error) bool {
			var pe *ParseError
			return errors.As(err, &pe)
		}},
		{"object root", `{"type": "mcq_single"}`, func(err error) bool { return errors.Is(err, ErrNotArray) }},
		{"null root", `null`, func(err error) bool { return errors.Is(err, ErrNotArray) }},
		{"non-object item", `[1]`, func(err error) bool {
			var pe *ParseError
			return errors.As(err, &pe)
		}},
	}
	for _, tt := range tests {
		bad := writeSample(t, tt.content)
		err := doc.Load(bad)
		if err == nil || !tt.wantErr(err) {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if doc.Len() != 4 || doc.Path() != good {
			t.Fatalf("%s: expected previous document kept, got %d questions at %s", tt.name, doc.Len(), doc.Path())
		}
	}

	if err := doc.Load(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestDocumentSaveWithoutPath(t *testing.T) {
	doc := NewDocument()
	if err := doc.Save(""); err == nil {
		t.Fatalf("expected error saving a document with no path")
	}
}

// TestDocumentSaveAtomic verifies a failed save leaves the old file intact.
func TestDocumentSaveAtomic(t *testing.T) {
	path := writeSample(t, sampleDocument)
	doc, err := OpenDocument(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	bad := &Question{Type: TypeListPick, Payload: &ListPick{}, Extra: map[string]json.RawMessage{"broken": json.RawMessage("{")}}
	doc.Append(bad)

	if err := doc.Save(""); err == nil {
		t.Fatalf("expected encode failure")
	}
	data, _ := os.ReadFile(path)
	if string(data) != sampleDocument {
		t.Fatalf("expected original file untouched")
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("expected no temp file left, found %s", e.Name())
		}
	}
}

func TestDocumentAppendDeleteSet(t *testing.T) {
	doc := NewDocument()
	for _, typ := range []Type{TypeListPick, TypeMCQSingle, TypeWordFill} {
		q, _ := NewQuestion(typ)
		doc.Append(q)
	}
	if !doc.Dirty() {
		t.Fatalf("expected dirty after append")
	}
	if err := doc.Delete(1); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if q, _ := doc.Get(1); q.Type != TypeWordFill {
		t.Fatalf("expected word_fill at 1, got %s", q.Type)
	}
	if err := doc.Delete(5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	q, _ := NewQuestion(TypeOrderPhrase)
	if err := doc.Set(0, q); err != nil {
		t.Fatalf("failed to set: %v", err)
	}
	if first, _ := doc.Get(0); first.Type != TypeOrderPhrase {
		t.Fatalf("expected order_phrase at 0, got %s", first.Type)
	}
	if err := doc.Set(-1, q); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

// TestDocumentMoveBoundaries verifies moving past either end is a no-op.
func TestDocumentMoveBoundaries(t *testing.T) {
	doc := NewDocument()
	for _, typ := range []Type{TypeListPick, TypeMCQSingle, TypeWordFill} {
		q, _ := NewQuestion(typ)
		doc.Append(q)
	}
	order := func() []Type {
		out := []Type{}
		for _, q := range doc.Questions() {
			out = append(out, q.Type)
		}
		return out
	}
	initial := order()

	tests := []struct {
		index int
		dir   Direction
		want  int
	}{
		{0, Up, 0},
		{2, Down, 2},
	}
	for _, tt := range tests {
		got, err := doc.Move(tt.index, tt.dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Fatalf("expected index %d, got %d", tt.want, got)
		}
		if !reflect.DeepEqual(order(), initial) {
			t.Fatalf("expected order unchanged, got %v", order())
		}
	}

	got, err := doc.Move(0, Down)
	if err != nil || got != 1 {
		t.Fatalf("expected move to 1, got %d (%v)", got, err)
	}
	if o := order(); o[0] != TypeMCQSingle || o[1] != TypeListPick {
		t.Fatalf("expected swapped order, got %v", o)
	}
	if _, err := doc.Move(3, Up); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestParseDirection(t *testing.T) {
	if d, err := ParseDirection("down"); err != nil || d != Down {
		t.Fatalf("expected Down, got %v (%v)", d, err)
	}
	if _, err := ParseDirection("left"); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestDocumentLabels(t *testing.T) {
	doc, err := OpenDocument(writeSample(t, sampleDocument))
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	labels := doc.Labels()
	want := []string{
		"1. [mcq_single] Quelle est la capitale de la France...",
		"2. [order_phrase] Remets dans l'ordre",
		"3. [crossword] Not supported here",
		"4. [multi_questions] Multi-Block (1 questions)",
	}
	if !reflect.DeepEqual(labels, want) {
		t.Fatalf("expected %q, got %q", want, labels)
	}
	doc.Append(&Question{Type: TypeListPick, Payload: &ListPick{Options: []string{}, Answer: []int{}}})
	if got := doc.Label(4); got != "5. [list_pick] No question text" {
		t.Fatalf("unexpected label %q", got)
	}
}

func TestQuestionMarshalKeys(t *testing.T) {
	q, _ := NewQuestion(TypeWordFill)
	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	for _, key := range []string{"type", "question", "sentence_parts", "answers", "media"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("expected key %q in %s", key, data)
		}
	}
	if fields["media"] != nil {
		t.Errorf("expected media null, got %v", fields["media"])
	}
	if _, ok := fields["hint"]; ok {
		t.Errorf("expected no hint key when empty")
	}
}

func TestQuestionClone(t *testing.T) {
	q, _ := NewQuestion(TypeImageTagging)
	c, err := q.Clone()
	if err != nil {
		t.Fatalf("failed to clone: %v", err)
	}
	c.Payload.(*ImageTagging).Answer["tag1"] = Point{1, 1}
	c.Media.Image = "other.jpg"
	if q.Payload.(*ImageTagging).Answer["tag1"] != (Point{100, 150}) || q.Media.Image != "body.jpg" {
		t.Fatalf("expected clone to be independent")
	}
}
