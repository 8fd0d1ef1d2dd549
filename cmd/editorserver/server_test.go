package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"mooceditor"
)

type stubEngine struct {
	response string
}

func (e *stubEngine) Name() string { return "stub" }

func (e *stubEngine) Complete(_ context.Context, _ string) (string, error) {
	return e.response, nil
}

type testClient struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
}

func newTestClient(t *testing.T, cfg Config) *testClient {
	t.Helper()
	if cfg.SessionKey == nil {
		cfg.SessionKey = []byte("0123456789abcdef0123456789abcdef")
	}
	server := httptest.NewServer(NewServer(cfg).Routes())
	t.Cleanup(server.Close)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}
	return &testClient{t: t, server: server, client: &http.Client{Jar: jar}}
}

// do sends body as JSON and decodes the response into out when out is not nil
func (c *testClient) do(method, path string, body interface{}, out interface{}) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.server.URL+path, &buf)
	if err != nil {
		c.t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("failed to decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (c *testClient) open(path string) {
	c.t.Helper()
	if code := c.do("POST", "/document/open", map[string]interface{}{"path": path, "create": true}, nil); code != http.StatusOK {
		c.t.Fatalf("expected the document opened, got %d", code)
	}
}

func TestRequiresOpenDocument(t *testing.T) {
	c := newTestClient(t, Config{})
	var body map[string]string
	if code := c.do("GET", "/questions", nil, &body); code != http.StatusPreconditionRequired {
		t.Fatalf("expected 428, got %d", code)
	}
	if body["error"] == "" {
		t.Fatalf("expected an error message")
	}
}

func TestEditDocumentOverHTTP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.json")
	c := newTestClient(t, Config{})
	c.open(path)

	var added struct {
		Index int `json:"index"`
	}
	if code := c.do("POST", "/questions", map[string]string{"type": "mcq_multiple"}, &added); code != http.StatusOK {
		t.Fatalf("expected question added, got %d", code)
	}
	c.do("POST", "/questions", map[string]string{"type": "list_pick"}, nil)
	if code := c.do("POST", "/questions", map[string]string{"type": "crossword"}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown type, got %d", code)
	}

	var view struct {
		Form  mooceditor.MultiChoiceForm `json:"form"`
		Lists []string                   `json:"lists"`
	}
	if code := c.do("GET", "/questions/0/form", nil, &view); code != http.StatusOK {
		t.Fatalf("expected the form, got %d", code)
	}
	if len(view.Form.Options) != 3 || view.Lists[0] != "options" {
		t.Fatalf("unexpected form %+v", view)
	}

	bad := map[string]interface{}{"form": map[string]interface{}{"options": view.Form.Options, "correct": []bool{false, false, false}}}
	var verr map[string]string
	if code := c.do("PUT", "/questions/0/form", bad, &verr); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
	if verr["field"] != "correct" {
		t.Fatalf("expected the failing field, got %v", verr)
	}

	good := map[string]interface{}{
		"text": map[string]string{"question": "Quelles couleurs ?", "hint": ""},
		"form": map[string]interface{}{"options": view.Form.Options, "correct": []bool{false, true, true}},
	}
	if code := c.do("PUT", "/questions/0/form", good, nil); code != http.StatusOK {
		t.Fatalf("expected the form applied, got %d", code)
	}
	if code := c.do("DELETE", "/questions/0/items/options/1", nil, nil); code != http.StatusOK {
		t.Fatalf("expected the option deleted, got %d", code)
	}
	if code := c.do("DELETE", "/questions/0/items/options/1", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 at the minimum size, got %d", code)
	}

	var q map[string]interface{}
	if code := c.do("GET", "/questions/0", nil, &q); code != http.StatusOK {
		t.Fatalf("expected the question, got %d", code)
	}
	if answer := q["answer"].([]interface{}); len(answer) != 1 || answer[0].(float64) != 1 {
		t.Fatalf("expected the answer renumbered to [1], got %v", q["answer"])
	}
	var selected map[string]interface{}
	c.do("GET", "/questions/selected", nil, &selected)
	if selected["index"].(float64) != 0 {
		t.Fatalf("expected question 0 selected, got %v", selected)
	}
	if code := c.do("GET", "/questions/9", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}

	var moved struct {
		Index int `json:"index"`
	}
	c.do("POST", "/questions/0/move/up", nil, &moved)
	if moved.Index != 0 {
		t.Fatalf("expected moving the first question up to be a no-op, got %d", moved.Index)
	}
	c.do("POST", "/questions/0/move/down", nil, &moved)
	if moved.Index != 1 {
		t.Fatalf("expected the question moved to 1, got %d", moved.Index)
	}

	var validation struct {
		Valid bool `json:"valid"`
	}
	c.do("GET", "/validate", nil, &validation)
	if !validation.Valid {
		t.Fatalf("expected a valid document")
	}

	if code := c.do("POST", "/document/save", nil, nil); code != http.StatusOK {
		t.Fatalf("expected the document saved, got %d", code)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved file: %v", err)
	}
	var saved []map[string]interface{}
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("expected a JSON array on disk: %v", err)
	}
	if len(saved) != 2 || saved[1]["question"] != "Quelles couleurs ?" {
		t.Fatalf("unexpected saved document %v", saved)
	}
}

func TestImportAndAcceptSuggestions(t *testing.T) {
	c := newTestClient(t, Config{})
	c.open(filepath.Join(t.TempDir(), "quiz.json"))

	raw := "```json\n[{\"q_type\":\"List Pick\",\"question\":\"Pick fruits\",\"options\":[\"Apple\",\"Car\",\"Pear\"],\"réponses\":[\"Apple\",\"Pear\"]}, {\"q_type\":\"Crossword\"}]\n```"
	var batch struct {
		Total    int                             `json:"total"`
		Added    []*mooceditor.PendingSuggestion `json:"added"`
		Failures []mooceditor.Failure            `json:"failures"`
	}
	if code := c.do("POST", "/import", map[string]string{"response": raw}, &batch); code != http.StatusOK {
		t.Fatalf("expected the response imported, got %d", code)
	}
	if batch.Total != 2 || len(batch.Added) != 1 || len(batch.Failures) != 1 {
		t.Fatalf("unexpected batch %+v", batch)
	}
	if code := c.do("POST", "/import", map[string]string{"response": "pas de json"}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unparsable response, got %d", code)
	}

	var accepted struct {
		Report mooceditor.AcceptReport `json:"report"`
	}
	if code := c.do("POST", "/suggestions/accept", map[string][]string{"ids": {batch.Added[0].ID}}, &accepted); code != http.StatusOK {
		t.Fatalf("expected the suggestion accepted, got %d", code)
	}
	if len(accepted.Report.Added) != 1 {
		t.Fatalf("unexpected report %+v", accepted.Report)
	}
	var q map[string]interface{}
	c.do("GET", "/questions/0", nil, &q)
	if q["type"] != "list_pick" {
		t.Fatalf("expected the list pick in the document, got %v", q)
	}
	var pending []interface{}
	c.do("GET", "/suggestions", nil, &pending)
	if len(pending) != 0 {
		t.Fatalf("expected no pending suggestions, got %v", pending)
	}
	if code := c.do("DELETE", "/suggestions/nope", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestGenerateThroughServer(t *testing.T) {
	prompts := mooceditor.NewPromptStore(map[string]string{"MCQ Single Choice": "Questions sur {text}"})
	gen := mooceditor.NewGenerator(&stubEngine{response: `[{"question":"Capitale ?","réponse":"Paris","distracteurs":["Lyon","Nice","Caen"]}]`}, prompts)
	c := newTestClient(t, Config{Prompts: prompts, Generator: gen})

	var filled map[string]string
	c.do("POST", "/prompts/fill", map[string]string{"category": "MCQ Single Choice", "source_text": "la France"}, &filled)
	if filled["prompt"] != "Questions sur la France" {
		t.Fatalf("unexpected prompt %v", filled)
	}

	var batch struct {
		Added []*mooceditor.PendingSuggestion `json:"added"`
	}
	if code := c.do("POST", "/generate", map[string]string{"category": "MCQ Single Choice", "source_text": "la France"}, &batch); code != http.StatusOK {
		t.Fatalf("expected generation to succeed, got %d", code)
	}
	if len(batch.Added) != 1 || batch.Added[0].Question.Type != mooceditor.TypeMCQSingle {
		t.Fatalf("unexpected batch %+v", batch)
	}
	if batch.Added[0].Summary != "Q: Capitale ?\nA: Paris" {
		t.Fatalf("unexpected summary %q", batch.Added[0].Summary)
	}
}

func TestUnconfiguredRoutes(t *testing.T) {
	c := newTestClient(t, Config{})
	for _, route := range []struct{ method, path string }{
		{"POST", "/generate"},
		{"GET", "/history"},
		{"GET", "/history/abc"},
		{"GET", "/prompts"},
	} {
		if code := c.do(route.method, route.path, map[string]string{}, nil); code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: expected 503, got %d", route.method, route.path, code)
		}
	}
}

func TestTypesRoute(t *testing.T) {
	c := newTestClient(t, Config{})
	var types []typeInfo
	if code := c.do("GET", "/types", nil, &types); code != http.StatusOK {
		t.Fatalf("expected the catalog, got %d", code)
	}
	if len(types) != len(mooceditor.Types()) || types[0].Name == "" {
		t.Fatalf("unexpected catalog %+v", types)
	}
}
