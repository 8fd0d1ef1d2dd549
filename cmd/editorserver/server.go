package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"mooceditor"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const sessionName = "editor-session"

// Config holds what the server is wired to. Generator, History and
// Launcher may be nil; the matching routes then answer 503.
type Config struct {
	SessionKey []byte
	Prompts    *mooceditor.PromptStore
	Generator  *mooceditor.Generator
	History    *mooceditor.HistoryDB
	Launcher   *mooceditor.Launcher
}

// Server edits quiz files over a JSON API. Each browser session works on
// one file at a time; sessions opening the same file share it.
type Server struct {
	store    *sessions.CookieStore
	prompts  *mooceditor.PromptStore
	gen      *mooceditor.Generator
	history  *mooceditor.HistoryDB
	launcher *mooceditor.Launcher
	pool     *mooceditor.SuggestionPool

	mu   sync.Mutex
	docs map[string]*openDoc
}

// openDoc serializes all access to one document
type openDoc struct {
	mu  sync.Mutex
	doc *mooceditor.Document
}

func NewServer(cfg Config) *Server {
	store := sessions.NewCookieStore(cfg.SessionKey)
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode
	return &Server{
		store:    store,
		prompts:  cfg.Prompts,
		gen:      cfg.Generator,
		history:  cfg.History,
		launcher: cfg.Launcher,
		pool:     mooceditor.NewSuggestionPool(),
		docs:     make(map[string]*openDoc),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/types", s.handleTypes)
	r.Post("/document/open", s.handleOpen)
	r.Post("/document/save", s.handleSave)
	r.Get("/validate", s.handleValidate)
	r.Post("/launch", s.handleLaunch)

	r.Route("/questions", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleAdd)
		r.Get("/selected", s.handleSelected)
		r.Route("/{i}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Put("/", s.handleReplace)
			r.Delete("/", s.handleDelete)
			r.Post("/move/{dir}", s.handleMove)
			r.Get("/form", s.handleGetForm)
			r.Put("/form", s.handlePutForm)
			r.Post("/items/{list}", s.handleAddItem)
			r.Delete("/items/{list}/{k}", s.handleDeleteItem)
		})
	})

	r.Get("/prompts", s.handlePrompts)
	r.Post("/prompts/fill", s.handleFillPrompt)
	r.Post("/generate", s.handleGenerate)
	r.Post("/import", s.handleImport)
	r.Get("/suggestions", s.handleSuggestions)
	r.Post("/suggestions/accept", s.handleAccept)
	r.Delete("/suggestions/{id}", s.handleDiscard)
	r.Get("/history", s.handleHistory)
	r.Get("/history/{id}", s.handleRun)

	return r
}

func (s *Server) respond(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	body := map[string]string{"error": err.Error()}

	var verr *mooceditor.ValidationError
	var perr *mooceditor.ParseError
	switch {
	case errors.As(err, &verr):
		code = http.StatusUnprocessableEntity
		body["field"] = verr.Field
	case errors.As(err, &perr):
		code = http.StatusBadRequest
	case errors.Is(err, mooceditor.ErrIndexOutOfRange), errors.Is(err, mooceditor.ErrRunNotFound), errors.Is(err, os.ErrNotExist):
		code = http.StatusNotFound
	case errors.Is(err, mooceditor.ErrUndecoded):
		code = http.StatusConflict
	case errors.Is(err, mooceditor.ErrFormat), errors.Is(err, mooceditor.ErrMinItems),
		errors.Is(err, mooceditor.ErrWrongForm), errors.Is(err, mooceditor.ErrUnknownType),
		errors.Is(err, mooceditor.ErrNotArray), errors.Is(err, mooceditor.ErrEmptyDocument),
		errors.Is(err, errBadRequest):
		code = http.StatusBadRequest
	case errors.Is(err, errNoDocument):
		code = http.StatusPreconditionRequired
	case errors.Is(err, errUnavailable):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
	}
	s.respond(w, code, body)
}

var (
	errBadRequest  = errors.New("bad request")
	errNoDocument  = errors.New("no document is open, POST /document/open first")
	errUnavailable = errors.New("not configured on this server")
)

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// current returns the session's open document
func (s *Server) current(r *http.Request) (*openDoc, *sessions.Session, error) {
	session, _ := s.store.Get(r, sessionName)
	path, _ := session.Values["path"].(string)

	s.mu.Lock()
	od := s.docs[path]
	s.mu.Unlock()
	if path == "" || od == nil {
		return nil, session, errNoDocument
	}
	return od, session, nil
}

// withDoc runs fn on the session's document while holding its lock
func (s *Server) withDoc(w http.ResponseWriter, r *http.Request, fn func(doc *mooceditor.Document) (interface{}, error)) {
	od, _, err := s.current(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	od.mu.Lock()
	v, err := fn(od.doc)
	od.mu.Unlock()
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, v)
}

// question returns the document's question at the {i} URL parameter
func question(doc *mooceditor.Document, r *http.Request) (int, *mooceditor.Question, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "i"))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: question index must be a number", errBadRequest)
	}
	q, err := doc.Get(i)
	if err != nil {
		return 0, nil, err
	}
	return i, q, nil
}

type questionRow struct {
	Index int             `json:"index"`
	Type  mooceditor.Type `json:"type"`
	Label string          `json:"label"`
}

func rows(doc *mooceditor.Document) []questionRow {
	out := make([]questionRow, doc.Len())
	for i, q := range doc.Questions() {
		out[i] = questionRow{Index: i, Type: q.Type, Label: doc.Label(i)}
	}
	return out
}

type typeInfo struct {
	Type     mooceditor.Type `json:"type"`
	Name     string          `json:"name"`
	Required []string        `json:"required"`
	Optional []string        `json:"optional"`
}

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	out := []typeInfo{}
	for _, t := range mooceditor.Types() {
		required, optional, err := mooceditor.FieldsOf(t)
		if err != nil {
			s.respondError(w, err)
			return
		}
		out = append(out, typeInfo{Type: t, Name: mooceditor.DisplayName(t), Required: required, Optional: optional})
	}
	s.respond(w, http.StatusOK, out)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path   string `json:"path"`
		Create bool   `json:"create"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if req.Path == "" {
		s.respondError(w, fmt.Errorf("%w: path is required", errBadRequest))
		return
	}
	path, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	s.mu.Lock()
	od, ok := s.docs[path]
	if !ok {
		doc, err := mooceditor.OpenDocument(path)
		if err != nil && req.Create && errors.Is(err, os.ErrNotExist) {
			doc = mooceditor.NewDocument()
			err = doc.Save(path)
		}
		if err != nil {
			s.mu.Unlock()
			s.respondError(w, err)
			return
		}
		od = &openDoc{doc: doc}
		s.docs[path] = od
		log.Printf("Opened %s (%d questions)", path, doc.Len())
	}
	s.mu.Unlock()

	session, _ := s.store.Get(r, sessionName)
	session.Values["path"] = path
	session.Values["selected"] = -1
	if err := session.Save(r, w); err != nil {
		s.respondError(w, fmt.Errorf("failed to save session: %w", err))
		return
	}

	od.mu.Lock()
	defer od.mu.Unlock()
	s.respond(w, http.StatusOK, map[string]interface{}{"path": path, "questions": rows(od.doc)})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			s.respondError(w, err)
			return
		}
	}
	s.withDoc(w, r, func(doc *mooceditor.Document) (interface{}, error) {
		if req.Path != "" && req.Path != doc.Path() {
			return nil, fmt.Errorf("%w: save as is not supported, open the new path with create", errBadRequest)
		}
		if err := doc.Save(""); err != nil {
			return nil, err
		}
		return map[string]interface{}{"path": doc.Path(), "saved": doc.Len()}, nil
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	s.withDoc(w, r, func(doc *mooceditor.Document) (interface{}, error) {
		issues := doc.Validate()
		if issues == nil {
			issues = []mooceditor.Issue{}
		}
		return map[string]interface{}{"valid": len(issues) == 0, "issues": issues}, nil
	})
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	if s.launcher == nil {
		s.respondError(w, fmt.Errorf("player launch is %w", errUnavailable))
		return
	}
	s.withDoc(w, r, func(doc *mooceditor.Document) (interface{}, error) {
		cmd, err := s.launcher.SaveAndLaunch(doc, "")
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"path": doc.Path(), "pid": cmd.Process.Pid}, nil
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.withDoc(w, r, func(doc *mooceditor.Document) (interface{}, error) {
		return rows(doc), nil
	})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type mooceditor.Type `json:"type"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	s.withDoc(w, r, func(doc *mooceditor.Document) (interface{}, error) {
		q, err := mooceditor.NewQuestion(req.Type)
		if err != nil {
			return nil, err
		}
		i := doc.Append(q)
		return map[string]interface{}{"index": i, "question": q}, nil
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	od, session, err := s.current(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	od.mu.Lock()
	defer od.mu.Unlock()

	i, q, err := question(od.doc, r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	session.Values["selected"] = i
	if err := session.Save(r, w); err != nil {
		s.respondError(w, fmt.Errorf("failed to save session: %w", err))
		return
	}
	s.respond(w, http.StatusOK, q)
}

func (s *Server) handleSelected(w http.ResponseWriter, r *http.Request) {
	s.withDoc(w, r, func(doc *mooceditor.Document) (interface{}, error) {
		session, _ := s.store.Get(r, sessionName)
		i, ok := session.Values["selected"].(int)
		if !ok || i < 0 || i >= doc.Len() {
			return map[string]interface{}{"index": -1}, nil
		}
		return map[string]interface{}{"index": i, "label": doc.Label(i)}, nil
	})
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	var replacement mooceditor.Question
	if err := decodeBody(r, &replacement); err != nil {
		s.respondError(w, err)
		return
	}
	if err := replacement.DecodeErr(); err != nil {
		s.respondError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	s.withDoc(w, r, func(doc *mooceditor.Document) (interface{}, error) {
		i, _, err := question(doc, r)
		if err != nil {
			return nil, err
		}
		if err := doc.Set(i, &replacement); err != nil {
			return nil, err
		}
		return map[string]interface{}{"index": i, "issues": nonNilIssues(mooceditor.CheckQuestion(&replacement))}, nil
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.withDoc(w, r, func(doc *mooceditor.Document) (interface{}, error) {
		i, _, err := question(doc, r)
		if err != nil {
			return nil, err
		}
		if err := doc.Delete(i); err != nil {
			return nil, err
		}
		return rows(doc), nil
	})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	dir, err := mooceditor.ParseDirection(chi.URLParam(r, "dir"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.withDoc(w, r, func(doc *mooceditor.Document) (interface{}, error) {
		i, _, err := question(doc, r)
		if err != nil {
			return nil, err
		}
		j, err := doc.Move(i, dir)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"index": j, "questions": rows(doc)}, nil
	})
}

// editForm is the full editable view of one question
type editForm struct {
	Text   *mooceditor.TextForm   `json:"text,omitempty"`
	Media  *mooceditor.MediaForm  `json:"media,omitempty"`
	Lesson *mooceditor.LessonForm `json:"lesson,omitempty"`
	Form   json.RawMessage        `json:"form,omitempty"`
	Lists  []string               `json:"lists,omitempty"`
}

func formView(q *mooceditor.Question) (*editForm, error) {
	form, err := mooceditor.FormFor(q)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}
	text := mooceditor.TextFormFor(q)
	media := mooceditor.MediaFormFor(q)
	lesson := mooceditor.LessonFormFor(q)
	return &editForm{Text: &text, Media: &media, Lesson: &lesson, Form: raw, Lists: mooceditor.Lists(q)}, nil
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	s.withDoc(w, r, func(doc *mooceditor.Document) (interface{}, error) {
		_, q, err := question(doc, r)
		if err != nil {
			return nil, err
		}
		return formView(q)
	})
}

func (s *Server) handlePutForm(w http.ResponseWriter, r *http.Request) {
	var in editForm
	if err := decodeBody(r, &in); err != nil {
		s.respondError(w, err)
		return
	}
	s.withDoc(w, r, func(doc *mooceditor.Document) (interface{}, error) {
		_, q, err := question(doc, r)
		if err != nil {
			return nil, err
		}
		if len(in.Form) > 0 {
			form, err := mooceditor.NewForm(q.Type)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(in.Form, form); err != nil {
				return nil, fmt.Errorf("%w: %v", errBadRequest, err)
			}
			if err := mooceditor.ApplyForm(q, form); err != nil {
				return nil, err
			}
		}
		if in.Text != nil {
			mooceditor.ApplyText(q, *in.Text)
		}
		if in.Media != nil {
			mooceditor.ApplyMedia(q, *in.Media)
		}
		if in.Lesson != nil {
			mooceditor.ApplyLesson(q, *in.Lesson)
		}
		doc.MarkDirty()
		return formView(q)
	})
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	s.withDoc(w, r, func(doc *mooceditor.Document) (interface{}, error) {
		_, q, err := question(doc, r)
		if err != nil {
			return nil, err
		}
		if err := mooceditor.AddItem(q, chi.URLParam(r, "list")); err != nil {
			return nil, err
		}
		doc.MarkDirty()
		return formView(q)
	})
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	k, err := strconv.Atoi(chi.URLParam(r, "k"))
	if err != nil {
		s.respondError(w, fmt.Errorf("%w: item index must be a number", errBadRequest))
		return
	}
	s.withDoc(w, r, func(doc *mooceditor.Document) (interface{}, error) {
		_, q, err := question(doc, r)
		if err != nil {
			return nil, err
		}
		if err := mooceditor.DeleteItem(q, chi.URLParam(r, "list"), k); err != nil {
			return nil, err
		}
		doc.MarkDirty()
		return formView(q)
	})
}

func (s *Server) handlePrompts(w http.ResponseWriter, r *http.Request) {
	if s.prompts == nil {
		s.respondError(w, fmt.Errorf("prompts are %w", errUnavailable))
		return
	}
	s.respond(w, http.StatusOK, s.prompts.Categories())
}

func (s *Server) handleFillPrompt(w http.ResponseWriter, r *http.Request) {
	if s.prompts == nil {
		s.respondError(w, fmt.Errorf("prompts are %w", errUnavailable))
		return
	}
	var req mooceditor.GenerationRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	prompt, err := s.prompts.Fill(req.Category, req.SourceText)
	if err != nil {
		s.respondError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"prompt": prompt})
}

type suggestionBatch struct {
	RunID    string                          `json:"run_id"`
	Total    int                             `json:"total"`
	Added    []*mooceditor.PendingSuggestion `json:"added"`
	Failures []mooceditor.Failure            `json:"failures"`
}

func (s *Server) queue(res *mooceditor.GenerationResult) suggestionBatch {
	ids := s.pool.AddResult(res)
	batch := suggestionBatch{RunID: res.RunID, Total: res.Total, Added: []*mooceditor.PendingSuggestion{}, Failures: res.Failures}
	for _, ps := range s.pool.List() {
		for _, id := range ids {
			if ps.ID == id {
				batch.Added = append(batch.Added, ps)
			}
		}
	}
	return batch
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.gen == nil {
		s.respondError(w, fmt.Errorf("model generation is %w", errUnavailable))
		return
	}
	var req mooceditor.GenerationRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	outcome := <-s.gen.GenerateAsync(r.Context(), req)
	if outcome.Err != nil {
		var perr *mooceditor.ParseError
		if errors.As(outcome.Err, &perr) {
			s.respondError(w, outcome.Err)
			return
		}
		s.respond(w, http.StatusBadGateway, map[string]string{"error": outcome.Err.Error()})
		return
	}
	s.respond(w, http.StatusOK, s.queue(outcome.Result))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
		Response string `json:"response"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if req.Category == "" {
		req.Category = mooceditor.SelfTagged
	}
	res, err := mooceditor.NewNormalizer().Normalize(req.Response, req.Category)
	if err != nil {
		s.respondError(w, err)
		return
	}
	result := &mooceditor.GenerationResult{
		RunID:       "import-" + uuid.NewString(),
		Category:    req.Category,
		Total:       res.Total,
		Suggestions: res.Suggestions,
		Failures:    res.Failures,
	}
	s.respond(w, http.StatusOK, s.queue(result))
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.pool.List())
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			s.respondError(w, err)
			return
		}
	}
	s.withDoc(w, r, func(doc *mooceditor.Document) (interface{}, error) {
		report, err := s.pool.AcceptInto(doc, req.IDs)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"report": report, "questions": rows(doc)}, nil
	})
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.pool.Take(id); !ok {
		s.respond(w, http.StatusNotFound, map[string]string{"error": "no pending suggestion " + id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, fmt.Errorf("history is %w", errUnavailable))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.history.GetRuns(limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, fmt.Errorf("history is %w", errUnavailable))
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.history.GetRun(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	items, err := s.history.GetRunItems(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{"run": run, "items": items})
}

func nonNilIssues(issues []mooceditor.Issue) []mooceditor.Issue {
	if issues == nil {
		return []mooceditor.Issue{}
	}
	return issues
}
