package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"mooceditor"
)

func (a *app) newFile(args []string) error {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing file")
	fs.Parse(args)

	if _, err := os.Stat(a.file); err == nil && !*force {
		return fmt.Errorf("%s already exists, use -force to replace it", a.file)
	}
	doc := mooceditor.NewDocument()
	if err := doc.Save(a.file); err != nil {
		return err
	}
	log.Printf("Created %s", a.file)
	return nil
}

func (a *app) list() error {
	doc, err := a.open()
	if err != nil {
		return err
	}
	if doc.Len() == 0 {
		fmt.Println("No questions yet.")
		return nil
	}
	for _, label := range doc.Labels() {
		fmt.Println(label)
	}
	return nil
}

func (a *app) types() error {
	for _, t := range mooceditor.Types() {
		required, optional, err := mooceditor.FieldsOf(t)
		if err != nil {
			return err
		}
		fmt.Printf("%-24s %s\n", t, mooceditor.DisplayName(t))
		fmt.Printf("    required: %s\n", strings.Join(required, ", "))
		fmt.Printf("    optional: %s\n", strings.Join(optional, ", "))
	}
	return nil
}

func (a *app) add(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing question type, see moocedit types")
	}
	doc, err := a.open()
	if err != nil {
		return err
	}
	q, err := mooceditor.NewQuestion(mooceditor.Type(args[0]))
	if err != nil {
		return err
	}
	i := doc.Append(q)
	if err := doc.Save(""); err != nil {
		return err
	}
	fmt.Println(doc.Label(i))
	return nil
}

func (a *app) delete(args []string) error {
	doc, err := a.open()
	if err != nil {
		return err
	}
	i, err := questionArg(doc, args, 0)
	if err != nil {
		return err
	}
	label := doc.Label(i)
	if err := doc.Delete(i); err != nil {
		return err
	}
	if err := doc.Save(""); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", label)
	return nil
}

func (a *app) move(args []string) error {
	doc, err := a.open()
	if err != nil {
		return err
	}
	i, err := questionArg(doc, args, 0)
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("missing direction, use up or down")
	}
	dir, err := mooceditor.ParseDirection(args[1])
	if err != nil {
		return err
	}
	j, err := doc.Move(i, dir)
	if err != nil {
		return err
	}
	if j == i {
		fmt.Println("Already at the edge, nothing moved.")
		return nil
	}
	if err := doc.Save(""); err != nil {
		return err
	}
	fmt.Println(doc.Label(j))
	return nil
}

func (a *app) show(args []string) error {
	doc, err := a.open()
	if err != nil {
		return err
	}
	i, err := questionArg(doc, args, 0)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	asForm := fs.Bool("form", false, "Print the editable form instead of the record")
	fs.Parse(args[1:])

	q, _ := doc.Get(i)
	var v interface{} = q
	if *asForm {
		form, err := mooceditor.FormFor(q)
		if err != nil {
			return err
		}
		v = struct {
			Text   mooceditor.TextForm   `json:"text"`
			Media  mooceditor.MediaForm  `json:"media"`
			Lesson mooceditor.LessonForm `json:"lesson"`
			Form   mooceditor.Form       `json:"form"`
		}{mooceditor.TextFormFor(q), mooceditor.MediaFormFor(q), mooceditor.LessonFormFor(q), form}
	}
	return printJSON(v)
}

func (a *app) edit(args []string) error {
	doc, err := a.open()
	if err != nil {
		return err
	}
	i, err := questionArg(doc, args, 0)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	formFile := fs.String("form-file", "", "File holding the form JSON (default: stdin)")
	fs.Parse(args[1:])

	data, err := readInput(*formFile)
	if err != nil {
		return err
	}
	q, _ := doc.Get(i)
	var in struct {
		Text   *mooceditor.TextForm   `json:"text"`
		Media  *mooceditor.MediaForm  `json:"media"`
		Lesson *mooceditor.LessonForm `json:"lesson"`
		Form   json.RawMessage        `json:"form"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to parse form: %w", err)
	}

	// payload first: it is the only part that can be rejected
	if len(in.Form) > 0 {
		form, err := mooceditor.NewForm(q.Type)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(in.Form, form); err != nil {
			return fmt.Errorf("failed to parse %s form: %w", q.Type, err)
		}
		if err := mooceditor.ApplyForm(q, form); err != nil {
			return err
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
	if err := doc.Save(""); err != nil {
		return err
	}
	fmt.Println(doc.Label(i))
	return nil
}

func (a *app) addItem(args []string) error {
	doc, err := a.open()
	if err != nil {
		return err
	}
	i, err := questionArg(doc, args, 0)
	if err != nil {
		return err
	}
	q, _ := doc.Get(i)
	if len(args) < 2 {
		return fmt.Errorf("missing list name, %s has: %s", q.Type, strings.Join(mooceditor.Lists(q), ", "))
	}
	if err := mooceditor.AddItem(q, args[1]); err != nil {
		return err
	}
	doc.MarkDirty()
	return doc.Save("")
}

func (a *app) deleteItem(args []string) error {
	doc, err := a.open()
	if err != nil {
		return err
	}
	i, err := questionArg(doc, args, 0)
	if err != nil {
		return err
	}
	if len(args) < 3 {
		return fmt.Errorf("usage: delete-item <n> <list> <k>")
	}
	k, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("%q is not an entry number", args[2])
	}
	q, _ := doc.Get(i)
	if err := mooceditor.DeleteItem(q, args[1], k-1); err != nil {
		return err
	}
	doc.MarkDirty()
	return doc.Save("")
}

func (a *app) setSequence(args []string) error {
	doc, err := a.open()
	if err != nil {
		return err
	}
	i, err := questionArg(doc, args, 0)
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("missing order, use [0, 1, 2] or 0, 1, 2")
	}
	q, _ := doc.Get(i)
	p, ok := q.Payload.(*mooceditor.SequenceAudio)
	if !ok {
		return fmt.Errorf("question %d is %s, not sequence_audio", i+1, q.Type)
	}
	if err := p.SetOrder(strings.Join(args[1:], " ")); err != nil {
		return err
	}
	doc.MarkDirty()
	if err := doc.Save(""); err != nil {
		return err
	}
	fmt.Printf("Order set to %s\n", mooceditor.FormatSequence(p.Answer))
	return nil
}

func (a *app) syncAlternatives(args []string) error {
	doc, err := a.open()
	if err != nil {
		return err
	}
	i, err := questionArg(doc, args, 0)
	if err != nil {
		return err
	}
	q, _ := doc.Get(i)
	p, ok := q.Payload.(*mooceditor.ImageTagging)
	if !ok {
		return fmt.Errorf("question %d is %s, not image_tagging", i+1, q.Type)
	}
	n := p.SyncAlternatives()
	if n == 0 {
		fmt.Println("Alternatives already match the base tags.")
		return nil
	}
	doc.MarkDirty()
	if err := doc.Save(""); err != nil {
		return err
	}
	fmt.Printf("Updated %d alternatives\n", n)
	return nil
}

func (a *app) check() error {
	doc, err := a.open()
	if err != nil {
		return err
	}
	issues := doc.Validate()
	if len(issues) == 0 {
		fmt.Printf("%s: %d questions, no problems found\n", a.file, doc.Len())
		return nil
	}
	for _, issue := range issues {
		fmt.Println(issue)
	}
	return fmt.Errorf("%d problems found", len(issues))
}

func sourceFlags(fs *flag.FlagSet) (category, text, textFile *string) {
	category = fs.String("category", "All", "Prompt category and question format")
	text = fs.String("text", "", "Source text for inspiration")
	textFile = fs.String("text-file", "", "File holding the source text")
	return
}

func sourceText(text, textFile string) (string, error) {
	if textFile != "" {
		data, err := os.ReadFile(textFile)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", textFile, err)
		}
		return string(data), nil
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("source text is required, use -text or -text-file")
	}
	return text, nil
}

func (a *app) prompt(args []string) error {
	fs := flag.NewFlagSet("prompt", flag.ExitOnError)
	category, text, textFile := sourceFlags(fs)
	fs.Parse(args)

	src, err := sourceText(*text, *textFile)
	if err != nil {
		return err
	}
	prompts, err := mooceditor.LoadPrompts(a.settings.PromptsPath)
	if err != nil {
		return err
	}
	filled, err := prompts.Fill(*category, src)
	if err != nil {
		return fmt.Errorf("%w (categories: %s)", err, strings.Join(prompts.Categories(), ", "))
	}
	fmt.Println(filled)
	return nil
}

func (a *app) importResponse(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	category := fs.String("category", "All", "Question format the response was asked for")
	responseFile := fs.String("response", "", "File holding the model response (default: stdin)")
	pick := fs.String("pick", "", "Suggestions to add, e.g. 1,3 (default: all)")
	dryRun := fs.Bool("dry-run", false, "Only show the suggestions")
	fs.Parse(args)

	raw, err := readInput(*responseFile)
	if err != nil {
		return err
	}
	res, err := mooceditor.NewNormalizer().Normalize(string(raw), *category)
	if err != nil {
		return err
	}
	result := &mooceditor.GenerationResult{
		RunID:       "import",
		Category:    *category,
		Raw:         string(raw),
		Total:       res.Total,
		Suggestions: res.Suggestions,
		Failures:    res.Failures,
		CreatedAt:   time.Now(),
	}
	return a.review(result, *pick, *dryRun)
}

func (a *app) generate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	category, text, textFile := sourceFlags(fs)
	provider := fs.String("provider", a.settings.Provider, "Model provider (gemini or openai)")
	model := fs.String("model", a.settings.Model, "Model name")
	apiKey := fs.String("api-key", "", "API key (or set GEMINI_API_KEY / OPENAI_API_KEY)")
	pick := fs.String("pick", "", "Suggestions to add, e.g. 1,3 (default: all)")
	dryRun := fs.Bool("dry-run", false, "Only show the suggestions")
	timeout := fs.Duration("timeout", 5*time.Minute, "Give up on the model after this long")
	fs.Parse(args)

	src, err := sourceText(*text, *textFile)
	if err != nil {
		return err
	}
	a.settings.Provider = *provider
	a.settings.Model = *model
	if *apiKey != "" {
		a.settings.GeminiAPIKey = *apiKey
		a.settings.OpenAIAPIKey = *apiKey
	}

	gen, history, err := a.settings.NewGenerator()
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Println("Generating questions... (this may take a moment)")
	outcome := <-gen.GenerateAsync(ctx, mooceditor.GenerationRequest{Category: *category, SourceText: src})
	if outcome.Err != nil {
		return outcome.Err
	}
	return a.review(outcome.Result, *pick, *dryRun)
}

// review prints the suggestions of a result and adds the picked ones
func (a *app) review(res *mooceditor.GenerationResult, pick string, dryRun bool) error {
	for _, f := range res.Failures {
		fmt.Printf("Dropped item %d (%s): %s\n", f.Index+1, f.Tag, f.Reason)
	}
	if len(res.Suggestions) == 0 {
		return fmt.Errorf("no usable questions in the response (%d items)", res.Total)
	}
	for k, s := range res.Suggestions {
		fmt.Printf("[%d] %s\n    %s\n", k+1, s.Question.Type, strings.ReplaceAll(s.Summary, "\n", "\n    "))
	}
	if dryRun {
		return nil
	}

	picks, err := parsePicks(pick, len(res.Suggestions))
	if err != nil {
		return err
	}
	doc, err := a.open()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		doc = mooceditor.NewDocument()
	}

	pool := mooceditor.NewSuggestionPool()
	ids := pool.AddResult(res)
	chosen := make([]string, len(picks))
	for i, k := range picks {
		chosen[i] = ids[k]
	}
	report, err := pool.AcceptInto(doc, chosen)
	if err != nil {
		return err
	}
	for _, skip := range report.Skipped {
		fmt.Printf("Skipped %s: %s\n", skip.SuggestionID, skip.Reason)
	}
	if len(report.Added) == 0 {
		fmt.Println("Nothing new to add.")
		return nil
	}
	if err := doc.Save(a.file); err != nil {
		return err
	}
	fmt.Printf("Added %d questions to %s\n", len(report.Added), a.file)
	return nil
}

func (a *app) history(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Number of runs to list")
	doImport := fs.Bool("import", false, "Add the questions of the run to the file")
	pick := fs.String("pick", "", "Questions to add, e.g. 1,3 (default: all)")

	var runID string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		runID, args = args[0], args[1:]
	}
	fs.Parse(args)

	db, err := mooceditor.OpenHistoryDB(a.settings.HistoryPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if runID == "" {
		runs, err := db.GetRuns(*limit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  %-10s %-30s %d/%d  %s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Status, r.Category, r.Mapped, r.Total, r.Engine)
		}
		return nil
	}

	run, err := db.GetRun(runID)
	if err != nil {
		return err
	}
	items, err := db.GetRunItems(runID)
	if err != nil {
		return err
	}
	fmt.Printf("Run %s (%s, %s): %s\n", run.ID, run.Category, run.Engine, run.Status)
	if run.Error != "" {
		fmt.Printf("Error: %s\n", run.Error)
	}
	for _, item := range items {
		detail := item.Reason
		if item.Status == mooceditor.ItemMapped {
			detail = strings.ReplaceAll(item.Summary, "\n", " | ")
		}
		fmt.Printf("  %d. %-8s %s: %s\n", item.ItemIndex+1, item.Status, item.Tag, detail)
	}
	if !*doImport {
		return nil
	}

	questions, err := db.MappedQuestions(runID)
	if err != nil {
		return err
	}
	res := &mooceditor.GenerationResult{RunID: run.ID, Category: run.Category, Total: len(questions)}
	for k, q := range questions {
		res.Suggestions = append(res.Suggestions, mooceditor.Suggestion{Index: k, Summary: q.Text, Question: q})
	}
	return a.review(res, *pick, false)
}

func (a *app) launch() error {
	doc, err := a.open()
	if err != nil {
		return err
	}
	launcher := mooceditor.NewLauncher(a.settings.PlayerPath)
	if _, err := launcher.SaveAndLaunch(doc, ""); err != nil {
		return err
	}
	fmt.Printf("Launched %s with %s\n", launcher.Player, doc.Path())
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
