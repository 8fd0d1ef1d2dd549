package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"mooceditor"
)

const usage = `Usage: moocedit [flags] <command> [args]

Commands:
  new                          create an empty quiz file
  list                         list the questions
  types                        list the question types and their fields
  add <type>                   append a default question of <type>
  delete <n>                   delete question n
  move <n> up|down             swap question n with its neighbour
  show <n> [-form]             print question n, or its editable form
  edit <n> [-form-file f]      apply a form (JSON, stdin by default) to question n
  add-item <n> <list>          append a default entry to a list of question n
  delete-item <n> <list> <k>   delete entry k of a list of question n
  set-sequence <n> <order>     set the clip order of a sequence_audio question
  sync-alternatives <n>        give every alternative image the base tags
  check                        validate the whole file
  prompt [-category c]         print the filled prompt for offline generation
  import [-category c]         import a pasted model response (stdin by default)
  generate [-category c]       generate questions with the configured model
  history [run-id] [-import]   list generation runs, show one, or import its questions
  launch                       save and open the file in the quiz player

Questions and list entries are numbered from 1.

Flags:
`

func main() {
	var (
		file         = flag.String("file", "questions.json", "Quiz file to edit")
		settingsPath = flag.String("settings", "", "Settings file (default: mooceditor.yaml if present)")
		verbose      = flag.Bool("verbose", false, "Enable verbose debugging output")
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	mooceditor.SetVerbose(*verbose)

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	settings, err := mooceditor.LoadSettings(*settingsPath)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	app := &app{file: *file, settings: settings}
	cmd, args := flag.Arg(0), flag.Args()[1:]
	if err := app.run(cmd, args); err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

type app struct {
	file     string
	settings *mooceditor.Settings
}

func (a *app) run(cmd string, args []string) error {
	switch cmd {
	case "new":
		return a.newFile(args)
	case "list":
		return a.list()
	case "types":
		return a.types()
	case "add":
		return a.add(args)
	case "delete":
		return a.delete(args)
	case "move":
		return a.move(args)
	case "show":
		return a.show(args)
	case "edit":
		return a.edit(args)
	case "add-item":
		return a.addItem(args)
	case "delete-item":
		return a.deleteItem(args)
	case "set-sequence":
		return a.setSequence(args)
	case "sync-alternatives":
		return a.syncAlternatives(args)
	case "check":
		return a.check()
	case "prompt":
		return a.prompt(args)
	case "import":
		return a.importResponse(args)
	case "generate":
		return a.generate(args)
	case "history":
		return a.history(args)
	case "launch":
		return a.launch()
	}
	return fmt.Errorf("unknown command, run moocedit -h for the list")
}

func (a *app) open() (*mooceditor.Document, error) {
	return mooceditor.OpenDocument(a.file)
}

// questionArg reads a 1-based question number and returns its 0-based index
func questionArg(doc *mooceditor.Document, args []string, pos int) (int, error) {
	if len(args) <= pos {
		return 0, fmt.Errorf("missing question number")
	}
	n, err := strconv.Atoi(args[pos])
	if err != nil {
		return 0, fmt.Errorf("%q is not a question number", args[pos])
	}
	if n < 1 || n > doc.Len() {
		return 0, fmt.Errorf("question %d does not exist, the file has %d", n, doc.Len())
	}
	return n - 1, nil
}

// parsePicks reads "1,3,4" into 0-based indices below n
func parsePicks(s string, n int) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	var out []int
	for _, field := range strings.Split(s, ",") {
		k, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || k < 1 || k > n {
			return nil, fmt.Errorf("%q is not a suggestion number between 1 and %d", field, n)
		}
		out = append(out, k-1)
	}
	return out, nil
}
