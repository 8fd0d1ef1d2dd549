package mooceditor

import (
	"errors"
	"fmt"
	"os/exec"
)

// DefaultPlayerPath is where the quiz player is installed on macOS
const DefaultPlayerPath = "/Applications/WifeyMOOC.app/Contents/MacOS/WifeyMOOC"

// ErrEmptyDocument is returned when saving and launching a document with no questions
var ErrEmptyDocument = errors.New("document has no questions")

// Launcher starts the quiz player on a saved document
type Launcher struct {
	Player string
}

func NewLauncher(player string) *Launcher {
	if player == "" {
		player = DefaultPlayerPath
	}
	return &Launcher{Player: player}
}

// Command returns the player invocation for path
func (l *Launcher) Command(path string) *exec.Cmd {
	return exec.Command(l.Player, "-q", path)
}

// SaveAndLaunch saves doc to path (its current path when empty) and starts
// the player on it without waiting. The player is reaped in the background.
func (l *Launcher) SaveAndLaunch(doc *Document, path string) (*exec.Cmd, error) {
	if doc.Len() == 0 {
		return nil, ErrEmptyDocument
	}
	if err := doc.Save(path); err != nil {
		return nil, err
	}
	return l.Launch(doc.Path())
}

// Launch starts the player on path and returns once the process is running
func (l *Launcher) Launch(path string) (*exec.Cmd, error) {
	cmd := l.Command(path)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", l.Player, err)
	}
	editorLog.Printf("Launched %s with %s (pid %d)", l.Player, path, cmd.Process.Pid)
	go func() {
		if err := cmd.Wait(); err != nil {
			VerboseLog("Player exited: %v", err)
		}
	}()
	return cmd, nil
}
