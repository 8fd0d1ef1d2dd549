package mooceditor

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

// editorLog carries every message of the editor package so they can be told
// apart from the messages of the front end embedding it.
var editorLog = log.New(os.Stderr, "mooceditor: ", log.LstdFlags)

// verbose is read by request handlers while the CLI may still set it
var verbose atomic.Bool

// SetVerbose turns detail logging on or off for the whole package
func SetVerbose(on bool) {
	verbose.Store(on)
}

func IsVerbose() bool {
	return verbose.Load()
}

// SetLogOutput redirects the package logger, for example to a log file.
func SetLogOutput(w io.Writer) {
	editorLog.SetOutput(w)
}

// VerboseLog logs only when verbose mode is enabled
func VerboseLog(format string, v ...interface{}) {
	if verbose.Load() {
		editorLog.Printf("[verbose] "+format, v...)
	}
}
