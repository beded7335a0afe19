package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"bilagscraper/internal/downloader"
)

// ASCIILogo is printed at the start of interactive commands
const ASCIILogo = `
    ╔════════════════════════════════════════════════════════╗
    ║  ██████╗ ██╗██╗      █████╗  ██████╗                   ║
    ║  ██╔══██╗██║██║     ██╔══██╗██╔════╝                   ║
    ║  ██████╔╝██║██║     ███████║██║  ███╗                  ║
    ║  ██╔══██╗██║██║     ██╔══██║██║   ██║                  ║
    ║  ██████╔╝██║███████╗██║  ██║╚██████╔╝                  ║
    ║  ╚═════╝ ╚═╝╚══════╝╚═╝  ╚═╝ ╚═════╝  receipt fetcher  ║
    ╚════════════════════════════════════════════════════════╝
`

var (
	outMu    sync.Mutex
	out      io.Writer = os.Stdout
	colorOff atomic.Bool
)

// SetOutput redirects everything this package prints. nil restores stdout.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	out = w
}

// SetColor turns ANSI colors on or off
func SetColor(enabled bool) {
	colorOff.Store(!enabled)
}

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		if colorOff.Load() {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

func printLine(s string) {
	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprintln(out, s)
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprint(out, Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	printLine(Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	printLine(Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	printLine(fmt.Sprintf("%s: %s", Cyan(label), Yellow(value)))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	printLine(Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	printLine(Magenta(msg))
}

// FetchReporter prints one line per fetched document. It is safe for use
// from several workers.
type FetchReporter struct{}

// Report prints r's message, colored by outcome
func (FetchReporter) Report(r downloader.Result) {
	msg := r.Message()
	switch r.Outcome {
	case downloader.OutcomeDownloaded:
		printLine(Green(msg))
	case downloader.OutcomeAuthFailed, downloader.OutcomeSessionExpired, downloader.OutcomeCancelled:
		printLine(Yellow(msg))
	default:
		printLine(Red(msg))
	}
}
