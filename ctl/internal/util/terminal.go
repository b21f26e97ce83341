package util

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// TermRefresher gives a command a watch-style live view: everything printed to stdout between
// StartRefresh() and FinishRefresh() is captured, then the screen is cleared and the captured
// output is drawn in one write, optionally with a highlighted footer line. Capturing works by
// swapping os.Stdout for a pipe, so commands and the table printer keep using fmt as usual and
// the redraw does not flicker.
//
// StartRefresh() without a matching FinishRefresh() leaves stdout pointing at the pipe, so
// FinishRefresh() must be called on every path, even when the frame is discarded with
// WithCancelRefresh().
type TermRefresher struct {
	originalStdout *os.File
	pipeIn         *os.File
	pipeOut        *os.File
	width          int
	height         int
}

type refreshOpts struct {
	footer string
	cancel bool
}

type refreshOpt func(*refreshOpts)

// WithTermFooter draws footer as a highlighted line at the bottom of the refreshed screen.
func WithTermFooter(footer string) refreshOpt {
	return func(args *refreshOpts) {
		args.footer = footer
	}
}

// WithCancelRefresh discards the captured output and restores stdout without redrawing.
func WithCancelRefresh() refreshOpt {
	return func(args *refreshOpts) {
		args.cancel = true
	}
}

// StartRefresh begins capturing stdout for the next frame. It fails when stdout is not a
// terminal, which callers should treat as "--follow is unavailable here".
func (t *TermRefresher) StartRefresh() error {
	var err error
	t.width, t.height, err = term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return fmt.Errorf("error determining terminal size (is stdout a terminal?): %w", err)
	}
	t.pipeOut, t.pipeIn, err = os.Pipe()
	if err != nil {
		return fmt.Errorf("error setting up internal pipe: %w", err)
	}
	t.originalStdout = os.Stdout
	os.Stdout = t.pipeIn
	return nil
}

// FinishRefresh restores stdout and draws the captured frame.
func (t *TermRefresher) FinishRefresh(opts ...refreshOpt) error {
	args := &refreshOpts{}
	for _, opt := range opts {
		opt(args)
	}
	var buf bytes.Buffer
	t.pipeIn.Close()
	io.Copy(&buf, t.pipeOut)
	t.pipeOut.Close()
	os.Stdout = t.originalStdout
	if args.cancel {
		return nil
	}
	// Clear the screen and home the cursor before redrawing.
	fmt.Print("\033[H\033[2J")
	if args.footer != "" {
		// Leave the first row blank so the footer never overlaps the top of the frame.
		fmt.Println()
	}
	fmt.Print(buf.String())
	if args.footer != "" {
		t.printFooter(args.footer)
	}
	return nil
}

func (t *TermRefresher) printFooter(footerText string) {
	padding := t.width - len(footerText)
	if padding < 0 {
		padding = 0
	}
	// Park the cursor on the last row and draw the footer in inverse video across the full
	// terminal width.
	fmt.Printf("\033[%d;1H", t.height)
	fmt.Printf("\033[7m%s%s\033[0m", footerText, strings.Repeat(" ", padding))
}
