package sink

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/obiente/translate/livetranslate/internal/transcript"
)

const (
	ansiYellow = "\x1b[33m"
	ansiGreen  = "\x1b[32m"
	ansiRed    = "\x1b[31m"
	ansiReset  = "\x1b[0m"
)

// Console prints the source text and its translation on consecutive lines.
// Records that carry only annotation marks are hidden, as are silent ones
// unless ShowSilence is set.
type Console struct {
	w      io.Writer
	color  bool
	errors bool

	ShowSilence bool
}

// NewConsole writes to w. Colour is enabled when w is a terminal.
// showErrors prints failure records as a red line.
func NewConsole(w io.Writer, showErrors bool) *Console {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Console{w: w, color: color, errors: showErrors}
}

func (c *Console) Emit(r transcript.Record) error {
	if r.Err != nil {
		if !c.errors {
			return nil
		}
		_, err := fmt.Fprintf(c.w, "%s\n", c.paint(ansiRed, fmt.Sprintf("[%s %s] %v", stamp(r), r.Kind, r.Err)))
		return err
	}
	if r.NoSpeech() {
		if !c.ShowSilence {
			return nil
		}
		_, err := fmt.Fprintf(c.w, "[%s] ...\n", stamp(r))
		return err
	}
	if transcript.IsAnnotation(r.SourceText) || transcript.IsAnnotation(r.TranslatedText) {
		return nil
	}
	if _, err := fmt.Fprintln(c.w, c.paint(ansiYellow, r.SourceText)); err != nil {
		return err
	}
	if r.TranslatedText == "" {
		return nil
	}
	_, err := fmt.Fprintln(c.w, c.paint(ansiGreen, r.TranslatedText))
	return err
}

func (c *Console) paint(code, s string) string {
	if !c.color {
		return s
	}
	return code + s + ansiReset
}

func stamp(r transcript.Record) string {
	return fmt.Sprintf("%s-%s", r.Start.Truncate(100*time.Millisecond), r.End.Truncate(100*time.Millisecond))
}
