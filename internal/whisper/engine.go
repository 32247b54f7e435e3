// Package whisper provides the speech recognizers: a local whisper.cpp
// engine (build tag whisper_cpp) and a remote OpenAI transcription client.
package whisper

import (
	"runtime"

	"github.com/obiente/translate/livetranslate/internal/transcript"
)

// Engine is a loaded local recognition model.
type Engine interface {
	transcript.Recognizer
	Close() error
}

// Options configure a local engine.
type Options struct {
	ModelPath string
	// Language is a whisper language code, or "auto" for detection.
	Language string
	// Threads defaults to the number of CPUs.
	Threads int
}

func (o Options) threads() uint {
	if o.Threads > 0 {
		return uint(o.Threads)
	}
	return uint(runtime.NumCPU())
}

func (o Options) language() string {
	if o.Language == "" {
		return "en"
	}
	return o.Language
}
