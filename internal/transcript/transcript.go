// Package transcript holds the records that flow between pipeline stages and
// the capability interfaces the pipeline uses to reach the recognition and
// translation backends.
package transcript

import (
	"context"
	"regexp"
	"time"
)

// SampleRate is the canonical PCM rate used everywhere after resampling.
const SampleRate = 16000

// Utterance is one bounded span of canonical audio. Seq is assigned once by
// the segmenter and is the only ordering key used downstream.
type Utterance struct {
	Seq   uint64
	PCM   []float32
	Start time.Duration
	End   time.Duration
}

// Duration returns the length of the utterance audio.
func (u Utterance) Duration() time.Duration {
	return SamplesToDuration(int64(len(u.PCM)))
}

// Recognition is what a Recognizer returns for a single utterance.
// Empty Text means no speech was detected.
type Recognition struct {
	Text     string
	Language string
}

// Recognizer turns canonical PCM into text.
type Recognizer interface {
	Recognize(ctx context.Context, pcm []float32) (Recognition, error)
}

// Translator turns source-language text into target-language text.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(ctx context.Context, pcm []float32) (Recognition, error)

func (f RecognizerFunc) Recognize(ctx context.Context, pcm []float32) (Recognition, error) {
	return f(ctx, pcm)
}

// TranslatorFunc adapts a function to the Translator interface.
type TranslatorFunc func(ctx context.Context, text string) (string, error)

func (f TranslatorFunc) Translate(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Recognized is the output of the recognition stage. The PCM of the
// utterance is released once recognition completes.
type Recognized struct {
	Seq      uint64
	Start    time.Duration
	End      time.Duration
	Text     string
	Language string
	Err      error

	// Elapsed is how long the recognizer call took.
	Elapsed time.Duration
}

// NoSpeech reports whether recognition succeeded but found nothing to say.
func (r Recognized) NoSpeech() bool { return r.Err == nil && r.Text == "" }

// Translated is the output of the translation stage.
type Translated struct {
	Recognized
	Translation string
	// TranslateErr is set when the translator failed; Recognized.Err is
	// carried through unchanged when recognition itself failed.
	TranslateErr error
}

// Error returns the first failure attached to the record, if any.
func (t Translated) Error() error {
	if t.Err != nil {
		return t.Err
	}
	return t.TranslateErr
}

// Record is the sink contract: one per utterance, delivered in Seq order.
// Silence records have empty SourceText and a nil Err.
type Record struct {
	Seq            uint64        `json:"seq"`
	Start          time.Duration `json:"start"`
	End            time.Duration `json:"end"`
	SourceText     string        `json:"source_text,omitempty"`
	TranslatedText string        `json:"translated_text,omitempty"`
	Language       string        `json:"language,omitempty"`
	Kind           Kind          `json:"kind"`
	Err            error         `json:"-"`
}

// NewRecord converts a stage result into its sink form.
func NewRecord(t Translated) Record {
	err := t.Error()
	return Record{
		Seq:            t.Seq,
		Start:          t.Start,
		End:            t.End,
		SourceText:     t.Text,
		TranslatedText: t.Translation,
		Language:       t.Language,
		Kind:           KindOf(err),
		Err:            err,
	}
}

// NoSpeech reports whether the record is an empty-speech record.
func (r Record) NoSpeech() bool { return r.Err == nil && r.SourceText == "" }

// SamplesToDuration converts a canonical sample count into stream time.
func SamplesToDuration(n int64) time.Duration {
	whole := time.Duration(n/SampleRate) * time.Second
	return whole + time.Duration(n%SampleRate)*time.Second/SampleRate
}

// DurationToSamples converts stream time into a canonical sample count.
func DurationToSamples(d time.Duration) int {
	return int(int64(d) * SampleRate / int64(time.Second))
}

// annotation matches text made only of bracketed marks such as "[MUSIC]",
// "(silence)" or "[BLANK_AUDIO] (wind)".
var annotation = regexp.MustCompile(`^(\s*(\[[^\]]*\]|\([^)]*\)|\*[^*]*\*))+\s*$`)

// IsAnnotation reports whether text carries no words, only bracketed
// non-speech marks emitted by recognizers.
func IsAnnotation(text string) bool {
	return annotation.MatchString(text)
}
