package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error taxonomy. Stream-scoped: ErrDevice. Everything else is scoped to a
// single frame or utterance and never stops the pipeline.
var (
	// ErrDevice means the audio source failed and no more samples will arrive.
	ErrDevice = errors.New("audio device failure")

	// ErrResample means an input frame was malformed and has been dropped.
	ErrResample = errors.New("malformed audio frame")

	// ErrRecognition means the recognizer failed for one utterance.
	ErrRecognition = errors.New("recognition failed")

	// ErrTranslation means the translator failed for one utterance.
	ErrTranslation = errors.New("translation failed")

	// ErrBackpressureStall means the ordered emitter is holding more records
	// than allowed because an earlier sequence number has not completed.
	ErrBackpressureStall = errors.New("backpressure stall")
)

// Kind classifies a record's outcome for consumers that do not want to
// inspect errors.
type Kind int

const (
	KindOK Kind = iota
	KindDevice
	KindResample
	KindRecognition
	KindTranslation
	KindBackpressureStall
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindDevice:
		return "device_error"
	case KindResample:
		return "resample_error"
	case KindRecognition:
		return "recognition_error"
	case KindTranslation:
		return "translation_error"
	case KindBackpressureStall:
		return "backpressure_stall"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind as its string name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// KindOf maps an error onto the taxonomy. A nil error is KindOK.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrDevice):
		return KindDevice
	case errors.Is(err, ErrResample):
		return KindResample
	case errors.Is(err, ErrRecognition):
		return KindRecognition
	case errors.Is(err, ErrTranslation):
		return KindTranslation
	case errors.Is(err, ErrBackpressureStall):
		return KindBackpressureStall
	default:
		return KindUnknown
	}
}

// StageError attaches a sequence number and a taxonomy sentinel to a
// collaborator failure so consumers can correlate it with a time range.
type StageError struct {
	Kind error
	Seq  uint64
	Err  error
}

// NewStageError wraps err for the utterance with the given seq.
func NewStageError(kind error, seq uint64, err error) *StageError {
	return &StageError{Kind: kind, Seq: seq, Err: err}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("seq %d: %v", e.Seq, e.Kind)
	}
	return fmt.Sprintf("seq %d: %v: %v", e.Seq, e.Kind, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
