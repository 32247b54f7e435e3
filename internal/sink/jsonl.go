package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/obiente/translate/livetranslate/internal/transcript"
)

// Line is the JSON-lines wire form of a record. Times are seconds from the
// start of the stream.
type Line struct {
	Seq            uint64          `json:"seq"`
	Start          float64         `json:"start"`
	End            float64         `json:"end"`
	SourceText     string          `json:"source_text"`
	TranslatedText string          `json:"translated_text"`
	Language       string          `json:"language,omitempty"`
	Kind           transcript.Kind `json:"kind"`
	Error          string          `json:"error,omitempty"`
}

// NewLine converts a record to its wire form.
func NewLine(r transcript.Record) Line {
	l := Line{
		Seq:            r.Seq,
		Start:          seconds(r.Start),
		End:            seconds(r.End),
		SourceText:     r.SourceText,
		TranslatedText: r.TranslatedText,
		Language:       r.Language,
		Kind:           r.Kind,
	}
	if r.Err != nil {
		l.Error = r.Err.Error()
	}
	return l
}

// JSONL writes one JSON object per record.
type JSONL struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONL(w io.Writer) *JSONL {
	return &JSONL{enc: json.NewEncoder(w)}
}

func (j *JSONL) Emit(r transcript.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(NewLine(r)); err != nil {
		return fmt.Errorf("encode record %d: %w", r.Seq, err)
	}
	return nil
}

func seconds(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000
}
