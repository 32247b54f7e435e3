package sink

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/obiente/translate/livetranslate/internal/transcript"
)

func TestConsole(t *testing.T) {
	failure := transcript.NewStageError(transcript.ErrRecognition, 3, errors.New("boom"))
	tests := []struct {
		name       string
		rec        transcript.Record
		showErrors bool
		want       string
	}{
		{"speech", transcript.Record{SourceText: "hello", TranslatedText: "你好"}, false, "hello\n你好\n"},
		{"untranslated", transcript.Record{SourceText: "hello"}, false, "hello\n"},
		{"annotation hidden", transcript.Record{SourceText: "[MUSIC]", TranslatedText: "[音乐]"}, false, ""},
		{"silence hidden", transcript.Record{}, false, ""},
		{"error hidden", transcript.Record{Err: failure, Kind: transcript.KindRecognition}, false, ""},
		{"error shown", transcript.Record{Seq: 3, Start: time.Second, End: 2 * time.Second, Err: failure, Kind: transcript.KindRecognition}, true,
			"[1s-2s recognition_error] seq 3: recognition failed: boom\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			c := NewConsole(&buf, tt.showErrors)
			if err := c.Emit(tt.rec); err != nil {
				t.Fatalf("Emit: %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJSONL(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONL(&buf)
	recs := []transcript.Record{
		{Seq: 0, Start: 800 * time.Millisecond, End: 2500 * time.Millisecond, SourceText: "hi", TranslatedText: "嗨", Language: "en"},
		{Seq: 1, Err: transcript.NewStageError(transcript.ErrTranslation, 1, errors.New("503")), Kind: transcript.KindTranslation},
	}
	for _, r := range recs {
		if err := j.Emit(r); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first["start"] != 0.8 || first["end"] != 2.5 || first["kind"] != "ok" {
		t.Errorf("first line = %v", first)
	}
	if !strings.Contains(lines[1], `"kind":"translation_error"`) || !strings.Contains(lines[1], `"error":"seq 1: translation failed: 503"`) {
		t.Errorf("second line = %s", lines[1])
	}
}

func TestMulti(t *testing.T) {
	var a, b Collector
	bad := Func(func(transcript.Record) error { return errors.New("closed") })
	err := Multi{&a, bad, &b}.Emit(transcript.Record{Seq: 7})
	if err == nil {
		t.Error("expected joined error")
	}
	if len(a.Records()) != 1 || len(b.Records()) != 1 {
		t.Errorf("fan-out incomplete: %d, %d", len(a.Records()), len(b.Records()))
	}
}
