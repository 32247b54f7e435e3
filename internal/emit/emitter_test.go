package emit

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/obiente/translate/livetranslate/internal/sink"
	"github.com/obiente/translate/livetranslate/internal/transcript"
)

func rec(seq uint64) transcript.Translated {
	return transcript.Translated{Recognized: transcript.Recognized{Seq: seq, Text: "x"}}
}

func seqs(recs []transcript.Record) []uint64 {
	out := make([]uint64, len(recs))
	for i, r := range recs {
		out[i] = r.Seq
	}
	return out
}

func TestEmitter_AnyPermutationIsOrdered(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(40)
		e := New(Config{MaxPending: 0, StallPolicy: StallWait, StallTimeout: time.Second}, nil)
		var out []transcript.Record
		for _, i := range rng.Perm(n) {
			out = append(out, e.Add(rec(uint64(i)))...)
		}
		out = append(out, e.Close()...)
		if len(out) != n {
			t.Fatalf("trial %d: emitted %d of %d", trial, len(out), n)
		}
		for i, r := range out {
			if r.Seq != uint64(i) {
				t.Fatalf("trial %d: position %d has seq %d", trial, i, r.Seq)
			}
		}
	}
}

func TestEmitter_FailedEarlierSeqGoesFirst(t *testing.T) {
	e := New(DefaultConfig(), nil)
	for i := uint64(0); i < 5; i++ {
		e.Add(rec(i))
	}
	// 6 completes before 5, and 5 is a failure.
	if got := e.Add(rec(6)); len(got) != 0 {
		t.Fatalf("seq 6 released early: %v", seqs(got))
	}
	failed := transcript.Translated{Recognized: transcript.Recognized{
		Seq: 5,
		Err: transcript.NewStageError(transcript.ErrRecognition, 5, errors.New("boom")),
	}}
	got := e.Add(failed)
	if len(got) != 2 || got[0].Seq != 5 || got[1].Seq != 6 {
		t.Fatalf("got %v, want [5 6]", seqs(got))
	}
	if got[0].Kind != transcript.KindRecognition {
		t.Errorf("seq 5 kind = %v", got[0].Kind)
	}
	if got[1].Kind != transcript.KindOK {
		t.Errorf("seq 6 kind = %v", got[1].Kind)
	}
}

func TestEmitter_DropsDuplicatesAndLate(t *testing.T) {
	e := New(DefaultConfig(), nil)
	e.Add(rec(0))
	if got := e.Add(rec(0)); len(got) != 0 {
		t.Errorf("late duplicate emitted: %v", seqs(got))
	}
	e.Add(rec(2))
	if got := e.Add(rec(2)); len(got) != 0 {
		t.Errorf("pending duplicate emitted: %v", seqs(got))
	}
	if e.Pending() != 1 {
		t.Errorf("pending = %d, want 1", e.Pending())
	}
}

func TestEmitter_CloseReportsGaps(t *testing.T) {
	e := New(DefaultConfig(), nil)
	e.Add(rec(0))
	e.Add(rec(2))
	e.Add(rec(4))
	got := e.Close()
	if want := []uint64{1, 2, 3, 4}; len(got) != len(want) {
		t.Fatalf("got %v, want %v", seqs(got), want)
	}
	for i, want := range []transcript.Kind{
		transcript.KindBackpressureStall, transcript.KindOK,
		transcript.KindBackpressureStall, transcript.KindOK,
	} {
		if got[i].Kind != want {
			t.Errorf("seq %d kind = %v, want %v", got[i].Seq, got[i].Kind, want)
		}
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestEmitter_StallPolicies(t *testing.T) {
	tests := []struct {
		policy   StallPolicy
		wantSkip bool
	}{
		{StallWait, false},
		{StallSkip, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			clock := &fakeClock{t: time.Unix(1000, 0)}
			var stalls []error
			e := New(Config{MaxPending: 2, StallPolicy: tt.policy, StallTimeout: time.Second}, nil)
			e.now = clock.now
			e.OnStall = func(err error) { stalls = append(stalls, err) }

			// Seq 0 never arrives.
			for i := uint64(1); i <= 3; i++ {
				if got := e.Add(rec(i)); len(got) != 0 {
					t.Fatalf("released %v while seq 0 missing", seqs(got))
				}
			}
			if len(stalls) != 1 || !errors.Is(stalls[0], transcript.ErrBackpressureStall) {
				t.Fatalf("stalls = %v", stalls)
			}

			clock.advance(500 * time.Millisecond)
			if got := e.Tick(); len(got) != 0 {
				t.Fatalf("acted before timeout: %v", seqs(got))
			}

			clock.advance(time.Second)
			got := e.Tick()
			if !tt.wantSkip {
				if len(got) != 0 {
					t.Fatalf("wait policy released %v", seqs(got))
				}
				if len(stalls) != 2 {
					t.Errorf("diagnostic not repeated after timeout: %d", len(stalls))
				}
				if got := e.Add(rec(0)); len(got) != 4 {
					t.Errorf("late arrival released %v, want [0 1 2 3]", seqs(got))
				}
				return
			}
			if len(got) != 4 || got[0].Kind != transcript.KindBackpressureStall {
				t.Fatalf("skip released %v", seqs(got))
			}
			if got := e.Add(rec(0)); len(got) != 0 {
				t.Errorf("skipped seq emitted twice: %v", seqs(got))
			}
		})
	}
}

func TestEmitter_Run(t *testing.T) {
	in := make(chan transcript.Translated, 8)
	for _, i := range []uint64{3, 1, 0, 2} {
		in <- rec(i)
	}
	close(in)

	var got sink.Collector
	if err := New(DefaultConfig(), nil).Run(context.Background(), in, &got); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s := seqs(got.Records()); len(s) != 4 || s[0] != 0 || s[3] != 3 {
		t.Errorf("got %v", s)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default: %v", err)
	}
	if err := (Config{StallPolicy: "drop", StallTimeout: time.Second}).Validate(); err == nil {
		t.Error("expected unknown policy to fail")
	}
}
