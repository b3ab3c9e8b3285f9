package audio

import (
	"testing"
	"time"
)

func TestSegmenter(t *testing.T) {
	t.Parallel()

	seg := newSegmenter(RecorderConfig{SilenceRMS: 0.1, SilenceHold: 60 * time.Millisecond})

	// Leading silence is dropped.
	if keep, done := seg.push(0.01); keep || done {
		t.Fatalf("leading silence: keep=%v done=%v", keep, done)
	}
	if keep, _ := seg.push(0.5); !keep {
		t.Fatal("speech frame should be kept")
	}
	// Short pauses inside speech are kept.
	for i := 0; i < 2; i++ {
		keep, done := seg.push(0.0)
		if !keep || done {
			t.Fatalf("pause frame %d: keep=%v done=%v", i, keep, done)
		}
	}
	if _, done := seg.push(0.0); !done {
		t.Fatal("expected utterance to end after the silence hold")
	}
}

func TestFrameRMS(t *testing.T) {
	t.Parallel()

	if got := frameRMS(nil); got != 0 {
		t.Errorf("empty frame rms = %v, want 0", got)
	}
	if got := frameRMS([]float32{0.5, -0.5, 0.5, -0.5}); got != 0.5 {
		t.Errorf("rms = %v, want 0.5", got)
	}
}

func TestNewRecorder_Defaults(t *testing.T) {
	t.Parallel()

	r := NewRecorder(RecorderConfig{})
	if r.cfg != DefaultRecorderConfig() {
		t.Errorf("cfg = %+v, want defaults", r.cfg)
	}
}
