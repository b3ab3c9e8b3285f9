package audio

import (
	"context"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	SampleRate = 16000
	frameSize  = 320 // 20ms
)

type RecorderConfig struct {
	SilenceRMS  float64       // frames below this are silence
	SilenceHold time.Duration // trailing silence that ends an utterance
	MaxLength   time.Duration // hard cap per utterance
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		SilenceRMS:  0.015,
		SilenceHold: 600 * time.Millisecond,
		MaxLength:   10 * time.Second,
	}
}

// Recorder captures one utterance per Next call from the default input
// device, trimming leading silence and stopping after trailing silence.
type Recorder struct {
	cfg RecorderConfig
}

func NewRecorder(cfg RecorderConfig) *Recorder {
	def := DefaultRecorderConfig()
	if cfg.SilenceRMS <= 0 {
		cfg.SilenceRMS = def.SilenceRMS
	}
	if cfg.SilenceHold <= 0 {
		cfg.SilenceHold = def.SilenceHold
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = def.MaxLength
	}
	return &Recorder{cfg: cfg}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Next records until the speaker goes quiet, MaxLength elapses or ctx is
// done. A window with no speech at all yields an empty slice.
func (r *Recorder) Next(ctx context.Context) ([]float32, error) {
	buf := make([]float32, frameSize)
	out := make([]float32, 0, SampleRate*3)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	seg := newSegmenter(r.cfg)
	maxFrames := int(r.cfg.MaxLength / frameDuration)

	for range maxFrames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}

		keep, done := seg.push(frameRMS(buf))
		if keep {
			out = append(out, buf...)
		}
		if done {
			break
		}
	}

	return out, nil
}

const frameDuration = time.Second * frameSize / SampleRate

// segmenter decides per frame whether to keep audio and when the utterance
// is over.
type segmenter struct {
	threshold  float64
	holdFrames int

	speaking bool
	silent   int
}

func newSegmenter(cfg RecorderConfig) *segmenter {
	return &segmenter{
		threshold:  cfg.SilenceRMS,
		holdFrames: max(1, int(cfg.SilenceHold/frameDuration)),
	}
}

func (s *segmenter) push(rms float64) (keep, done bool) {
	if rms > s.threshold {
		s.speaking = true
		s.silent = 0
		return true, false
	}
	if !s.speaking {
		return false, false
	}
	s.silent++
	if s.silent >= s.holdFrames {
		return false, true
	}
	return true, false
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
