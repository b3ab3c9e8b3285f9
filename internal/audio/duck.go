package audio

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

const maxVolume = 150

type Stream struct {
	ID      int
	Volume  int
	AppName string
}

type fade struct {
	id       int
	from, to int
}

// Mixer lists and adjusts playback streams. PulseAudio is the default.
type Mixer interface {
	Streams(ctx context.Context) ([]Stream, error)
	SetVolume(ctx context.Context, id, percent int) error
}

// Ducker lowers every other playback stream while the assistant talks and
// restores them afterwards. Streams whose application.name is in keep are
// left alone.
type Ducker struct {
	mu     sync.Mutex
	mixer  Mixer
	keep   []string
	floor  int
	factor float64
	fade   time.Duration

	active   bool
	original map[int]int
}

type DuckConfig struct {
	// Keep lists application names that are never ducked.
	Keep []string
	// Factor scales the other streams, e.g. 0.3.
	Factor float64
	// Floor is the lowest volume a ducked stream is set to, in percent.
	Floor int
	Fade  time.Duration
}

func NewDucker(mixer Mixer, cfg DuckConfig) *Ducker {
	if mixer == nil {
		mixer = Pactl{}
	}
	if cfg.Factor <= 0 || cfg.Factor > 1 {
		cfg.Factor = 0.3
	}
	return &Ducker{
		mixer:    mixer,
		keep:     slices.Clone(cfg.Keep),
		floor:    clampVolume(cfg.Floor),
		factor:   cfg.Factor,
		fade:     cfg.Fade,
		original: make(map[int]int),
	}
}

// Duck is a no-op when already ducked.
func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.mixer.Streams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	d.original = make(map[int]int)
	var fades []fade
	for _, s := range streams {
		if slices.Contains(d.keep, s.AppName) {
			continue
		}
		// The floor never raises a stream that is already quieter.
		to := min(s.Volume, max(int(math.Round(float64(s.Volume)*d.factor)), d.floor))
		d.original[s.ID] = s.Volume
		fades = append(fades, fade{id: s.ID, from: s.Volume, to: clampVolume(to)})
	}

	d.active = true
	return d.apply(ctx, fades)
}

// Restore brings ducked streams back to where they were. Streams that
// appeared after Duck are not touched.
func (d *Ducker) Restore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := d.mixer.Streams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	var fades []fade
	for _, s := range streams {
		orig, ok := d.original[s.ID]
		if !ok {
			continue
		}
		fades = append(fades, fade{id: s.ID, from: s.Volume, to: orig})
	}

	d.original = make(map[int]int)
	d.active = false
	return d.apply(ctx, fades)
}

func (d *Ducker) apply(ctx context.Context, fades []fade) error {
	if len(fades) == 0 {
		return nil
	}
	if d.fade <= 0 {
		for _, f := range fades {
			if err := d.mixer.SetVolume(ctx, f.id, f.to); err != nil {
				return fmt.Errorf("set volume id=%d: %w", f.id, err)
			}
		}
		return nil
	}

	const minStep = 10 * time.Millisecond
	steps := max(int(d.fade/minStep), 1)
	step := d.fade / time.Duration(steps)

	for i := 0; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		for _, f := range fades {
			v := int(math.Round(float64(f.from) + float64(f.to-f.from)*frac))
			if err := d.mixer.SetVolume(ctx, f.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", f.id, err)
			}
		}
		if i == steps {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step):
		}
	}
	return nil
}

func clampVolume(v int) int {
	return min(max(v, 0), maxVolume)
}

// Pactl drives PulseAudio (or pipewire-pulse) through the pactl binary.
type Pactl struct{}

func (Pactl) Streams(ctx context.Context) ([]Stream, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func (Pactl) SetVolume(ctx context.Context, id, percent int) error {
	arg := strconv.Itoa(clampVolume(percent)) + "%"
	return exec.CommandContext(ctx, "pactl", "set-sink-input-volume", strconv.Itoa(id), arg).Run()
}

// parseSinkInputs reads the output of `pactl list sink-inputs`.
func parseSinkInputs(text string) []Stream {
	blocks := strings.Split(text, "Sink Input #")
	var res []Stream

	for _, block := range blocks[1:] {
		header, body, ok := strings.Cut(block, "\n")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(header))
		if err != nil {
			continue
		}

		s := Stream{ID: id}
		for line := range strings.Lines(body) {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && s.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); m != nil {
					s.Volume, _ = strconv.Atoi(m[1])
				}
			}
			if v, ok := strings.CutPrefix(line, "application.name = "); ok && s.AppName == "" {
				s.AppName = strings.Trim(v, `"`)
			}
		}

		if s.Volume == 0 && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}
	return res
}
