package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"strings"
	"sync"
)

// Source yields one utterance worth of 16 kHz mono PCM per call. It returns
// io.EOF once there is nothing left to record.
type Source interface {
	Next(ctx context.Context) ([]float32, error)
}

// Transcriber turns PCM into text for the given whisper language code.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32, language string) (string, error)
}

// PCM is an Adapter that records from a Source and transcribes locally.
type PCM struct {
	src Source
	tr  Transcriber

	events chan Event

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewPCM(src Source, tr Transcriber) *PCM {
	return &PCM{
		src:    src,
		tr:     tr,
		events: make(chan Event, 4),
	}
}

func (p *PCM) Start(ctx context.Context, locale string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	// Sources are not reentrant: the previous session must be out of Next
	// before the next one starts.
	if p.done != nil {
		<-p.done
	}
	sctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done

	lang := LanguageFromLocale(locale)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(done)
		p.session(sctx, lang)
	}()

	return nil
}

func (p *PCM) session(ctx context.Context, lang string) {
	pcm, err := p.src.Next(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = ErrClosed
		}
		p.emit(ctx, Event{Kind: EventError, Err: fmt.Errorf("record: %w", err)})
		return
	}
	if len(pcm) == 0 {
		p.emit(ctx, Event{Kind: EventEnd})
		return
	}

	log.Debug("Recorded", "samples", len(pcm))

	text, err := p.tr.Transcribe(ctx, pcm, lang)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.emit(ctx, Event{Kind: EventError, Err: fmt.Errorf("transcribe: %w", err)})
		return
	}

	p.emit(ctx, Event{Kind: EventResult, Text: strings.TrimSpace(text)})
}

func (p *PCM) emit(ctx context.Context, ev Event) {
	select {
	case p.events <- ev:
	case <-ctx.Done():
	}
}

func (p *PCM) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	return nil
}

func (p *PCM) Destroy() error {
	err := p.Stop()
	p.wg.Wait()
	return err
}

func (p *PCM) Events() <-chan Event {
	return p.events
}
