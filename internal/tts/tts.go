// Package tts reads text aloud.
package tts

import (
	"context"
	"fmt"
	"io"
	log "log/slog"

	"voxchat/internal/bus"
)

type Speaker interface {
	Speak(ctx context.Context, text, language string) error
}

// Console prints what would be spoken. Used in text mode and on machines
// without a speech engine.
type Console struct {
	w io.Writer
}

func NewConsole(w io.Writer) *Console { return &Console{w: w} }

func (c *Console) Speak(_ context.Context, text, language string) error {
	if text == "" {
		return nil
	}
	log.Debug("Speaking", "language", language, "chars", len(text))
	_, err := fmt.Fprintf(c.w, "» %s\n", text)
	return err
}

// Remote hands text to a voice shard on the bus.
type Remote struct {
	bus  *bus.Bus
	peer string
}

func NewRemote(b *bus.Bus, peer string) *Remote {
	return &Remote{bus: b, peer: peer}
}

func (r *Remote) Speak(_ context.Context, text, language string) error {
	if text == "" {
		return nil
	}
	return r.bus.Send(bus.Message{
		To:       r.peer,
		Kind:     bus.KindSpeak,
		Content:  text,
		Language: language,
	})
}

type Ducker interface {
	Duck(ctx context.Context) error
	Restore(ctx context.Context) error
}

// Ducked lowers other audio for the duration of each utterance.
type Ducked struct {
	Speaker
	ducker Ducker
}

func WithDucking(s Speaker, d Ducker) *Ducked {
	return &Ducked{Speaker: s, ducker: d}
}

func (d *Ducked) Speak(ctx context.Context, text, language string) error {
	if err := d.ducker.Duck(ctx); err != nil {
		log.Warn("Failed to duck other streams", "err", err)
	}
	defer func() {
		if err := d.ducker.Restore(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Failed to restore other streams", "err", err)
		}
	}()
	return d.Speaker.Speak(ctx, text, language)
}
