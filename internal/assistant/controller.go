package assistant

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"voxchat/internal/capture"
	"voxchat/internal/observe"
)

type Completer interface {
	Complete(ctx context.Context, text string) string
}

type Speaker interface {
	Speak(ctx context.Context, text, language string) error
}

// Cue is a non-verbal acknowledgement played on wake.
type Cue interface {
	Play() error
}

type State uint

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// Command is an out-of-band request, e.g. from the control socket.
type Command string

const (
	CmdStart    Command = "start"
	CmdStop     Command = "stop"
	CmdSend     Command = "send"
	CmdPlayback Command = "playback"
)

type Options struct {
	// Locale is handed to the recognizer and the speaker, e.g. "pt-BR".
	Locale   string
	Triggers Triggers

	// Acknowledgement is spoken after the wake phrase.
	Acknowledgement string

	// RestartDelay is waited before capture is re-armed.
	RestartDelay time.Duration

	// RequireWake drops dictation and send phrases until a wake phrase has
	// opened the current cycle.
	RequireWake bool

	// ResumeAfterSend re-arms capture once the reply has been spoken instead
	// of going idle.
	ResumeAfterSend bool

	Cue     Cue
	Metrics *observe.Metrics
}

const DefaultAcknowledgement = "Estou ouvindo"

// Controller owns the transcript, the last reply and the listening state.
// Everything except Submit must run on the goroutine that calls Run.
type Controller struct {
	rec  capture.Adapter
	spk  Speaker
	api  Completer
	opts Options

	state      State
	armed      bool
	transcript Transcript
	reply      string

	commands chan Command
}

func New(rec capture.Adapter, spk Speaker, api Completer, opts Options) *Controller {
	if opts.Acknowledgement == "" {
		opts.Acknowledgement = DefaultAcknowledgement
	}
	if len(opts.Triggers.Wake)+len(opts.Triggers.Playback)+len(opts.Triggers.Send) == 0 {
		opts.Triggers = DefaultTriggers()
	}
	return &Controller{
		rec:      rec,
		spk:      spk,
		api:      api,
		opts:     opts,
		commands: make(chan Command, 8),
	}
}

// Submit queues cmd for the Run goroutine. It is safe to call from anywhere.
func (c *Controller) Submit(ctx context.Context, cmd Command) error {
	select {
	case c.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts listening and processes capture events and commands until ctx
// is done or the capture input is exhausted.
func (c *Controller) Run(ctx context.Context) error {
	c.start(ctx)
	defer func() {
		if err := c.rec.Destroy(); err != nil {
			log.Warn("Failed to release capture", "err", err)
		}
	}()

	events := c.rec.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-c.commands:
			c.apply(ctx, cmd)
		case ev, ok := <-events:
			if !ok {
				log.Info("Capture closed")
				return nil
			}
			if err := c.handle(ctx, ev); errors.Is(err, capture.ErrClosed) {
				log.Info("Capture input exhausted")
				return nil
			}
		}
	}
}

// State, Transcript and Reply must be read from the Run goroutine.
func (c *Controller) State() State { return c.state }

func (c *Controller) Transcript() string { return c.transcript.String() }

func (c *Controller) Reply() string { return c.reply }

func (c *Controller) apply(ctx context.Context, cmd Command) {
	log.Debug("Command", "cmd", cmd, "state", c.state)

	switch cmd {
	case CmdStart:
		if c.state == Idle {
			c.start(ctx)
		}
	case CmdStop:
		c.stop()
	case CmdSend:
		c.send(ctx)
	case CmdPlayback:
		c.playback(ctx)
	default:
		log.Warn("Unknown command", "cmd", cmd)
	}
}

// handle processes one capture event. It only returns capture.ErrClosed,
// which ends the loop in any state.
func (c *Controller) handle(ctx context.Context, ev capture.Event) error {
	if ev.Kind == capture.EventError && errors.Is(ev.Err, capture.ErrClosed) {
		c.opts.Metrics.RecognitionEvent(ctx, "closed")
		c.stop()
		return capture.ErrClosed
	}
	if c.state != Listening {
		log.Debug("Ignoring event while idle", "kind", ev.Kind)
		return nil
	}

	switch ev.Kind {
	case capture.EventError:
		c.opts.Metrics.RecognitionEvent(ctx, "error")
		log.Error("Recognition failed", "err", ev.Err)
		c.restart(ctx)
		return nil

	case capture.EventEnd:
		c.opts.Metrics.RecognitionEvent(ctx, "end")
		log.Debug("End of speech")
		c.restart(ctx)
		return nil
	}

	utterance := strings.ToLower(strings.TrimSpace(ev.Text))
	if utterance == "" {
		c.opts.Metrics.RecognitionEvent(ctx, "empty")
		log.Debug("Empty result")
		c.restart(ctx)
		return nil
	}

	c.interpret(ctx, utterance)
	return nil
}

func (c *Controller) interpret(ctx context.Context, utterance string) {
	intent := Classify(utterance, c.opts.Triggers)
	c.opts.Metrics.Utterance(ctx, intent.String())

	log.Info("Heard", "intent", intent, "text", utterance)

	switch intent {
	case Wake:
		c.wake(ctx)
		c.restart(ctx)

	case Playback:
		c.playback(ctx)
		c.restart(ctx)

	case Send:
		if c.opts.RequireWake && !c.armed {
			log.Debug("Send ignored before wake")
			c.restart(ctx)
			return
		}
		c.send(ctx)

	case Dictate:
		if c.opts.RequireWake && !c.armed {
			log.Debug("Dictation ignored before wake")
		} else {
			c.transcript.Append(utterance)
		}
		c.restart(ctx)
	}
}

func (c *Controller) wake(ctx context.Context) {
	c.transcript.Clear()
	c.armed = true

	if c.opts.Cue != nil {
		if err := c.opts.Cue.Play(); err != nil {
			log.Warn("Failed to play cue", "err", err)
		}
	}
	c.speak(ctx, c.opts.Acknowledgement)
}

// playback reads the pending dictation, or the last reply when nothing has
// been dictated since.
func (c *Controller) playback(ctx context.Context) {
	text := c.transcript.String()
	if text == "" {
		text = c.reply
	}
	if text == "" {
		log.Warn("Nothing to play back")
		return
	}
	c.speak(ctx, text)
}

func (c *Controller) send(ctx context.Context) {
	c.stop()

	text := c.transcript.String()
	c.transcript.Clear()
	c.armed = false

	log.Info("Sending transcript", "lines", strings.Count(text, "\n")+1)

	c.reply = c.api.Complete(ctx, text)

	log.Info("Reply", "text", c.reply)
	c.speak(ctx, c.reply)

	if c.opts.ResumeAfterSend {
		c.start(ctx)
	}
}

func (c *Controller) speak(ctx context.Context, text string) {
	if err := c.spk.Speak(ctx, text, c.opts.Locale); err != nil {
		log.Error("Failed to voice out", "err", err)
	}
}

func (c *Controller) start(ctx context.Context) {
	if err := c.rec.Start(ctx, c.opts.Locale); err != nil {
		log.Error("Failed to start capture", "err", fmt.Errorf("start %s: %w", c.opts.Locale, err))
		c.state = Idle
		return
	}
	if c.state != Listening {
		log.Info("Listening", "locale", c.opts.Locale)
	}
	c.state = Listening
}

func (c *Controller) stop() {
	if c.state == Idle {
		return
	}
	c.state = Idle
	if err := c.rec.Stop(); err != nil {
		log.Warn("Failed to stop capture", "err", err)
	}
	log.Info("Stopped listening")
}

// restart re-arms capture after a result, error or end event.
func (c *Controller) restart(ctx context.Context) {
	if c.state != Listening {
		return
	}
	if err := c.rec.Stop(); err != nil {
		log.Warn("Failed to stop capture", "err", err)
	}
	c.opts.Metrics.Restart(ctx)

	if d := c.opts.RestartDelay; d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
	c.start(ctx)
}
