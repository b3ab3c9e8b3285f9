package capture

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync/atomic"

	"voxchat/internal/bus"
)

// Remote drives a recognizer living on another shard of the bus. Start and
// Stop are forwarded as listen/stop messages; result, error and end messages
// from the peer become events while a session is open.
type Remote struct {
	bus  *bus.Bus
	peer string

	events    chan Event
	listening atomic.Bool
}

func NewRemote(b *bus.Bus, peer string) *Remote {
	r := &Remote{
		bus:    b,
		peer:   peer,
		events: make(chan Event, 8),
	}
	go r.readLoop()
	return r
}

func (r *Remote) readLoop() {
	for {
		m, err := r.bus.Read()
		if errors.Is(err, bus.ErrMalformed) {
			log.Warn("Dropping bus message", "err", err)
			continue
		}
		if err != nil {
			if !bus.IsClosed(err) {
				log.Error("Bus read failed", "err", err)
			}
			r.events <- Event{Kind: EventError, Err: fmt.Errorf("bus: %w", ErrClosed)}
			return
		}
		if r.peer != "" && m.From != r.peer {
			continue
		}

		ev, ok := toEvent(m)
		if !ok {
			log.Debug("Ignoring bus message", "kind", m.Kind)
			continue
		}
		if !r.listening.Load() {
			log.Debug("Dropping event outside a session", "kind", m.Kind)
			continue
		}
		r.events <- ev
	}
}

func toEvent(m *bus.Message) (Event, bool) {
	switch m.Kind {
	case bus.KindResult:
		return Event{Kind: EventResult, Text: m.Content}, true
	case bus.KindError:
		return Event{Kind: EventError, Err: fmt.Errorf("remote recognizer: %s", m.Content)}, true
	case bus.KindEnd:
		return Event{Kind: EventEnd}, true
	default:
		return Event{}, false
	}
}

func (r *Remote) Start(_ context.Context, locale string) error {
	r.listening.Store(true)
	if err := r.bus.Send(bus.Message{To: r.peer, Kind: bus.KindListen, Language: locale}); err != nil {
		r.listening.Store(false)
		return fmt.Errorf("send listen: %w", err)
	}
	return nil
}

func (r *Remote) Stop() error {
	r.listening.Store(false)
	if err := r.bus.Send(bus.Message{To: r.peer, Kind: bus.KindStop}); err != nil {
		return fmt.Errorf("send stop: %w", err)
	}
	return nil
}

func (r *Remote) Destroy() error {
	return r.Stop()
}

func (r *Remote) Events() <-chan Event {
	return r.events
}
