package capture

import (
	"bufio"
	"context"
	"io"
	log "log/slog"
	"sync"
)

// Lines treats every line read from r as one recognized utterance. Each Start
// consumes at most one line, mirroring a recognizer that stops after a result.
type Lines struct {
	lines  chan string
	events chan Event

	mu   sync.Mutex
	stop chan struct{}
}

func NewLines(r io.Reader) *Lines {
	l := &Lines{
		lines:  make(chan string),
		events: make(chan Event, 4),
	}
	go l.scan(r)
	return l
}

func (l *Lines) scan(r io.Reader) {
	defer close(l.lines)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		l.lines <- sc.Text()
	}
	if err := sc.Err(); err != nil {
		log.Warn("Line input failed", "err", err)
	}
}

func (l *Lines) Start(ctx context.Context, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stop != nil {
		close(l.stop)
	}
	stop := make(chan struct{})
	l.stop = stop

	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		case line, ok := <-l.lines:
			if !ok {
				l.events <- Event{Kind: EventError, Err: ErrClosed}
				return
			}
			l.events <- Event{Kind: EventResult, Text: line}
		}
	}()

	return nil
}

func (l *Lines) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
	return nil
}

func (l *Lines) Destroy() error {
	return l.Stop()
}

func (l *Lines) Events() <-chan Event {
	return l.events
}
