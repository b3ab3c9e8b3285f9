// Package capture wraps speech recognizers behind a start/stop adapter that
// reports recognition results, errors and end-of-input as events.
package capture

import (
	"context"
	"errors"
	"strings"
)

// ErrClosed is reported (wrapped in an Error event) when the underlying input
// has no more speech to offer: EOF on a reader, a closed bus, no files left.
var ErrClosed = errors.New("capture: input closed")

type EventKind uint

const (
	EventResult EventKind = iota
	EventError
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventResult:
		return "result"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// Adapter is a speech recognizer. Start begins one recognition session, whose
// outcome is delivered on Events. Stop abandons the current session. Destroy
// releases everything; the adapter is unusable afterwards.
type Adapter interface {
	Start(ctx context.Context, locale string) error
	Stop() error
	Destroy() error
	Events() <-chan Event
}

// LanguageFromLocale maps a BCP-47 locale such as "pt-BR" to the bare
// language code whisper expects ("pt"). Empty means auto-detect.
func LanguageFromLocale(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return "auto"
	}
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	return strings.ToLower(locale)
}
