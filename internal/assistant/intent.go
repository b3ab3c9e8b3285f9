// Package assistant runs the listen, accumulate, send and speak cycle. Each
// recognized utterance is classified by trigger phrase; plain dictation is
// buffered until a send phrase forwards it to the completion API and the
// reply is read aloud.
package assistant

import "strings"

type Intent uint

const (
	Dictate Intent = iota
	Wake
	Playback
	Send
)

func (i Intent) String() string {
	switch i {
	case Dictate:
		return "dictate"
	case Wake:
		return "wake"
	case Playback:
		return "playback"
	case Send:
		return "send"
	default:
		return "unknown"
	}
}

// Triggers holds the phrases that switch intent. Matching is a
// case-insensitive substring test.
type Triggers struct {
	Wake     []string
	Playback []string
	Send     []string
}

func DefaultTriggers() Triggers {
	return Triggers{
		Wake:     []string{"oi chat", "oi jarvis"},
		Playback: []string{"reproduza"},
		Send:     []string{"envie", "enviar"},
	}
}

// Classify checks wake, then playback, then send phrases; the first hit
// wins and anything else is dictation.
func Classify(utterance string, t Triggers) Intent {
	u := strings.ToLower(utterance)
	switch {
	case containsAny(u, t.Wake):
		return Wake
	case containsAny(u, t.Playback):
		return Playback
	case containsAny(u, t.Send):
		return Send
	default:
		return Dictate
	}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}
