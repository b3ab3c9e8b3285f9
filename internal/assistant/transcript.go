package assistant

import "strings"

// Transcript accumulates dictated utterances, one per line. It is owned by
// the controller goroutine and is not safe for concurrent use.
type Transcript struct {
	lines []string
}

func (t *Transcript) Append(utterance string) {
	t.lines = append(t.lines, utterance)
}

func (t *Transcript) Clear() {
	t.lines = nil
}

func (t *Transcript) Len() int {
	return len(t.lines)
}

func (t *Transcript) String() string {
	return strings.Join(t.lines, "\n")
}
