// Package bus is a JSON-over-websocket link to other shards: a remote
// recognizer that feeds utterances in, and a remote voice that speaks replies.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

const (
	KindListen = "listen"
	KindStop   = "stop"
	KindSpeak  = "speak"
	KindResult = "result"
	KindError  = "error"
	KindEnd    = "end"
)

// ErrMalformed marks a frame that is not a valid Message. The connection is
// still usable after it.
var ErrMalformed = errors.New("bus: malformed message")

type Message struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Kind     string `json:"kind"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// Bus wraps one websocket connection. Writes may come from several
// goroutines; reads must come from one.
type Bus struct {
	name string
	conn *websocket.Conn

	wmu sync.Mutex
}

func Dial(wsURL, name string) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse bus url: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial bus: %w", err)
	}

	log.Info("Connected to bus", "url", wsURL)
	return &Bus{name: name, conn: conn}, nil
}

func (b *Bus) Read() (*Message, error) {
	_, data, err := b.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	log.Debug("Read bus", "kind", m.Kind, "from", m.From)
	return &m, nil
}

// Send stamps the message with this shard's name and writes it.
func (b *Bus) Send(m Message) error {
	m.From = b.name
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	b.wmu.Lock()
	defer b.wmu.Unlock()

	log.Debug("Write bus", "kind", m.Kind, "to", m.To)
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

func (b *Bus) Close() error {
	b.wmu.Lock()
	defer b.wmu.Unlock()

	_ = b.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return b.conn.Close()
}

// IsClosed reports whether err means the peer went away.
func IsClosed(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure)
}
