package bus

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// echo serves one websocket that sends every frame it gets straight back.
func echo(t *testing.T) string {
	t.Helper()
	var up websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBus_SendStampsSender(t *testing.T) {
	t.Parallel()

	b, err := Dial(echo(t), "voxchat")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer b.Close()

	if err := b.Send(Message{From: "spoofed", To: "voice", Kind: KindSpeak, Content: "olá", Language: "pt-BR"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	m, err := b.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := Message{From: "voxchat", To: "voice", Kind: KindSpeak, Content: "olá", Language: "pt-BR"}
	if *m != want {
		t.Errorf("message = %+v, want %+v", *m, want)
	}
}

func TestBus_MalformedFrame(t *testing.T) {
	t.Parallel()

	b, err := Dial(echo(t), "voxchat")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer b.Close()

	b.wmu.Lock()
	err = b.conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	b.wmu.Unlock()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := b.Read(); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}

	// The link survives a bad frame.
	_ = b.Send(Message{Kind: KindStop})
	if m, err := b.Read(); err != nil || m.Kind != KindStop {
		t.Fatalf("after bad frame: %+v, %v", m, err)
	}
}

func TestDial_Unreachable(t *testing.T) {
	t.Parallel()

	if _, err := Dial("ws://127.0.0.1:1/ws", "voxchat"); err == nil {
		t.Fatal("expected dial error")
	}
}
