package ipc

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// socketPath stays short; unix socket paths are limited to ~100 bytes.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "vc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func TestSendCommand(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		got []string
	)
	path := socketPath(t)
	srv, err := StartServer(path, func(m ControlMessage) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m.Cmd)
		return nil
	})
	if err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	defer srv.Close()

	for _, cmd := range Commands {
		if err := SendCommand(path, cmd); err != nil {
			t.Fatalf("SendCommand(%q): %v", cmd, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(got, ",") != "start,stop,send,playback" {
		t.Errorf("handled = %q", got)
	}
}

func TestSendCommand_Refused(t *testing.T) {
	t.Parallel()

	path := socketPath(t)
	srv, err := StartServer(path, func(m ControlMessage) error {
		return errors.New("unknown command")
	})
	if err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	defer srv.Close()

	err = SendCommand(path, "dance")
	if !errors.Is(err, ErrRefused) || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("err = %v, want refusal", err)
	}
}

func TestSendCommand_NoDaemon(t *testing.T) {
	t.Parallel()

	err := SendCommand(socketPath(t), CmdStart)
	if err == nil {
		t.Fatal("expected dial error")
	}
	if errors.Is(err, ErrRefused) {
		t.Errorf("dial failure reported as refusal: %v", err)
	}
}

func TestServer_CloseRemovesSocket(t *testing.T) {
	t.Parallel()

	path := socketPath(t)
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	srv, err := StartServer(path, func(ControlMessage) error { return nil })
	if err != nil {
		t.Fatalf("StartServer over stale file: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("socket file still present: %v", err)
	}
}
