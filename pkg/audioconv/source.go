package audioconv

import (
	"context"
	"fmt"
	"io"
	log "log/slog"
	"sync"
)

// FileSource replays pre-recorded utterances, one file per Next call. It
// returns io.EOF once every file has been played.
type FileSource struct {
	mu    sync.Mutex
	paths []string
	opt   Options
}

func NewFileSource(paths []string, opt Options) *FileSource {
	return &FileSource{
		paths: append([]string(nil), paths...),
		opt:   opt,
	}
}

func (f *FileSource) Next(ctx context.Context) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.paths) == 0 {
		return nil, io.EOF
	}
	path := f.paths[0]

	log.Info("Replaying audio file", "path", path)

	pcm, err := ConvertFile(ctx, path, f.opt)
	if err := ctx.Err(); err != nil {
		// Cancelled mid-decode: the file is replayed on the next call.
		return nil, err
	}
	f.paths = f.paths[1:]
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pcm, nil
}
