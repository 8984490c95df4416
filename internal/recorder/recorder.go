// Package recorder is the external collaborator described in the
// streaming client's design: it taps the raw inbound lines and the
// market-change callbacks, writes per-market append-only raw streams plus
// periodic structured snapshots, and feeds nothing back to the decoder.
// Completion is signalled to it only through the market cache's "truly
// complete" state, never the server's own complete flag.
package recorder

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fd1az/betexstream/internal/apperror"
)

// Recorder is the interface the stream package's consumers depend on.
// SQLiteRecorder is the one concrete implementation provided here, but
// callers are free to substitute their own.
type Recorder interface {
	WriteRaw(marketID string, line []byte) error
	WriteMarketSnapshot(marketID string, generation int64, payload []byte) error
	WriteOrderSnapshot(marketID string, generation int64, payload []byte) error
	MarkComplete(marketID string) error
	Close() error
}

// RawLogWriter appends every inbound line to a per-market file, one line
// per write, under baseDir. It never reorders or drops a line — a failed
// write is reported to the caller rather than retried silently.
type RawLogWriter struct {
	baseDir string

	mu    sync.Mutex
	files map[string]*os.File
}

// NewRawLogWriter ensures baseDir exists and returns a writer rooted there.
func NewRawLogWriter(baseDir string) (*RawLogWriter, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, apperror.New(apperror.CodeRecorderWriteFailed, apperror.WithContext("create raw log dir"), apperror.WithCause(err))
	}
	return &RawLogWriter{baseDir: baseDir, files: make(map[string]*os.File)}, nil
}

// Append writes line plus a trailing newline to the per-market raw file,
// opening it on first use.
func (w *RawLogWriter) Append(marketID string, line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, ok := w.files[marketID]
	if !ok {
		path := filepath.Join(w.baseDir, sanitize(marketID)+".raw.jsonl")
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return apperror.New(apperror.CodeRecorderWriteFailed, apperror.WithContext("open raw log "+path), apperror.WithCause(err))
		}
		w.files[marketID] = f
	}

	if _, err := f.Write(line); err != nil {
		return apperror.New(apperror.CodeRecorderWriteFailed, apperror.WithContext("append raw log"), apperror.WithCause(err))
	}
	if _, err := f.Write([]byte{'\n'}); err != nil {
		return apperror.New(apperror.CodeRecorderWriteFailed, apperror.WithContext("append raw log newline"), apperror.WithCause(err))
	}
	return nil
}

// Close closes every open per-market file.
func (w *RawLogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var firstErr error
	for _, f := range w.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func sanitize(id string) string {
	out := make([]byte, len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '.' || c == '-' {
			out[i] = c
		} else {
			out[i] = '_'
		}
	}
	return string(out)
}
