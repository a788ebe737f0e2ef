package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultMaxTraceSize caps a trace file at 100MB before rotation.
	DefaultMaxTraceSize = 100 * 1024 * 1024
	// TraceFileExtension is the extension trace files carry.
	TraceFileExtension = ".jsonl"
)

// TraceWriter appends scheduler records to a JSONL file, rotating when the
// file exceeds its size limit. It is the durable counterpart of the Bus:
// attach it as a subscriber and every scheduler step lands on disk.
type TraceWriter struct {
	file        *os.File
	currentSize int64
	maxSize     int64
	path        string
	rotations   int
}

// NewTraceWriter opens (or creates) the trace file at path.
func NewTraceWriter(path string, maxSize int64) (*TraceWriter, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxTraceSize
	}

	w := &TraceWriter{path: path, maxSize: maxSize}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *TraceWriter) open() error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat trace file: %w", err)
	}
	w.file = file
	w.currentSize = stat.Size()
	return nil
}

// Write appends one record.
func (w *TraceWriter) Write(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal trace record: %w", err)
	}
	data = append(data, '\n')

	if w.currentSize+int64(len(data)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return fmt.Errorf("failed to rotate trace: %w", err)
		}
	}

	n, err := w.file.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write trace record: %w", err)
	}
	w.currentSize += int64(n)
	return nil
}

// Attach subscribes the writer to bus. Write errors are swallowed: tracing
// must never fail the test under observation. The returned function
// unsubscribes.
func (w *TraceWriter) Attach(bus *Bus) func() {
	return bus.Subscribe(func(rec Record) {
		_ = w.Write(rec)
	})
}

// rotate moves the current file aside and starts a fresh one.
func (w *TraceWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	w.rotations++
	rotated := fmt.Sprintf("%s.%d", w.path, w.rotations)
	if err := os.Rename(w.path, rotated); err != nil {
		return fmt.Errorf("failed to rename trace file: %w", err)
	}
	return w.open()
}

// Close flushes and closes the underlying file.
func (w *TraceWriter) Close() error {
	if w.file == nil {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to sync trace file: %w", err)
	}
	return w.file.Close()
}
