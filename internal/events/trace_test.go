package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTraceWriter_WriteAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")

	w, err := NewTraceWriter(path, 0)
	require.NoError(t, err)

	require.NoError(t, w.Write(Record{Type: RecordLaunch, Coroutine: "co_1"}))
	require.NoError(t, w.Write(Record{Type: RecordExit, Coroutine: "co_1"}))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var types []RecordType
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		types = append(types, rec.Type)
	}
	require.NoError(t, scanner.Err())
	require.Equal(t, []RecordType{RecordLaunch, RecordExit}, types)
}

func TestTraceWriter_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")

	// Tiny limit: each record is larger than 64 bytes, so every write
	// rotates first (the first rotation moves the empty new file to .1).
	w, err := NewTraceWriter(path, 64)
	require.NoError(t, err)

	require.NoError(t, w.Write(Record{Type: RecordSwitch, Coroutine: "co_1"}))
	require.NoError(t, w.Write(Record{Type: RecordSwitch, Coroutine: "co_2"}))
	require.NoError(t, w.Close())

	_, err = os.Stat(path + ".1")
	require.NoError(t, err, "rotated file must exist")
	_, err = os.Stat(path)
	require.NoError(t, err, "fresh file must exist after rotation")
}

func TestTraceWriter_AttachToBus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")

	w, err := NewTraceWriter(path, 0)
	require.NoError(t, err)

	bus := NewBus()
	detach := w.Attach(bus)
	bus.Publish(RecordOffer, "co_9", map[string]any{"method": "PenDown"})
	detach()
	bus.Publish(RecordOffer, "co_9", nil)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))
	require.Equal(t, RecordOffer, rec.Type)
	require.Equal(t, "co_9", rec.Coroutine)
	require.Equal(t, "PenDown", rec.Detail["method"])
}

func TestTraceWriter_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "trace.jsonl")

	w, err := NewTraceWriter(path, 0)
	require.NoError(t, err)
	require.NoError(t, w.Write(Record{Type: RecordVerify}))
	require.NoError(t, w.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)
}
