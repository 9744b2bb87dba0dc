package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJSONLStore_TimeRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycles.jsonl")
	store, err := NewJSONLStore(path)
	require.NoError(t, err)
	t0 := time.Unix(1000, 0).UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(context.Background(), CycleRecord{
			ID:        string(rune('a' + i)),
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
		}))
	}
	out, err := store.Query(context.Background(), LogQuery{Start: t0.Add(30 * time.Second), End: t0.Add(2 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "b", out[0].ID)
	require.Equal(t, "c", out[1].ID)
}

func TestJSONLStore_SkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycles.jsonl")
	store, err := NewJSONLStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), CycleRecord{ID: "ok", Displays: []string{"12"}}))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, err := store.Query(context.Background(), LogQuery{BusID: "12"})
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestNewLogStore(t *testing.T) {
	s, err := NewLogStore(Config{})
	require.NoError(t, err)
	require.Nil(t, s)

	_, err = NewLogStore(Config{Backend: "jsonl"})
	require.Error(t, err)

	_, err = NewLogStore(Config{Backend: "csv", Path: "x"})
	require.Error(t, err)

	s, err = NewLogStore(Config{Backend: "jsonl", Path: filepath.Join(t.TempDir(), "c.jsonl")})
	require.NoError(t, err)
	require.IsType(t, &JSONLStore{}, s)
}
