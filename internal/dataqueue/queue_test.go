package dataqueue

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileQueueDurability(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.jsonl")

	q, err := Open(path)
	require.NoError(t, err)

	_, err = q.Add("h1", 1000, []byte("payload-1"))
	require.NoError(t, err)
	_, err = q.Add("h2", 1001, []byte("payload-2"))
	require.NoError(t, err)
	require.NoError(t, q.Close())

	// Simulate a process restart: reopen from the same path.
	q2, err := Open(path)
	require.NoError(t, err)

	count, err := q2.Count()
	require.NoError(t, err)
	require.Equal(t, 2, count)

	rec, ok, err := q2.Peek()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "h1", rec.UniqueID)
	require.Equal(t, uint64(1), rec.Seq)
}

func TestFileQueuePeekOrderAndRemove(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(filepath.Join(dir, "queue.jsonl"))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := q.Add("h", int64(i), nil)
		require.NoError(t, err)
	}

	rec, ok, err := q.Peek()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), rec.Seq)

	require.NoError(t, q.Remove(rec.Seq))

	rec2, ok, err := q.Peek()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), rec2.Seq)

	count, _ := q.Count()
	require.Equal(t, 4, count)
}

func TestFileQueueClear(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(filepath.Join(dir, "queue.jsonl"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := q.Add("h", int64(i), nil)
		require.NoError(t, err)
	}
	require.NoError(t, q.Clear())
	count, _ := q.Count()
	require.Equal(t, 0, count)
}

func TestMemoryQueueBasics(t *testing.T) {
	q := NewMemory()
	_, err := q.Add("a", 1, []byte("x"))
	require.NoError(t, err)
	_, err = q.Add("b", 2, []byte("y"))
	require.NoError(t, err)

	recs, err := q.PeekN(10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "a", recs[0].UniqueID)
}
