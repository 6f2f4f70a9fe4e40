package datastore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir, "privacy")

	require.NoError(t, s.Set("status", "optedIn"))

	var status string
	ok := s.Get("status", &status)
	require.True(t, ok)
	require.Equal(t, "optedIn", status)

	// Reopen to confirm durability.
	s2 := Open(dir, "privacy")
	var status2 string
	ok = s2.Get("status", &status2)
	require.True(t, ok)
	require.Equal(t, "optedIn", status2)
}

func TestStoreMissingKey(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir, "empty")
	var v string
	ok := s.Get("nope", &v)
	require.False(t, ok)
}

func TestStoreCorruptFileReadsAsEmpty(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir, "broken")
	require.NoError(t, s.Set("a", 1))

	// Corrupt the file in place.
	path := s.path
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s2 := Open(dir, "broken")
	var v int
	ok := s2.Get("a", &v)
	require.False(t, ok)
}
