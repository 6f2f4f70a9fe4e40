package rulesdownload

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildArchive(t *testing.T, rulesJSON string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("rules.json")
	require.NoError(t, err)
	_, err = f.Write([]byte(rulesJSON))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestLoadFromURLFetchesAndCaches(t *testing.T) {
	archive := buildArchive(t, `{"version":1,"rules":[]}`)
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("ETag", `"v1"`)
		w.WriteHeader(http.StatusOK)
		w.Write(archive)
	}))
	defer srv.Close()

	d := New(t.TempDir(), srv.Client())
	body, err := d.LoadFromURL(t.Context(), srv.URL)
	require.NoError(t, err)
	require.JSONEq(t, `{"version":1,"rules":[]}`, string(body))
	require.Equal(t, 1, calls)

	cached, ok := d.LoadCached(srv.URL)
	require.True(t, ok)
	require.Equal(t, body, cached)
}

func TestLoadFromURLHonorsNotModified(t *testing.T) {
	archive := buildArchive(t, `{"version":1,"rules":[]}`)
	first := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if first {
			first = false
			w.Header().Set("ETag", `"v1"`)
			w.WriteHeader(http.StatusOK)
			w.Write(archive)
			return
		}
		require.Equal(t, `"v1"`, r.Header.Get("If-None-Match"))
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	d := New(t.TempDir(), srv.Client())
	_, err := d.LoadFromURL(t.Context(), srv.URL)
	require.NoError(t, err)

	body, err := d.LoadFromURL(t.Context(), srv.URL)
	require.NoError(t, err)
	require.JSONEq(t, `{"version":1,"rules":[]}`, string(body))
}

func TestLoadFromURLNetworkErrorLeavesCacheUntouched(t *testing.T) {
	archive := buildArchive(t, `{"version":1,"rules":[]}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(archive)
	}))

	d := New(t.TempDir(), srv.Client())
	_, err := d.LoadFromURL(t.Context(), srv.URL)
	require.NoError(t, err)
	srv.Close()

	_, err = d.LoadFromURL(t.Context(), srv.URL)
	require.Error(t, err)

	cached, ok := d.LoadCached(srv.URL)
	require.True(t, ok)
	require.JSONEq(t, `{"version":1,"rules":[]}`, string(cached))
}

func TestUnzipMissingRulesJSONFails(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, _ := w.Create("other.json")
	f.Write([]byte("{}"))
	w.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	d := New(t.TempDir(), srv.Client())
	_, err := d.LoadFromURL(t.Context(), srv.URL)
	require.Error(t, err)
}
