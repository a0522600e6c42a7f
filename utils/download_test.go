package utils

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func TestDownloadSections(t *testing.T) {
	data := payload(4099)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "gbbq.zip", time.Time{}, bytes.NewReader(data))
	}))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "gbbq.zip")
	require.NoError(t, DownloadFile(context.Background(), srv.URL+"/gbbq.zip", target))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	parts, _ := filepath.Glob(target + ".part*")
	assert.Empty(t, parts)
}

func TestDownloadSmallFiles(t *testing.T) {
	for _, size := range []int{5, 6, 12, 19, 24, 25} {
		data := payload(size)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.ServeContent(w, r, "gbbq", time.Time{}, bytes.NewReader(data))
		}))

		target := filepath.Join(t.TempDir(), "gbbq")
		require.NoError(t, DownloadFile(context.Background(), srv.URL+"/gbbq", target), "size %d", size)
		got, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, data, got, "size %d", size)
		srv.Close()
	}
}

func TestSplitSections(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 4}}, splitSections(5, 5))
	assert.Equal(t, [][2]int{{0, 1}, {2, 3}, {4, 6}, {7, 8}, {9, 11}}, splitSections(12, 5))

	for _, size := range []int{5, 12, 19, 4099} {
		secs := splitSections(size, 5)
		assert.Equal(t, 0, secs[0][0])
		assert.Equal(t, size-1, secs[4][1])
		for i := 1; i < len(secs); i++ {
			assert.Equal(t, secs[i-1][1]+1, secs[i][0])
			assert.LessOrEqual(t, secs[i][0], secs[i][1])
		}
	}
}

func TestDownloadWithoutRanges(t *testing.T) {
	data := payload(300)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "gbbq")
	require.NoError(t, DownloadFile(context.Background(), srv.URL, target))
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDownloadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	err := DownloadFile(context.Background(), srv.URL, filepath.Join(t.TempDir(), "x"))
	assert.ErrorContains(t, err, "404")
	assert.True(t, IsURL(srv.URL))
	assert.False(t, IsURL("/tmp/gbbq"))
}
