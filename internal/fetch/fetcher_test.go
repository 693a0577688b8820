package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFetchBuffersBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF....WAVE"))
	}))
	defer srv.Close()

	dl, err := NewFetcher(0, nil).Fetch(context.Background(), srv.URL+"/a.wav")
	require.NoError(t, err)
	require.Equal(t, []byte("RIFF....WAVE"), dl.Body)
	require.Equal(t, "audio/wav", dl.ContentType)
}

func TestFetchNonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	_, err := NewFetcher(0, nil).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestFetchUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewFetcher(time.Second, nil).Fetch(context.Background(), url)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to download")
}

func TestFetchMalformedURL(t *testing.T) {
	t.Parallel()

	_, err := NewFetcher(0, nil).Fetch(context.Background(), "://nope")
	require.ErrorContains(t, err, "failed to create request")
}

func TestFetchReportsProgress(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte{1}, 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	var seen bytes.Buffer
	var gotLength int64
	f := NewFetcherWithClient(srv.Client(), nil)
	f.Progress = func(n int64) io.Writer {
		gotLength = n
		return &seen
	}

	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)), gotLength)
	require.Equal(t, payload, seen.Bytes())
}
