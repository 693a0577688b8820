package pipeline

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"midiscribe/internal/apperr"
	"midiscribe/internal/fetch"
	"midiscribe/internal/model"
	"midiscribe/internal/storage"
	"midiscribe/internal/transcribe"
)

type fakeFetcher struct {
	calls       atomic.Int32
	body        []byte
	contentType string
	err         error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (*fetch.Download, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &fetch.Download{Body: f.body, ContentType: f.contentType}, nil
}

type fakeProvider struct {
	calls    atomic.Int32
	artifact []byte // written to <path>.midi when non-nil
	err      error
	gotPath  string
	gotOpts  transcribe.Options
	hook     func()
	mu       sync.Mutex
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Transcribe(_ context.Context, audioPath string, opts transcribe.Options) error {
	p.calls.Add(1)
	p.mu.Lock()
	p.gotPath = audioPath
	p.gotOpts = opts
	p.mu.Unlock()
	if p.hook != nil {
		p.hook()
	}
	if p.err != nil {
		return p.err
	}
	if p.artifact != nil {
		return os.WriteFile(transcribe.ArtifactPath(audioPath), p.artifact, 0o644)
	}
	return nil
}

func newTestPipeline(t *testing.T, f Fetcher, p transcribe.Provider, cfg Config) *Pipeline {
	t.Helper()
	stager, err := storage.NewStager(t.TempDir())
	require.NoError(t, err)
	if cfg.Options.ModelDir == "" {
		cfg.Options = transcribe.Options{ModelDir: "checkpoints", ConfigName: "onsets_frames"}
	}
	return New(f, stager, p, cfg, nil)
}

func TestRunReturnsArtifact(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{body: []byte("RIFF0000WAVE"), contentType: "application/octet-stream"}
	provider := &fakeProvider{artifact: []byte("MThd\x00\x00\x00\x06")}
	p := newTestPipeline(t, fetcher, provider, Config{})

	job, err := p.Run(context.Background(), " https://example.com/song.wav ")
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, job.Status)
	require.Equal(t, "https://example.com/song.wav", job.AudioURL)
	require.Equal(t, []byte("MThd\x00\x00\x00\x06"), job.Artifact)
	require.Equal(t, job.StagedPath, provider.gotPath)
	require.Equal(t, "onsets_frames", provider.gotOpts.ConfigName)
	require.Equal(t, "application/octet-stream", job.DeclaredType)
	require.NotEqual(t, job.DeclaredType, job.AudioFormat)

	require.NoFileExists(t, job.StagedPath)
	require.NoFileExists(t, job.ArtifactPath)
}

func TestRunKeepFiles(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, &fakeFetcher{body: []byte("x")}, &fakeProvider{artifact: []byte("MThd")}, Config{KeepFiles: true})

	job, err := p.Run(context.Background(), "https://example.com/a.wav")
	require.NoError(t, err)
	require.FileExists(t, job.StagedPath)
	require.FileExists(t, job.ArtifactPath)
}

func TestRunMissingInputSkipsEverything(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	provider := &fakeProvider{}
	p := newTestPipeline(t, fetcher, provider, Config{})

	for _, in := range []string{"", "   "} {
		job, err := p.Run(context.Background(), in)
		require.Error(t, err)
		require.Equal(t, apperr.MissingInput, apperr.KindOf(err))
		require.NotEmpty(t, err.Error())
		require.Equal(t, model.StatusFailed, job.Status)
	}
	require.Zero(t, fetcher.calls.Load())
	require.Zero(t, provider.calls.Load())
}

func TestRunFetchFailureSkipsPipeline(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{err: &fetch.StatusError{URL: "u", StatusCode: 404}}
	provider := &fakeProvider{}
	p := newTestPipeline(t, fetcher, provider, Config{})

	job, err := p.Run(context.Background(), "https://example.com/missing.wav")
	require.Error(t, err)
	require.Equal(t, apperr.FetchFailed, apperr.KindOf(err))
	require.Contains(t, err.Error(), "404")
	require.Equal(t, string(apperr.FetchFailed), job.ErrorKind)
	require.Zero(t, provider.calls.Load())
}

func TestRunPipelineErrorCarriesCause(t *testing.T) {
	t.Parallel()

	cause := apperr.NewProcessError("python3", "transcription", 1, "ValueError: bad wav", nil)
	p := newTestPipeline(t, &fakeFetcher{body: []byte("x")}, &fakeProvider{err: cause}, Config{})

	job, err := p.Run(context.Background(), "https://example.com/a.wav")
	require.Error(t, err)
	require.Equal(t, apperr.PipelineError, apperr.KindOf(err))
	require.Contains(t, err.Error(), "ValueError: bad wav")
	require.Equal(t, model.StatusFailed, job.Status)
	require.NoFileExists(t, job.StagedPath)
}

func TestRunOutputMissing(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, &fakeFetcher{body: []byte("x")}, &fakeProvider{}, Config{})

	_, err := p.Run(context.Background(), "https://example.com/silence.wav")
	require.Error(t, err)
	require.Equal(t, apperr.OutputMissing, apperr.KindOf(err))
	require.Contains(t, err.Error(), "not produced")
}

func TestRunSequentialRequestsBehaveIdentically(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, &fakeFetcher{body: []byte("x")}, &fakeProvider{artifact: []byte("MThd")}, Config{})

	first, err := p.Run(context.Background(), "https://example.com/a.wav")
	require.NoError(t, err)
	second, err := p.Run(context.Background(), "https://example.com/a.wav")
	require.NoError(t, err)

	require.Equal(t, first.Artifact, second.Artifact)
	require.NotEqual(t, first.StagedPath, second.StagedPath)
}

func TestRunSerializesJobsWithSingleSlot(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int32
	provider := &fakeProvider{artifact: []byte("MThd")}
	provider.hook = func() {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
	}
	p := newTestPipeline(t, &fakeFetcher{body: []byte("x")}, provider, Config{MaxConcurrentJobs: 1})

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Run(context.Background(), "https://example.com/a.wav")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), peak.Load())
	require.Equal(t, int32(4), provider.calls.Load())
}

func TestRunCancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	provider := &fakeProvider{artifact: []byte("MThd")}
	provider.hook = func() {
		close(started)
		<-release
	}
	p := newTestPipeline(t, &fakeFetcher{body: []byte("x")}, provider, Config{MaxConcurrentJobs: 1})

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), "https://example.com/first.wav")
		done <- err
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job, err := p.Run(ctx, "https://example.com/second.wav")
	require.Error(t, err)
	require.Equal(t, apperr.UnhandledError, apperr.KindOf(err))
	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, model.StatusFailed, job.Status)

	close(release)
	require.NoError(t, <-done)
	require.Equal(t, int32(1), provider.calls.Load())
}
