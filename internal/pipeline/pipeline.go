package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"midiscribe/internal/apperr"
	"midiscribe/internal/fetch"
	"midiscribe/internal/logging"
	"midiscribe/internal/model"
	"midiscribe/internal/storage"
	"midiscribe/internal/transcribe"
)

// Fetcher retrieves the remote audio.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Download, error)
}

type Config struct {
	// MaxConcurrentJobs bounds how many jobs run at once. 1 serializes jobs.
	MaxConcurrentJobs int
	// KeepFiles leaves the staged audio and the artifact on disk.
	KeepFiles bool
	Options   transcribe.Options
}

// Pipeline runs transcription jobs end to end:
// received -> fetching -> staged -> transcribing -> completed | failed.
type Pipeline struct {
	fetcher  Fetcher
	stager   *storage.Stager
	provider transcribe.Provider
	cfg      Config
	sem      *semaphore.Weighted
	logger   *zap.Logger
	now      func() time.Time
}

func New(fetcher Fetcher, stager *storage.Stager, provider transcribe.Provider, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.MaxConcurrentJobs < 1 {
		cfg.MaxConcurrentJobs = 1
	}
	return &Pipeline{
		fetcher:  fetcher,
		stager:   stager,
		provider: provider,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

// Run processes one job. The returned job is always non-nil; on failure
// the error is an *apperr.Error and the job is in the failed state. On
// success job.Artifact holds the MIDI bytes.
func (p *Pipeline) Run(ctx context.Context, audioURL string) (*model.Job, error) {
	job := model.NewJob(strings.TrimSpace(audioURL), p.now())
	log := p.logger.With(zap.String("job_id", job.ID.String()), zap.String("audio_url", job.AudioURL))

	err := p.run(ctx, job, log)
	if err != nil {
		kind := apperr.KindOf(err)
		var appErr *apperr.Error
		if !errors.As(err, &appErr) {
			appErr = apperr.New(apperr.UnhandledError, "unexpected error", err)
			err = appErr
		}
		if failErr := job.Fail(string(kind), appErr.Error(), p.now()); failErr != nil {
			log.Error("could not mark job failed", zap.Error(failErr))
		}
		if kind.Status() >= 500 {
			log.Error("job failed", zap.String("kind", string(kind)), zap.Error(err), zap.Duration("elapsed", job.Elapsed(p.now())))
		} else {
			log.Info("job rejected", zap.String("kind", string(kind)), zap.Error(err))
		}
		return job, err
	}

	log.Info("job completed", zap.Int("artifact_bytes", len(job.Artifact)), zap.Duration("elapsed", job.Elapsed(p.now())))
	return job, nil
}

func (p *Pipeline) run(ctx context.Context, job *model.Job, log *zap.Logger) error {
	if job.AudioURL == "" {
		return apperr.New(apperr.MissingInput, "audio_url is required", nil)
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return apperr.New(apperr.UnhandledError, "job cancelled while waiting for a pipeline slot", err)
	}
	defer p.sem.Release(1)

	if err := p.advance(job, model.StatusFetching); err != nil {
		return err
	}
	log.Info("downloading audio")
	dl, err := p.fetcher.Fetch(ctx, job.AudioURL)
	if err != nil {
		return apperr.New(apperr.FetchFailed, "could not download audio", err)
	}

	staged, err := p.stager.Stage(job.ID, dl.Body)
	if err != nil {
		return apperr.New(apperr.UnhandledError, "could not stage audio", err)
	}
	job.StagedPath = staged.Path
	job.AudioFormat = staged.Format
	job.DeclaredType = dl.ContentType
	job.AudioSize = staged.Size
	job.ArtifactPath = transcribe.ArtifactPath(staged.Path)
	if !p.cfg.KeepFiles {
		defer func() {
			if err := staged.Remove(job.ArtifactPath); err != nil {
				log.Warn("failed to remove job files", zap.Error(err))
			}
		}()
	}
	if err := p.advance(job, model.StatusStaged); err != nil {
		return err
	}
	log.Info("audio staged", zap.String("path", staged.Path), zap.Int64("bytes", staged.Size), zap.String("format", staged.Format), zap.String("declared_type", dl.ContentType))

	if err := p.advance(job, model.StatusTranscribing); err != nil {
		return err
	}
	log.Info("transcribing...", zap.String("provider", p.provider.Name()), zap.String("model_dir", p.cfg.Options.ModelDir))
	if err := p.provider.Transcribe(ctx, staged.Path, p.cfg.Options); err != nil {
		return apperr.New(apperr.PipelineError, "transcription failed", err)
	}

	artifact, err := transcribe.LocateArtifact(staged.Path)
	if err != nil {
		if errors.Is(err, transcribe.ErrArtifactMissing) {
			return apperr.New(apperr.OutputMissing, transcribe.ErrArtifactMissing.Error(), nil)
		}
		return apperr.New(apperr.UnhandledError, "could not locate artifact", err)
	}

	data, err := os.ReadFile(artifact)
	if err != nil {
		return apperr.New(apperr.UnhandledError, "could not read artifact", err)
	}
	job.Artifact = data

	return p.advance(job, model.StatusCompleted)
}

func (p *Pipeline) advance(job *model.Job, status model.JobStatus) error {
	if err := job.Advance(status, p.now()); err != nil {
		return apperr.New(apperr.UnhandledError, fmt.Sprintf("job %s", job.ID), err)
	}
	return nil
}
