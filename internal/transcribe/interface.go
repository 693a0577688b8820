package transcribe

import "context"

// ArtifactSuffix is appended to the input path by the pipeline to name its output.
const ArtifactSuffix = ".midi"

// Options carries the pipeline configuration for one invocation. It is
// passed explicitly on every call so jobs never share mutable settings.
type Options struct {
	ModelDir   string // checkpoint directory, read-only
	ConfigName string // acoustic model variant, e.g. "onsets_frames"
	Hparams    string // optional hyperparameter overrides
}

// Provider runs the external audio-to-MIDI pipeline.
type Provider interface {
	// Transcribe processes the audio file at audioPath. On success the
	// pipeline is expected to have written audioPath+ArtifactSuffix.
	Transcribe(ctx context.Context, audioPath string, opts Options) error

	// Name returns the name of the provider (e.g., "magenta", "script")
	Name() string
}
