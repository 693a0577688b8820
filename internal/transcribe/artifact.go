package transcribe

import (
	"errors"
	"fmt"
	"os"
)

// ErrArtifactMissing is returned when the pipeline exited cleanly but left no output.
var ErrArtifactMissing = errors.New("MIDI artifact was not produced")

// ArtifactPath returns where the pipeline writes the MIDI for audioPath.
func ArtifactPath(audioPath string) string {
	return audioPath + ArtifactSuffix
}

// LocateArtifact checks that the artifact for audioPath exists and returns its path.
func LocateArtifact(audioPath string) (string, error) {
	path := ArtifactPath(audioPath)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: expected %s", ErrArtifactMissing, path)
	}
	if err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrArtifactMissing, path)
	}
	return path, nil
}
