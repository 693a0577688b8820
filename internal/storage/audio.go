package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DefaultExt is used when the content type cannot be recognised as audio.
const DefaultExt = ".wav"

var audioExts = map[string]bool{
	".wav": true, ".mp3": true, ".flac": true, ".ogg": true, ".oga": true,
	".m4a": true, ".aac": true, ".aiff": true, ".aif": true, ".webm": true,
}

// StagedFile is a job's local copy of the fetched audio.
type StagedFile struct {
	Path   string
	Size   int64
	Format string // detected MIME type
}

// Stager writes fetched audio into the upload directory.
type Stager struct {
	dir string
}

// NewStager creates the upload directory if needed.
func NewStager(dir string) (*Stager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &Stager{dir: dir}, nil
}

// Dir returns the upload directory.
func (s *Stager) Dir() string {
	return s.dir
}

// Stage writes data to <dir>/<id><ext>. Paths are unique per job id, so
// overlapping jobs never touch each other's input.
func (s *Stager) Stage(id uuid.UUID, data []byte) (*StagedFile, error) {
	if id == uuid.Nil {
		return nil, errors.New("job id is required")
	}

	mtype := mimetype.Detect(data)
	ext := mtype.Extension()
	if !audioExts[ext] {
		ext = DefaultExt
	}

	dst := filepath.Join(s.dir, id.String()+ext)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	return &StagedFile{
		Path:   dst,
		Size:   int64(len(data)),
		Format: mtype.String(),
	}, nil
}

// Remove deletes the staged file and any derived files passed in extra.
// Files that are already gone are not an error.
func (f *StagedFile) Remove(extra ...string) error {
	var errs []error
	for _, p := range append([]string{f.Path}, extra...) {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
