package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"midiscribe/internal/api"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	var (
		output     string
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "transcribe <audio-url>",
		Short: "Transcribe one audio URL to a MIDI file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = app.logger.Sync() }()

			p, fetcher, err := app.buildPipeline()
			if err != nil {
				return err
			}
			if !noProgress && isTerminal(app.errOut) {
				fetcher.Progress = func(n int64) io.Writer {
					return progressbar.DefaultBytes(n, "downloading")
				}
			}

			job, err := p.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
			}
			if err := os.WriteFile(output, job.Artifact, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			app.logger.Info("MIDI written", zap.String("path", output), zap.Int("bytes", len(job.Artifact)))
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", api.ArtifactFilename, "Where to write the MIDI file")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the download progress bar")
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
