package main

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"midiscribe/internal/config"
	"midiscribe/internal/fetch"
	"midiscribe/internal/logging"
	"midiscribe/internal/pipeline"
	"midiscribe/internal/storage"
	"midiscribe/internal/transcribe"
)

var version = "0.1.0"

type appState struct {
	configPath string
	verbose    bool
	jsonLogs   bool

	cfg    *config.Config
	logger *zap.Logger
	errOut io.Writer

	// onListen is called with the bound address once serve accepts connections.
	onListen func(addr net.Addr)
}

func NewRootCmd() *cobra.Command {
	app := &appState{errOut: os.Stderr}

	cmd := &cobra.Command{
		Use:   "midiscribe",
		Short: "Transcribe piano audio to MIDI with an Onsets and Frames pipeline",
		Long: `midiscribe downloads audio from a URL, runs it through a pre-trained
Onsets and Frames transcription pipeline and returns the MIDI file.

Run "midiscribe serve" for the HTTP API or "midiscribe transcribe <url>"
for a one-off job.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			app.errOut = cmd.ErrOrStderr()
			return app.init(cmd)
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")
	cmd.PersistentFlags().StringVar(&app.configPath, "config", "", "Path to a TOML config file")
	cmd.PersistentFlags().BoolVar(&app.verbose, "verbose", false, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.jsonLogs, "json", false, "Enable JSON logging")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// The root pre-run loads config; printing a version must not need it.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "midiscribe v%s\n", version)
		},
	}
}

// init loads .env, the layered config and the logger.
func (a *appState) init(cmd *cobra.Command) error {
	// A missing .env file is normal outside local development.
	envErr := godotenv.Load()

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	// Flags win over file and environment.
	if cmd.Flags().Changed("verbose") {
		cfg.Logging.Verbose = a.verbose
	}
	if cmd.Flags().Changed("json") {
		cfg.Logging.JSON = a.jsonLogs
	}

	logger, err := logging.New(logging.Options{Verbose: cfg.Logging.Verbose, JSON: cfg.Logging.JSON})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	if envErr != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// buildPipeline validates the config and wires the job pipeline.
func (a *appState) buildPipeline() (*pipeline.Pipeline, *fetch.Fetcher, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, nil, err
	}

	stager, err := storage.NewStager(a.cfg.Storage.UploadDir)
	if err != nil {
		return nil, nil, err
	}

	provider, err := transcribe.CreateProvider(a.cfg.Pipeline, a.logger)
	if err != nil {
		return nil, nil, err
	}

	fetcher := fetch.NewFetcher(a.cfg.Fetch.Timeout, a.logger)
	p := pipeline.New(fetcher, stager, provider, pipeline.Config{
		MaxConcurrentJobs: a.cfg.Pipeline.MaxConcurrentJobs,
		KeepFiles:         a.cfg.Storage.KeepFiles,
		Options:           transcribe.OptionsFromConfig(a.cfg.Pipeline),
	}, a.logger)

	a.logger.Info("pipeline ready",
		zap.String("provider", provider.Name()),
		zap.String("model_dir", a.cfg.Pipeline.ModelDir),
		zap.String("config", a.cfg.Pipeline.ConfigName),
		zap.String("upload_dir", stager.Dir()),
		zap.Int("max_concurrent_jobs", a.cfg.Pipeline.MaxConcurrentJobs),
	)
	return p, fetcher, nil
}
