package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"midiscribe/internal/exec"
	"midiscribe/internal/logging"
)

// Runner is the subset of exec.Runner the providers need.
type Runner interface {
	RunModule(ctx context.Context, module string, args ...string) (*exec.Result, error)
	RunScript(ctx context.Context, script string, args ...string) (*exec.Result, error)
}

// MagentaProvider runs the Onsets and Frames transcribe entrypoint as a
// Python module. The entrypoint feeds the file through the pipeline's
// single-file batch provider.
type MagentaProvider struct {
	runner Runner
	module string
	logger *zap.Logger
}

// NewMagentaProvider creates a provider invoking module through runner.
func NewMagentaProvider(runner Runner, module string, logger *zap.Logger) *MagentaProvider {
	return &MagentaProvider{runner: runner, module: module, logger: logging.OrNop(logger)}
}

func (p *MagentaProvider) Name() string {
	return "magenta"
}

func (p *MagentaProvider) Transcribe(ctx context.Context, audioPath string, opts Options) error {
	args, err := pipelineArgs(audioPath, opts)
	if err != nil {
		return err
	}

	res, err := p.runner.RunModule(ctx, p.module, args...)
	logRun(p.logger, p.Name(), res, err)
	if err != nil {
		return fmt.Errorf("run %s: %w", p.module, err)
	}
	return nil
}

// ScriptProvider runs a site-provided wrapper script that accepts the same
// flags as the Magenta entrypoint.
type ScriptProvider struct {
	runner Runner
	script string
	logger *zap.Logger
}

// NewScriptProvider creates a provider invoking script through runner.
func NewScriptProvider(runner Runner, script string, logger *zap.Logger) *ScriptProvider {
	return &ScriptProvider{runner: runner, script: script, logger: logging.OrNop(logger)}
}

func (p *ScriptProvider) Name() string {
	return "script"
}

func (p *ScriptProvider) Transcribe(ctx context.Context, audioPath string, opts Options) error {
	args, err := pipelineArgs(audioPath, opts)
	if err != nil {
		return err
	}

	res, err := p.runner.RunScript(ctx, p.script, args...)
	logRun(p.logger, p.Name(), res, err)
	if err != nil {
		return fmt.Errorf("run %s: %w", p.script, err)
	}
	return nil
}

// pipelineArgs builds the flag list. The audio path is the only positional
// argument and always comes last.
func pipelineArgs(audioPath string, opts Options) ([]string, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, errors.New("audio path is required")
	}
	if strings.TrimSpace(opts.ModelDir) == "" {
		return nil, errors.New("model directory is required")
	}

	args := []string{"--model_dir=" + opts.ModelDir}
	if opts.ConfigName != "" {
		args = append(args, "--config="+opts.ConfigName)
	}
	if opts.Hparams != "" {
		args = append(args, "--hparams="+opts.Hparams)
	}
	return append(args, audioPath), nil
}

func logRun(logger *zap.Logger, provider string, res *exec.Result, err error) {
	if res == nil {
		return
	}
	fields := []zap.Field{
		zap.String("provider", provider),
		zap.Duration("elapsed", res.Duration),
		zap.Int("exit_code", res.ExitCode),
	}
	if err != nil {
		logger.Warn("pipeline process failed", append(fields, zap.String("stderr", res.Stderr))...)
		return
	}
	logger.Debug("pipeline process finished", fields...)
}
