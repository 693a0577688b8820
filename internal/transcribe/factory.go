package transcribe

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"midiscribe/internal/config"
	"midiscribe/internal/exec"
)

// CreateProvider builds the provider selected by pipeline.provider.
func CreateProvider(cfg config.PipelineConfig, logger *zap.Logger) (Provider, error) {
	runner := exec.NewRunner(cfg.Python, cfg.ScriptsDir, logger)

	switch name := strings.ToLower(strings.TrimSpace(cfg.Provider)); name {
	case "", "magenta":
		if cfg.Module == "" {
			return nil, fmt.Errorf("pipeline.module is required for the magenta provider")
		}
		return NewMagentaProvider(runner, cfg.Module, logger), nil
	case "script":
		if cfg.Script == "" {
			return nil, fmt.Errorf("pipeline.script is required for the script provider")
		}
		return NewScriptProvider(runner, cfg.Script, logger), nil
	default:
		return nil, fmt.Errorf("unsupported pipeline provider: %s. Supported: magenta, script", name)
	}
}

// OptionsFromConfig extracts the per-call options from the pipeline config.
func OptionsFromConfig(cfg config.PipelineConfig) Options {
	return Options{
		ModelDir:   cfg.ModelDir,
		ConfigName: cfg.ConfigName,
		Hparams:    cfg.Hparams,
	}
}
