package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides: MIDISCRIBE_SERVER_PORT -> server.port.
const EnvPrefix = "MIDISCRIBE_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Storage  StorageConfig  `koanf:"storage"`
	Fetch    FetchConfig    `koanf:"fetch"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Port    string `koanf:"port"`
	GinMode string `koanf:"gin_mode"`
}

type StorageConfig struct {
	UploadDir string `koanf:"upload_dir"`
	KeepFiles bool   `koanf:"keep_files"`
}

type FetchConfig struct {
	// Timeout of zero means the download may take as long as it needs.
	Timeout time.Duration `koanf:"timeout"`
}

type PipelineConfig struct {
	Provider          string `koanf:"provider"`
	Python            string `koanf:"python"`
	ScriptsDir        string `koanf:"scripts_dir"`
	Script            string `koanf:"script"`
	Module            string `koanf:"module"`
	ModelDir          string `koanf:"model_dir"`
	ConfigName        string `koanf:"config"`
	Hparams           string `koanf:"hparams"`
	MaxConcurrentJobs int    `koanf:"max_concurrent_jobs"`
}

type LoggingConfig struct {
	Verbose bool `koanf:"verbose"`
	JSON    bool `koanf:"json"`
}

// Load reads defaults, then the TOML file at configPath (if any), then
// MIDISCRIBE_* environment variables.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	loadDefaults(k)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	// Empty values are skipped so they don't clobber the file.
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		return envKey(key), value
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// PORT is what most hosting platforms inject.
	if v := os.Getenv("PORT"); v != "" && os.Getenv(EnvPrefix+"SERVER_PORT") == "" {
		k.Set("server.port", v)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// envKey maps MIDISCRIBE_PIPELINE_MODEL_DIR to pipeline.model_dir. Only the
// first underscore separates section from key.
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return fmt.Errorf("server.port must not be empty")
	}
	if strings.TrimSpace(c.Storage.UploadDir) == "" {
		return fmt.Errorf("storage.upload_dir must not be empty")
	}
	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch.timeout must not be negative")
	}
	if c.Pipeline.MaxConcurrentJobs < 1 {
		return fmt.Errorf("pipeline.max_concurrent_jobs must be at least 1, got %d", c.Pipeline.MaxConcurrentJobs)
	}

	info, err := os.Stat(c.Pipeline.ModelDir)
	if err != nil {
		return fmt.Errorf("model checkpoint directory %q is not available: %w\nDownload the Onsets and Frames checkpoint and unpack it there, or set %sPIPELINE_MODEL_DIR", c.Pipeline.ModelDir, err, EnvPrefix)
	}
	if !info.IsDir() {
		return fmt.Errorf("model checkpoint path %q is not a directory", c.Pipeline.ModelDir)
	}
	return nil
}
