package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":     "5000",
		"server.gin_mode": "release",

		"storage.upload_dir": "temp_uploads",
		"storage.keep_files": false,

		"fetch.timeout": "0s",

		"pipeline.provider":            "magenta",
		"pipeline.python":              "",
		"pipeline.scripts_dir":         ".",
		"pipeline.script":              "transcribe.py",
		"pipeline.module":              "magenta.models.onsets_frames_transcription.onsets_frames_transcription_transcribe",
		"pipeline.model_dir":           "checkpoints",
		"pipeline.config":              "onsets_frames",
		"pipeline.hparams":             "",
		"pipeline.max_concurrent_jobs": 1,

		"logging.verbose": false,
		"logging.json":    false,
	}

	for key, val := range defaults {
		k.Set(key, val)
	}
}
