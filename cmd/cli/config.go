package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors the optional TOML configuration file. Flags override
// file values; file values override the built-in defaults.
type fileConfig struct {
	DBPath     string  `toml:"db_path"`
	StoreDir   string  `toml:"store_dir"` // when set, use the filesystem store
	TempDir    string  `toml:"temp_dir"`
	SampleRate int     `toml:"sample_rate"`
	MFCCCount  int     `toml:"mfcc_count"`
	MinSamples int     `toml:"min_samples"`
	Threshold  float64 `toml:"threshold"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		DBPath:     getEnvOrDefault("VOICEGATE_DB_PATH", "voicegate.sqlite3"),
		StoreDir:   os.Getenv("VOICEGATE_STORE_DIR"),
		TempDir:    getEnvOrDefault("VOICEGATE_TEMP_DIR", "/tmp"),
		SampleRate: 16000,
		MFCCCount:  13,
		MinSamples: 3,
		Threshold:  0.75,
	}
}

// loadFileConfig reads path over the defaults. A missing file is only an
// error when the path was given explicitly.
func loadFileConfig(path string, explicit bool) (fileConfig, error) {
	cfg := defaultFileConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
