// Package config holds the runtime configuration of the gqr tooling.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all tool configuration
type Config struct {
	Index    IndexConfig
	Training TrainingConfig
	Data     DataConfig
	Log      LogConfig
}

// IndexConfig holds hash-index parameters
type IndexConfig struct {
	M uint32 // Hash-table size hint (default: 1024)
	L int    // Number of hash tables (default: 4)
	D int    // Vector dimension (default: 128)
	N int    // Bits per code (default: 16)
	S int    // Training sample size (default: 10000)
	I int    // ITQ refinement iterations (default: 50)
}

// TrainingConfig holds training driver configuration
type TrainingConfig struct {
	BatchSize int   // Concurrent training workers per batch (default: 4)
	Seed      int64 // RNG seed; 0 draws from the clock
}

// DataConfig holds file locations
type DataConfig struct {
	DatasetPath     string // fvecs base vectors
	QueryPath       string // fvecs query vectors
	IndexPath       string // serialized index
	GroundTruthPath string // ivecs ground truth
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string // DEBUG, INFO, WARN, ERROR
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			M: 1024,
			L: 4,
			D: 128,
			N: 16,
			S: 10000,
			I: 50,
		},
		Training: TrainingConfig{
			BatchSize: 4,
		},
		Data: DataConfig{
			IndexPath: "./gqr.index",
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

// LoadFromEnv loads configuration from GQR_* environment variables on
// top of the defaults.
func LoadFromEnv() *Config {
	cfg := Default()

	if v := os.Getenv("GQR_TABLE_SIZE"); v != "" {
		if m, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Index.M = uint32(m)
		}
	}
	if v := os.Getenv("GQR_TABLES"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			cfg.Index.L = l
		}
	}
	if v := os.Getenv("GQR_DIMENSIONS"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			cfg.Index.D = d
		}
	}
	if v := os.Getenv("GQR_BITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.N = n
		}
	}
	if v := os.Getenv("GQR_SAMPLE_SIZE"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			cfg.Index.S = s
		}
	}
	if v := os.Getenv("GQR_ITQ_ITERATIONS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Index.I = i
		}
	}

	if v := os.Getenv("GQR_TRAIN_BATCH"); v != "" {
		if b, err := strconv.Atoi(v); err == nil {
			cfg.Training.BatchSize = b
		}
	}
	if v := os.Getenv("GQR_SEED"); v != "" {
		if s, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Training.Seed = s
		}
	}

	if v := os.Getenv("GQR_DATASET"); v != "" {
		cfg.Data.DatasetPath = v
	}
	if v := os.Getenv("GQR_QUERIES"); v != "" {
		cfg.Data.QueryPath = v
	}
	if v := os.Getenv("GQR_INDEX"); v != "" {
		cfg.Data.IndexPath = v
	}
	if v := os.Getenv("GQR_GROUND_TRUTH"); v != "" {
		cfg.Data.GroundTruthPath = v
	}

	if v := os.Getenv("GQR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Index.M < 1 {
		return fmt.Errorf("invalid table size hint: %d (must be >= 1)", c.Index.M)
	}
	if c.Index.L < 1 {
		return fmt.Errorf("invalid table count: %d (must be >= 1)", c.Index.L)
	}
	if c.Index.D < 1 {
		return fmt.Errorf("invalid dimensions: %d (must be >= 1)", c.Index.D)
	}
	if c.Index.N < 1 || c.Index.N > 64 {
		return fmt.Errorf("invalid bits per code: %d (must be 1-64)", c.Index.N)
	}
	if c.Index.N > c.Index.D {
		return fmt.Errorf("bits per code (%d) must not exceed dimensions (%d)", c.Index.N, c.Index.D)
	}
	if c.Index.S < 1 {
		return fmt.Errorf("invalid sample size: %d (must be >= 1)", c.Index.S)
	}
	if c.Index.I < 0 {
		return fmt.Errorf("invalid ITQ iterations: %d (must be >= 0)", c.Index.I)
	}
	if c.Training.BatchSize < 1 {
		return fmt.Errorf("invalid training batch size: %d (must be >= 1)", c.Training.BatchSize)
	}
	if c.Data.IndexPath == "" {
		return fmt.Errorf("index path not specified")
	}
	return nil
}
