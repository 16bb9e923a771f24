package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Inference InferenceConfig
	Index     IndexConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Tuning    TuningConfig
}

type InferenceConfig struct {
	URL            string // base URL of the detection/embedding sidecar (e.g. http://localhost:8000)
	TimeoutSeconds int    // per-request timeout (default 60)
}

type IndexConfig struct {
	Path string // path to the persisted vector index blob
	Dim  int    // embedding dimension (default 512, fixed at index creation)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type StorageConfig struct {
	UploadDir string // directory where ingested photos are stored
	BaseURL   string // public base URL for serving matched photos (e.g. https://photos.example.com)
}

// TuningConfig holds pipeline tuning knobs loaded from the embedded
// defaults.yaml. These rarely change between deployments.
type TuningConfig struct {
	Detection struct {
		MinConfidence float64 `yaml:"min_confidence"`
		MinFaceSizePx int     `yaml:"min_face_size_px"`
		CropSize      int     `yaml:"crop_size"`
	} `yaml:"detection"`
	Quality struct {
		BlurThreshold     float64 `yaml:"blur_threshold"`
		DarknessThreshold float64 `yaml:"darkness_threshold"`
	} `yaml:"quality"`
	Encoding struct {
		BatchSize int `yaml:"batch_size"`
	} `yaml:"encoding"`
	Search struct {
		MaxDistance float64 `yaml:"max_distance"`
		SearchK     int     `yaml:"search_k"`
	} `yaml:"search"`
	Ingest struct {
		RecordChunkSize int `yaml:"record_chunk_size"`
	} `yaml:"ingest"`
	Loader struct {
		MaxDimension  int `yaml:"max_dimension"`
		MinDimension  int `yaml:"min_dimension"`
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"loader"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString reads an environment variable, falling back to a default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var tuning TuningConfig
	if err := yaml.Unmarshal(defaultsYAML, &tuning); err != nil {
		// Embedded file, should never happen in practice.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Inference: InferenceConfig{
			URL:            envString("INFERENCE_URL", "http://localhost:8000"),
			TimeoutSeconds: envInt("INFERENCE_TIMEOUT_SECONDS", 60),
		},
		Index: IndexConfig{
			Path: envString("INDEX_PATH", "face_index.bin"),
			Dim:  envInt("INDEX_DIM", 512),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Storage: StorageConfig{
			UploadDir: envString("UPLOAD_DIR", "uploads"),
			BaseURL:   envString("BASE_URL", "http://localhost:8080"),
		},
		Tuning: tuning,
	}
}
