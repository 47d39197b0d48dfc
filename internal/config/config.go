package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Database   DatabaseConfig
	MariaDB    MariaDBConfig
	Extractor  ExtractorConfig
	Gallery    GalleryConfig
	Session    SessionConfig
	Thresholds ThresholdsConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MariaDBConfig struct {
	DSN string // optional MariaDB DSN for deployments without PostgreSQL
}

type ExtractorConfig struct {
	URL      string  // detection/embedding server, defaults to http://localhost:8000
	Provider string  // "insightface" (default) or "compreface"
	Dim      int     // embedding dimension, fixed per deployment (default 512)
	Resize   float64 // frame downscale factor before upload (default 0.5, 1.0 disables)
}

type GalleryConfig struct {
	Dir        string // directory for per-tenant gallery blobs (default "galleries")
	SamplesDir string // directory for enrollment sample images (default "samples")
}

type SessionConfig struct {
	FrameDecimation int // evaluate every Nth frame (default 3)
	SuppressSeconds int // re-trigger suppression window for attendance marks (default 30)
}

type ThresholdsConfig struct {
	Profiles map[string]ThresholdProfile `yaml:"profiles"`
}

type ThresholdProfile struct {
	Threshold float64 `yaml:"threshold"`
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

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var thresholds ThresholdsConfig
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		MariaDB: MariaDBConfig{
			DSN: os.Getenv("MARIADB_DSN"),
		},
		Extractor: ExtractorConfig{
			URL:      envString("EXTRACTOR_URL", "http://localhost:8000"),
			Provider: envString("EXTRACTOR_PROVIDER", "insightface"),
			Dim:      envInt("EXTRACTOR_DIM", 512),
			Resize:   envFloat("EXTRACTOR_RESIZE", 0.5),
		},
		Gallery: GalleryConfig{
			Dir:        envString("GALLERY_DIR", "galleries"),
			SamplesDir: envString("SAMPLES_DIR", "samples"),
		},
		Session: SessionConfig{
			FrameDecimation: envInt("FRAME_DECIMATION", 3),
			SuppressSeconds: envInt("SUPPRESS_SECONDS", 30),
		},
		Thresholds: thresholds,
	}
}

// Threshold returns the decision threshold for a named profile. Unknown
// profiles fall back to "stream", then to 0.5 if the embedded defaults are
// somehow missing it. MATCH_THRESHOLD overrides every profile when set.
func (c *Config) Threshold(profile string) float64 {
	if f := envFloat("MATCH_THRESHOLD", 0); f > 0 {
		return f
	}
	if p, ok := c.Thresholds.Profiles[profile]; ok && p.Threshold > 0 {
		return p.Threshold
	}
	if p, ok := c.Thresholds.Profiles["stream"]; ok && p.Threshold > 0 {
		return p.Threshold
	}
	return 0.5
}
