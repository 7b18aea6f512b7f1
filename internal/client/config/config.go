package config

import (
	"os"
	"time"

	"github.com/dmitrijs2005/buildlog/internal/client/storage"
)

type Config struct {
	BackendURL        string
	UploadConcurrency int
	RequestTimeout    time.Duration
	Storage           storage.Config
}

// LoadDefaults populates c with defaults suitable for a local stack.
func (c *Config) LoadDefaults() {
	c.BackendURL = "http://127.0.0.1:8080"
	c.UploadConcurrency = 4
	c.RequestTimeout = 30 * time.Second
	c.Storage = storage.Config{
		Backend:        storage.BackendS3,
		S3Bucket:       "buildlog",
		S3Region:       "us-east-1",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		SupabaseBucket: "buildlog",
		PresignExpiry:  15 * time.Minute,
	}
}

// LoadConfig applies defaults, then the config file, then flags.
// Malformed input panics.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg, os.Args[1:])
	parseFlags(cfg, os.Args[1:])
	return cfg
}
