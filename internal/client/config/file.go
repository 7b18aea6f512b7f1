package config

import (
	"github.com/dmitrijs2005/buildlog/internal/configfile"
	"github.com/dmitrijs2005/buildlog/internal/flagx"
	"github.com/dmitrijs2005/buildlog/internal/timex"
)

// FileConfig is the on-disk shape. Zero values leave the current setting
// untouched.
type FileConfig struct {
	BackendURL        string         `json:"backend_url" yaml:"backend_url"`
	StorageBackend    string         `json:"storage_backend" yaml:"storage_backend"`
	S3Bucket          string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region          string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3AccessKey       string         `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey       string         `json:"s3_secret_key" yaml:"s3_secret_key"`
	SupabaseURL       string         `json:"supabase_url" yaml:"supabase_url"`
	SupabaseKey       string         `json:"supabase_key" yaml:"supabase_key"`
	SupabaseBucket    string         `json:"supabase_bucket" yaml:"supabase_bucket"`
	UploadConcurrency int            `json:"upload_concurrency" yaml:"upload_concurrency"`
	RequestTimeout    timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	PresignExpiry     timex.Duration `json:"presign_expiry" yaml:"presign_expiry"`
}

func parseFile(cfg *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	var fc FileConfig
	if err := configfile.Decode(path, &fc); err != nil {
		panic(err)
	}
	fc.apply(cfg)
}

func (fc FileConfig) apply(cfg *Config) {
	setString(&cfg.BackendURL, fc.BackendURL)
	setString(&cfg.Storage.Backend, fc.StorageBackend)
	setString(&cfg.Storage.S3Bucket, fc.S3Bucket)
	setString(&cfg.Storage.S3Region, fc.S3Region)
	setString(&cfg.Storage.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&cfg.Storage.S3AccessKey, fc.S3AccessKey)
	setString(&cfg.Storage.S3SecretKey, fc.S3SecretKey)
	setString(&cfg.Storage.SupabaseURL, fc.SupabaseURL)
	setString(&cfg.Storage.SupabaseKey, fc.SupabaseKey)
	setString(&cfg.Storage.SupabaseBucket, fc.SupabaseBucket)
	if fc.UploadConcurrency > 0 {
		cfg.UploadConcurrency = fc.UploadConcurrency
	}
	if fc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.PresignExpiry.Duration > 0 {
		cfg.Storage.PresignExpiry = fc.PresignExpiry.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
