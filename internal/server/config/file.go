package config

import (
	"github.com/dmitrijs2005/buildlog/internal/configfile"
	"github.com/dmitrijs2005/buildlog/internal/flagx"
	"github.com/dmitrijs2005/buildlog/internal/timex"
)

// FileConfig is the on-disk shape; empty fields keep the current value.
type FileConfig struct {
	HTTPAddr      string         `json:"http_addr" yaml:"http_addr"`
	DatabaseDSN   string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey     string         `json:"secret_key" yaml:"secret_key"`
	TokenValidity timex.Duration `json:"token_validity" yaml:"token_validity"`
	LogBackend    string         `json:"log_backend" yaml:"log_backend"`
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

	if fc.HTTPAddr != "" {
		cfg.HTTPAddr = fc.HTTPAddr
	}
	if fc.DatabaseDSN != "" {
		cfg.DatabaseDSN = fc.DatabaseDSN
	}
	if fc.SecretKey != "" {
		cfg.SecretKey = fc.SecretKey
	}
	if fc.TokenValidity.Duration > 0 {
		cfg.TokenValidity = fc.TokenValidity.Duration
	}
	if fc.LogBackend != "" {
		cfg.LogBackend = fc.LogBackend
	}
}
