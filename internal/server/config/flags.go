package config

import (
	"flag"
	"fmt"

	"github.com/dmitrijs2005/buildlog/internal/flagx"
)

// parseFlags overlays cfg with the flags it owns:
//
//	-a string   HTTP bind address (":8080")
//	-d string   PostgreSQL DSN
//	-k string   token signing key
//	-l string   log backend: slog or zap
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-k", "-l"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "address and port to run server")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "k", cfg.SecretKey, "token signing key")
	fs.StringVar(&cfg.LogBackend, "l", cfg.LogBackend, "log backend (slog|zap)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	switch cfg.LogBackend {
	case LogBackendSlog, LogBackendZap:
	default:
		panic(fmt.Errorf("unknown log backend %q", cfg.LogBackend))
	}
}
