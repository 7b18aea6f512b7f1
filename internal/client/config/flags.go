package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/dmitrijs2005/buildlog/internal/client/storage"
	"github.com/dmitrijs2005/buildlog/internal/flagx"
)

// parseFlags overlays cfg with -b, -s, -n and -t. Other arguments are
// ignored so the config file flag and unrelated flags can coexist.
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-b", "-s", "-n", "-t"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.StringVar(&cfg.BackendURL, "b", cfg.BackendURL, "backend base URL")
	fs.StringVar(&cfg.Storage.Backend, "s", cfg.Storage.Backend, "storage backend (s3|supabase)")
	fs.IntVar(&cfg.UploadConcurrency, "n", cfg.UploadConcurrency, "concurrent transfers")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	switch cfg.Storage.Backend {
	case storage.BackendS3, storage.BackendSupabase:
	default:
		panic(fmt.Errorf("%w: %q", storage.ErrUnknownBackend, cfg.Storage.Backend))
	}
	if cfg.UploadConcurrency <= 0 {
		panic(fmt.Errorf("upload concurrency must be positive, got %d", cfg.UploadConcurrency))
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
