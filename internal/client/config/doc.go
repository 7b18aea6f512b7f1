// Package config loads runtime configuration for the BuildLog CLI.
//
// Sources, later ones overriding earlier ones:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. An optional JSON or YAML file named with -c or -config.
//  3. Command-line flags.
//
// Supported flags
//
//	-b string   backend base URL
//	-s string   storage backend: s3 or supabase
//	-n int      concurrent uploads/downloads
//	-t int      backend request timeout (seconds)
//
// Durations in the file use timex.Duration, so both "30s" and integer
// nanoseconds are accepted:
//
//	backend_url: http://127.0.0.1:8080
//	storage_backend: s3
//	s3_bucket: buildlog
//	s3_base_endpoint: http://127.0.0.1:9000
//	request_timeout: 30s
package config
