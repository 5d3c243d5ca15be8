package marisk

import (
	"io/fs"
	"log/slog"
)

// Option configures New.
type Option func(*resolvedOptions)

// resolvedOptions collects option values before config resolution.
type resolvedOptions struct {
	port            int
	databaseURL     string
	logger          *slog.Logger
	version         string
	extraMigrations fs.FS
}

// WithPort overrides the HTTP listen port from MARISK_PORT.
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the Postgres DSN from MARISK_DATABASE_URL.
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported by /healthz and telemetry.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithExtraMigrations replaces the embedded migration set. Embedders that
// extend the schema provide a filesystem containing both the base .sql
// files and their additions.
func WithExtraMigrations(dir fs.FS) Option {
	return func(o *resolvedOptions) { o.extraMigrations = dir }
}
