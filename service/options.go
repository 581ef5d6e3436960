package service

import (
	"log/slog"

	"github.com/wkalt/lakelet/storage"
)

// Option is a functional option for the lakelet service.
type Option func(*Options)

// Options contains options for the lakelet service.
type Options struct {
	Store              storage.Provider
	Port               int
	LogLevel           slog.Level
	AllowedOrigins     []string
	CheckpointInterval int
	MaxFileBytes       int64
	User               string
}

// WithStorageProvider sets the storage provider backing all tables.
func WithStorageProvider(store storage.Provider) Option {
	return func(opts *Options) {
		opts.Store = store
	}
}

// WithPort sets the port to listen on.
func WithPort(port int) Option {
	return func(opts *Options) {
		opts.Port = port
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level slog.Level) Option {
	return func(opts *Options) {
		opts.LogLevel = level
	}
}

// WithAllowedOrigins sets the CORS allowed origins.
func WithAllowedOrigins(origins []string) Option {
	return func(opts *Options) {
		opts.AllowedOrigins = origins
	}
}

// WithCheckpointInterval sets the commit count between log checkpoints.
func WithCheckpointInterval(interval int) Option {
	return func(opts *Options) {
		opts.CheckpointInterval = interval
	}
}

// WithMaxFileBytes sets the target data file size.
func WithMaxFileBytes(size int64) Option {
	return func(opts *Options) {
		opts.MaxFileBytes = size
	}
}

// WithUser sets the user recorded in commit metadata.
func WithUser(user string) Option {
	return func(opts *Options) {
		opts.User = user
	}
}
