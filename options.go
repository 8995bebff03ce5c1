package docstore

import (
	"fmt"

	"github.com/mwantia/docstore/log"
)

// DefaultMaxInlineSize is the largest content returned inline in a FileState.
const DefaultMaxInlineSize int64 = 4 << 20

type Options struct {
	Logger        *log.Logger
	MaxInlineSize int64
	LoadWorkers   int
	Recorder      ChangeRecorder
	Indexer       Indexer
}

type Option func(*Options) error

func newDefaultOptions() *Options {
	return &Options{
		Logger:        log.NewLogger("docstore", log.Info, "", false),
		MaxInlineSize: DefaultMaxInlineSize,
		LoadWorkers:   8,
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(opts *Options) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		opts.Logger = logger
		return nil
	}
}

// WithMaxInlineSize sets the content size ceiling; zero or negative disables the ceiling.
func WithMaxInlineSize(size int64) Option {
	return func(opts *Options) error {
		opts.MaxInlineSize = size
		return nil
	}
}

func WithLoadWorkers(workers int) Option {
	return func(opts *Options) error {
		if workers < 1 {
			return fmt.Errorf("load workers must be at least 1, got %d", workers)
		}
		opts.LoadWorkers = workers
		return nil
	}
}

func WithChangeRecorder(recorder ChangeRecorder) Option {
	return func(opts *Options) error {
		opts.Recorder = recorder
		return nil
	}
}

// WithIndexer pushes every mutation to a full-text index after the write lock is released.
func WithIndexer(indexer Indexer) Option {
	return func(opts *Options) error {
		opts.Indexer = indexer
		return nil
	}
}
