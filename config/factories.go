package config

import (
	"context"
	"errors"

	"github.com/mwantia/docstore"
	"github.com/mwantia/docstore/changelog"
	"github.com/mwantia/docstore/changelog/adapters"
	"github.com/mwantia/docstore/log"
	"github.com/mwantia/docstore/search"
)

// NewLogger creates the root logger described by the logging section.
func (c *Config) NewLogger() (*log.Logger, error) {
	level, err := log.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}

	logger := log.NewLogger("docstore", level, c.Logging.File, c.Logging.NoTerminal)
	logger.JSON = c.Logging.JSON
	logger.NoColor = c.Logging.NoColor
	return logger, nil
}

// StorageOptions maps the storage section to storage options.
func (c *Config) StorageOptions(logger *log.Logger) []docstore.Option {
	return []docstore.Option{
		docstore.WithLogger(logger),
		docstore.WithMaxInlineSize(c.Storage.MaxInlineSize),
		docstore.WithLoadWorkers(c.Storage.LoadWorkers),
	}
}

// NewSearchIndex opens the full-text index, or returns nil when search is disabled.
func (c *Config) NewSearchIndex(logger *log.Logger) (*search.Index, error) {
	if !c.Search.Enabled {
		return nil, nil
	}
	return search.Open(c.Search.Path, logger.Named("search"))
}

// NewRecorder creates the change log recorder with every enabled adapter,
// or returns nil when the change log is disabled.
func (c *Config) NewRecorder(ctx context.Context, logger *log.Logger) (*changelog.Recorder, error) {
	if !c.Changelog.Enabled {
		return nil, nil
	}

	list, err := c.newAdapters(ctx)
	if err != nil {
		return nil, err
	}

	recorder, err := changelog.New(c.Changelog.Dir, c.Changelog.SnapshotEvery, logger.Named("changelog"), list...)
	if err != nil {
		errs := make([]error, 0, len(list)+1)
		errs = append(errs, err)
		for _, adapter := range list {
			errs = append(errs, adapter.Close())
		}
		return nil, errors.Join(errs...)
	}
	return recorder, nil
}

func (c *Config) newAdapters(ctx context.Context) ([]changelog.Adapter, error) {
	list := make([]changelog.Adapter, 0)

	closeAll := func(err error) ([]changelog.Adapter, error) {
		for _, adapter := range list {
			adapter.Close()
		}
		return nil, err
	}

	if cfg := c.Changelog.Consul; cfg.Enabled {
		adapter, err := adapters.NewConsul(&adapters.ConsulConfig{
			Address:    cfg.Address,
			Token:      cfg.Token,
			Datacenter: cfg.Datacenter,
			Prefix:     cfg.Prefix,
		})
		if err != nil {
			return closeAll(err)
		}
		list = append(list, adapter)
	}

	if cfg := c.Changelog.Postgres; cfg.Enabled {
		adapter, err := adapters.NewPostgres(ctx, cfg.DSN)
		if err != nil {
			return closeAll(err)
		}
		list = append(list, adapter)
	}

	if cfg := c.Changelog.S3; cfg.Enabled {
		adapter, err := adapters.NewS3(&adapters.S3Config{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Prefix:    cfg.Prefix,
		})
		if err != nil {
			return closeAll(err)
		}
		if err := adapter.Open(ctx); err != nil {
			return closeAll(err)
		}
		list = append(list, adapter)
	}

	return list, nil
}
