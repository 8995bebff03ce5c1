package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mwantia/docstore"
	"github.com/mwantia/docstore/cmd"
	"github.com/mwantia/docstore/cmd/builtin"
	"github.com/mwantia/docstore/config"
)

func main() {
	configPath := flag.String("config", "", "Path to the configuration file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: docstore [-config file] <command> [args]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code, err := run(ctx, *configPath, flag.Args())
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "docstore: %v\n", err)
	}
	os.Exit(code)
}

func run(ctx context.Context, configPath string, args []string) (int, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return 2, err
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return 2, err
	}

	opts := cfg.StorageOptions(logger)

	idx, err := cfg.NewSearchIndex(logger)
	if err != nil {
		return 1, fmt.Errorf("failed to open search index: %w", err)
	}
	var searcher cmd.Searcher
	if idx != nil {
		defer idx.Close()
		opts = append(opts, docstore.WithIndexer(idx))
		searcher = idx
	}

	recorder, err := cfg.NewRecorder(ctx, logger)
	if err != nil {
		return 1, fmt.Errorf("failed to create change log: %w", err)
	}
	if recorder != nil {
		opts = append(opts, docstore.WithChangeRecorder(recorder))
	}

	storage, err := docstore.New(cfg.Storage.Root, opts...)
	if err != nil {
		if recorder != nil {
			recorder.Close()
		}
		return 1, err
	}
	defer func() {
		if err := storage.Close(); err != nil {
			logger.Warn("Failed to close storage: %v", err)
		}
	}()

	if err := storage.LoadEntries(ctx); err != nil {
		return 1, err
	}

	if idx != nil {
		total, err := idx.Rebuild(ctx, storage)
		if err != nil {
			return 1, fmt.Errorf("failed to rebuild search index: %w", err)
		}
		logger.Debug("Indexed %d files for full-text search", total)
	}

	manager := cmd.NewManager(storage)
	if err := builtin.RegisterAll(manager, searcher); err != nil {
		return 1, err
	}

	if len(args) == 0 {
		return manager.Help(os.Stdout)
	}
	return manager.Execute(ctx, os.Stdout, args...)
}
