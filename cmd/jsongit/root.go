package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foldline/jsongit/internal/codec"
	"github.com/foldline/jsongit/internal/config"
	"github.com/foldline/jsongit/internal/logging"
	"github.com/foldline/jsongit/internal/objstore"
	"github.com/foldline/jsongit/internal/objstore/memstore"
	"github.com/foldline/jsongit/internal/objstore/sqlitestore"
	"github.com/foldline/jsongit/internal/repo"
)

var (
	storePath  string
	useMemory  bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "jsongit",
	Short:         "A content-addressed version-control engine for JSON documents",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "path to the SQLite object store (default .jsongit/objects.db)")
	rootCmd.PersistentFlags().BoolVar(&useMemory, "memory", false, "use an in-memory object store instead of SQLite")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "accepted but not read by any command; output is always the formatted form")
}

// openRepository builds a Repository and a closer over the store selected
// by --store/--memory and the layered project/environment configuration.
func openRepository(ctx context.Context) (*repo.Repository, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("jsongit: load config: %w", err)
	}

	var store objstore.Store
	var closer func() error
	if useMemory {
		store = memstore.New()
		closer = store.Close
	} else {
		path := cfg.StorePath
		if storePath != "" {
			path = storePath
		}
		sq, err := sqlitestore.Open(ctx, path)
		if err != nil {
			return nil, nil, fmt.Errorf("jsongit: open store %s: %w", path, err)
		}
		store = sq
		closer = sq.Close
	}

	identity := repo.Identity{Name: cfg.IdentityName, Email: cfg.IdentityEmail}
	r := repo.New(store, codec.Default(), identity)
	r = r.WithLogger(logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile}))
	return r, closer, nil
}
