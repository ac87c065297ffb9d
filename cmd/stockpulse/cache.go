package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"stockpulse/internal/blobstore"
	"stockpulse/internal/cache"
	"stockpulse/internal/config"
	"stockpulse/internal/infrastructure"
)

func newCacheCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the result cache",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Print cache statistics as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withCache(cmd.Context(), state.cfg, func(ctx context.Context, rc *cache.ResultCache) error {
					stats, err := rc.Stats(ctx)
					if err != nil {
						return err
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(stats)
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every cached result",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withCache(cmd.Context(), state.cfg, func(ctx context.Context, rc *cache.ResultCache) error {
					n, err := rc.ClearAll(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %d entries\n", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Delete expired cache entries",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withCache(cmd.Context(), state.cfg, func(ctx context.Context, rc *cache.ResultCache) error {
					n, err := rc.SweepExpired(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "swept %d expired entries\n", n)
					return nil
				})
			},
		},
	)
	return cmd
}

func withCache(ctx context.Context, cfg *config.Config, fn func(context.Context, *cache.ResultCache) error) error {
	logger := infrastructure.WithComponent(infrastructure.GetLogger(), "cli")

	store, err := blobstore.New(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer blobstore.Close(store)

	rc := cache.New(store,
		cache.WithEnabled(cfg.Cache.Enabled),
		cache.WithTTL(cfg.Cache.TTL()),
		cache.WithPrefix(cfg.Cache.Prefix),
		cache.WithBackendName(cfg.Cache.Backend),
		cache.WithLogger(logger),
	)
	return fn(ctx, rc)
}
