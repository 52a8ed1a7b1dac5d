package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/gftdcojp/tng-client/internal/lifecycle"
	"github.com/gftdcojp/tng-client/internal/meta"
	"github.com/spf13/cobra"
)

func (a *app) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the on-disk document cache",
		Long: `Operate on the bolt document cache at cache.path. The commands work
whether or not cache.enabled is set, so a cache can be inspected after it
has been switched off.`,
	}
	cmd.AddCommand(a.cacheLsCmd(), a.cacheRmCmd(), a.cachePruneCmd(), a.cacheStatsCmd())
	return cmd
}

// withCache opens the bolt cache named by the configuration.
func (a *app) withCache(fn func(store *meta.BoltStore) error) error {
	if err := a.readConfig(); err != nil {
		return err
	}
	if a.cfg.Cache.Path == "" {
		return fmt.Errorf("cache.path is not set in %s", a.configPath)
	}
	store, err := meta.NewBoltStore(a.cfg.Cache.Path, a.logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (a *app) cacheLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [URL-PREFIX]",
		Short: "List cached documents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return a.withCache(func(store *meta.BoltStore) error {
				docs, err := store.List(cmd.Context(), prefix)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "FETCHED\tBYTES\tURL")
				for _, d := range docs {
					fmt.Fprintf(tw, "%s\t%d\t%s\n", d.FetchedAt.Format(time.RFC3339), len(d.Body), d.URL)
				}
				return tw.Flush()
			})
		},
	}
}

func (a *app) cacheRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm URL...",
		Short: "Remove cached documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCache(func(store *meta.BoltStore) error {
				for _, u := range args {
					if err := store.Delete(cmd.Context(), u); err != nil {
						return fmt.Errorf("removing %s: %w", u, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d documents\n", len(args))
				return nil
			})
		},
	}
}

func (a *app) cachePruneCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove documents older than a maximum age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCache(func(store *meta.BoltStore) error {
				age := olderThan
				if !cmd.Flags().Changed("older-than") {
					age = a.cfg.Cache.MaxAge.Duration()
				}
				if age <= 0 {
					return fmt.Errorf("no maximum age: set --older-than or cache.max_age")
				}
				n, err := lifecycle.NewManager(store, age, a.logger).Prune(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d documents\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "maximum document age (default cache.max_age)")
	return cmd
}

func (a *app) cacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the number of cached documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCache(func(store *meta.BoltStore) error {
				n, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d documents\n", a.cfg.Cache.Path, n)
				return nil
			})
		},
	}
}
