package main

import (
	"fmt"
	"strconv"

	"github.com/gftdcojp/tng-client/internal/bulk"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) bulkCmd() *cobra.Command {
	var (
		table     string
		count     int
		threshold float64
		driver    string
		dsn       string
		workers   int
		pageSize  int
	)
	cmd := &cobra.Command{
		Use:   "bulk SIMULATION SNAPSHOT",
		Short: "Copy a snapshot's subhalo listing into a SQL table",
		Long: `Fetch the subhalo listing of a snapshot page by page and append the rows
to a SQL table, created from the first row's fields.

Driver, DSN, worker count and page size default to the bulk section of the
configuration file.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			snap, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("snapshot %q is not an integer", args[1])
			}
			if err := a.load(); err != nil {
				return err
			}
			bc := a.cfg.Bulk
			flags := cmd.Flags()
			if flags.Changed("driver") {
				bc.Driver = driver
			}
			if flags.Changed("dsn") {
				bc.DSN = dsn
			}
			if flags.Changed("workers") {
				bc.Workers = workers
			}
			if flags.Changed("page-size") {
				bc.PageSize = pageSize
			}
			if bc.Workers <= 0 || bc.PageSize <= 0 {
				return fmt.Errorf("workers and page size must be > 0")
			}

			arc, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer arc.Close()

			db, err := bulk.Open(ctx, bc)
			if err != nil {
				return err
			}
			defer db.Close()

			if table == "" {
				table = fmt.Sprintf("subhalos_%d", snap)
			}
			sink, err := bulk.NewSink(db, bc.Driver, table, a.logger)
			if err != nil {
				return err
			}
			w := bulk.NewWriter(arc.Client, sink, a.logger)
			if flags.Changed("mass-threshold") {
				w.MassThreshold = &threshold
			}

			if count == 0 {
				first, err := arc.Client.Page(ctx, arc.Client.SubhaloListURL(args[0], snap, 1, 0))
				if err != nil {
					return err
				}
				count = first.Count
			}
			urls := bulk.SubhaloPages(arc.Client, args[0], snap, count, bc.PageSize)

			task := a.rowProgress(table, int64(count))
			n, err := w.Run(ctx, urls, bc.Workers, task)
			task.Finish()
			if err != nil {
				return err
			}
			a.logger.Info("bulk copy complete", zap.String("table", table), zap.Int("rows", n), zap.Int("pages", len(urls)))
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows written to %s\n", n, table)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&table, "table", "t", "", "destination table (default subhalos_<snapshot>)")
	f.IntVarP(&count, "count", "n", 0, "number of subhalos to copy, 0 for all")
	f.Float64Var(&threshold, "mass-threshold", 0, "keep only rows with mass_log_msun above this value")
	f.StringVar(&driver, "driver", "", "database driver, sqlite or pgx")
	f.StringVar(&dsn, "dsn", "", "database DSN")
	f.IntVarP(&workers, "workers", "w", 0, "concurrent page fetchers")
	f.IntVar(&pageSize, "page-size", 0, "rows per listing page")
	return cmd
}
