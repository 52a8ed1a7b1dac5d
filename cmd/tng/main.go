package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gftdcojp/tng-client/internal/archive"
	"github.com/gftdcojp/tng-client/internal/config"
	"github.com/gftdcojp/tng-client/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

// app is the state shared by subcommands.
type app struct {
	configPath string
	logLevel   string
	quiet      bool

	stdout io.Writer
	stderr io.Writer

	cfg      *config.Config
	logger   *zap.Logger
	closeLog func()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	root := a.rootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tng",
		Short:         "Query the cosmological simulation archive",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Sync()
			}
			if a.closeLog != nil {
				a.closeLog()
			}
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfigPath(), "path to configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override observability.logging.level")
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "disable progress bars")

	root.AddCommand(
		a.getCmd(),
		a.fieldCmd(),
		a.derivedCmd(),
		a.downloadCmd(),
		a.visualCmd(),
		a.bulkCmd(),
		a.mirrorCmd(),
		a.cacheCmd(),
		a.apikeyCmd(),
		versionCmd(),
	)
	return root
}

func defaultConfigPath() string {
	if p := os.Getenv("TNG_CONFIG"); p != "" {
		return p
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tng", "config.yaml")
	}
	return "config.yaml"
}

// readConfig reads configuration without validating it and builds the
// logger.
func (a *app) readConfig() error {
	cfg, err := config.ReadOrDefault(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Observability.Logging.Level = a.logLevel
	}
	logger, closeLog, err := logging.New(cfg.Observability.Logging, time.Now())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	a.cfg, a.logger, a.closeLog = cfg, logger, closeLog
	return nil
}

// load reads and validates configuration.
func (a *app) load() error {
	if err := a.readConfig(); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// open loads configuration and returns a ready archive.
func (a *app) open(ctx context.Context) (*archive.Archive, error) {
	if a.cfg == nil {
		if err := a.load(); err != nil {
			return nil, err
		}
	}
	return archive.Open(ctx, a.cfg, a.logger, archive.Options{Progress: a.progress()})
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tng %s\n", version)
		},
	}
}
