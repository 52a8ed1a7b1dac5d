package main

import (
	"fmt"
	"strings"

	"github.com/gftdcojp/tng-client/internal/config"
	"github.com/spf13/cobra"
)

func (a *app) apikeyCmd() *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "apikey [KEY]",
		Short: "Store or show the archive API key",
		Long: `Store KEY as api.api_key in the configuration file, creating the file
from defaults when it does not exist. The ` + config.APIKeyEnv + ` environment
variable overrides the stored key at load time.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ReadOrDefault(a.configPath)
			if err != nil {
				return err
			}
			if show || len(args) == 0 {
				if cfg.API.APIKey == "" {
					return fmt.Errorf("no API key configured in %s", a.configPath)
				}
				fmt.Fprintln(cmd.OutOrStdout(), mask(cfg.API.APIKey))
				return nil
			}
			key := strings.TrimSpace(args[0])
			if key == "" {
				return fmt.Errorf("empty API key")
			}
			cfg.API.APIKey = key
			if err := config.Save(a.configPath, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key saved to %s\n", a.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "print the configured key, masked")
	return cmd
}

// mask hides all but the last four characters.
func mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
