package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"meridian-hq/meridian/pkg/catalog"
	"meridian-hq/meridian/pkg/cli"
	"meridian-hq/meridian/pkg/config"
)

var validateFlags struct {
	skipCatalog bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and catalog",
	Long: `Validate the configuration file and the model catalog it references
without starting the gateway.

All configuration problems are reported at once, not one at a time. The
catalog check loads the catalog file and applies the same structural
validation the running gateway uses on hot reload.

Examples:
  # Validate the default config
  meridian validate

  # Validate a specific config file
  meridian validate --config /etc/meridian/config.yaml

  # Skip the catalog file check (e.g. when it is provisioned separately)
  meridian validate --skip-catalog`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.skipCatalog, "skip-catalog", false, "do not load and validate the catalog file")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			for _, fe := range verr.Errors {
				fmt.Printf("  ✗ %s\n", fe.Error())
			}
			return cli.NewCommandError("validate", fmt.Errorf("%d configuration error(s)", len(verr.Errors)))
		}
		return cli.NewConfigError("", err.Error())
	}
	fmt.Printf("✓ Configuration valid (%s)\n", cfgFile)

	if !validateFlags.skipCatalog {
		cat := catalog.New(cfg.Catalog.Path, catalog.Options{})
		if err := cat.Load(); err != nil {
			fmt.Printf("  ✗ catalog: %v\n", err)
			return cli.NewCommandError("validate", fmt.Errorf("catalog validation failed"))
		}
		fmt.Printf("✓ Catalog valid (%s, %d models)\n", cfg.Catalog.Path, cat.Len())
	}

	fmt.Printf("✓ Providers configured: %d\n", len(cfg.Providers))
	fmt.Printf("✓ Ledger backend: %s\n", cfg.Ledger.Backend)

	return nil
}
