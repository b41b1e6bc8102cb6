package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pulseboard/pulseboard/pkg/config"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the datasource configuration",
		Long: `Validate the datasource configuration file.

This command checks:
  - YAML syntax validity
  - Required fields on every datasource
  - Name uniqueness and the reserved "default" name
  - That the default datasource names a configured entry`,
		Example: `  # Validate the default config file
  pulseboard validate

  # Validate a specific file
  pulseboard validate -c ./configs/pulseboard.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("path", configPath).
				Msg("Validating configuration")

			file, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if _, err := file.Store(); err != nil {
				return err
			}

			fmt.Printf("Configuration valid: %d datasources, %d variables\n",
				len(file.Datasources), len(file.Variables))
			if file.Default != "" {
				fmt.Printf("Default datasource: %s\n", file.Default)
			}
			return nil
		},
	}

	return cmd
}
