package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gary-archer/oauth.websample.azure/pkg/config"
	"github.com/gary-archer/oauth.websample.azure/pkg/logger"
)

// newValidateCmd creates the validate command for checking configuration
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long:  "Check the configuration file for missing or inconsistent settings without starting the server.",
		RunE: func(_ *cobra.Command, _ []string) error {
			configPath := viper.GetString("config")

			configuration, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			logger.Infof("Configuration %s is valid", configPath)
			logger.Infof("  Issuer: %s", configuration.OAuth.Issuer)
			logger.Infof("  Audience: %s", configuration.OAuth.Audience)
			logger.Infof("  Claims provider: %s", configuration.OAuth.ClaimsProvider)
			return nil
		},
	}
}
