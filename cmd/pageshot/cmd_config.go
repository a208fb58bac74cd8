package main

import (
	"fmt"

	"pageshot/internal/config"
	"pageshot/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// skipConfigLoad marks commands that must run without reading --config.
const skipConfigLoad = "pageshot/skip-config-load"

var initForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the pageshot config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to --config",
	Long: `Writes every setting at its default value to the --config path
(pageshot.yaml by default). An existing file is left alone unless --force
is given.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipConfigLoad: "true"},
	RunE:        runConfigInit,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := config.DefaultConfig().Save(configPath, initForce); err != nil {
		return err
	}
	logger.Get(logging.CategoryBoot).Debug("Config written",
		zap.String("path", configPath),
		zap.Bool("force", initForce))
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
	return nil
}
