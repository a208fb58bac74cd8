package main

import (
	"pageshot/internal/buildcfg"
	"pageshot/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	buildFormat string
	buildEnv    string
)

var buildcfgCmd = &cobra.Command{
	Use:   "buildcfg",
	Short: "Print the resolved site build configuration",
	Long: `Resolves the build output adapter from NODE_ENV (or --env):
exactly "production" selects the static adapter, anything else the node
adapter. Links are always resolved relative to the page. The config file
has no say in the adapter.`,
	Args: cobra.NoArgs,
	RunE: runBuildcfg,
}

func runBuildcfg(cmd *cobra.Command, args []string) error {
	resolved := buildcfg.FromEnv()
	if cmd.Flags().Changed("env") {
		resolved = buildcfg.Resolve(buildEnv)
	}

	logger.Get(logging.CategoryBuild).Debug("Build adapter selected",
		zap.String("adapter", string(resolved.Kit.Adapter)),
		zap.Bool("server_runtime", resolved.Kit.Adapter.ServerRuntime()))

	return resolved.Encode(cmd.OutOrStdout(), buildFormat)
}
