package main

import (
	"fmt"
	"os"
	"time"

	"pageshot/internal/browser"
	"pageshot/internal/capture"
	"pageshot/internal/config"
	"pageshot/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	cfg    = config.DefaultConfig()
	logger = logging.Nop()

	// newLauncher is swapped out in tests.
	newLauncher = func(c browser.Config, l *zap.Logger) capture.Launcher {
		return browser.NewLauncher(c, l)
	}
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pageshot",
	Short: "Capture a web page to PNG and resolve the site build adapter",
	Long: `pageshot renders a page in headless Chromium and saves a screenshot.

Run without a subcommand to capture SCREENSHOT_URL into SCREENSHOT_OUT
(defaults: the demo site and static/screenshot.png).

The buildcfg subcommand prints the site build configuration: the static
adapter when NODE_ENV=production, the node adapter otherwise.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.DefaultConfig()
		if cmd.Annotations[skipConfigLoad] == "" {
			if cmd.Flags().Changed("config") {
				if _, err := os.Stat(configPath); err != nil {
					return fmt.Errorf("config file: %w", err)
				}
			}

			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}

		l, err := logging.New(cfg.LoggingOptions(verbose))
		if err != nil {
			return err
		}
		logger = l
		req := cfg.CaptureRequest()
		logger.Get(logging.CategoryBoot).Debug("Config loaded",
			zap.String("path", configPath),
			zap.String("url", req.URL),
			zap.String("out", req.Out))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	RunE: runCapture,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file (YAML)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Timeout for each page capture (per page in batch mode)")

	addCaptureFlags(rootCmd)
	addCaptureFlags(captureCmd)
	buildcfgCmd.Flags().StringVarP(&buildFormat, "format", "f", "yaml", "Output format (yaml, json)")
	buildcfgCmd.Flags().StringVar(&buildEnv, "env", "", "Build mode to resolve instead of NODE_ENV")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(buildcfgCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newCapturer wires the rod launcher into a Capturer using the loaded config.
func newCapturer() *capture.Capturer {
	log := logger.Get(logging.CategoryBrowser)
	return capture.New(
		newLauncher(cfg.BrowserOptions(), log),
		capture.WithLogger(log),
		capture.WithConcurrency(cfg.Batch.Concurrency),
		capture.WithPageTimeout(timeout),
	)
}
