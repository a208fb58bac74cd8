package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pageshot/internal/capture"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Capture every page listed under batch.targets in the config file",
	Long: `Captures all configured targets on one browser, batch.concurrency pages
at a time. --timeout applies to each page. The first failure stops the
batch, removes the screenshots it already wrote and exits non-zero.`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

var (
	summaryHeader = lipgloss.NewStyle().Bold(true).Underline(true)
	summaryPath   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	summaryDim    = lipgloss.NewStyle().Faint(true)
)

func runBatch(cmd *cobra.Command, args []string) error {
	reqs := cfg.BatchRequests()
	if len(reqs) == 0 {
		return errors.New("no batch.targets configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := newCapturer().CaptureAll(ctx, reqs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, res := range results {
		fmt.Fprintf(out, "Saved screenshot to %s\n", res.Out)
	}
	fmt.Fprintln(out, renderSummary(results))
	return nil
}

// renderSummary lays out one row per capture.
func renderSummary(results []capture.Result) string {
	urlWidth := len("URL")
	for _, r := range results {
		urlWidth = max(urlWidth, len(r.URL))
	}

	rows := make([]string, 0, len(results)+1)
	rows = append(rows, summaryHeader.Render(fmt.Sprintf("%-*s  %10s  %8s  %s", urlWidth, "URL", "BYTES", "TIME", "OUT")))
	for _, r := range results {
		row := strings.Join([]string{
			fmt.Sprintf("%-*s", urlWidth, r.URL),
			fmt.Sprintf("%10d", r.Size),
			summaryDim.Render(fmt.Sprintf("%8s", r.Elapsed.Round(time.Millisecond))),
			summaryPath.Render(r.Out),
		}, "  ")
		rows = append(rows, row)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
