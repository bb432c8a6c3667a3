package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yamlr/yamlr/internal/models"
	"github.com/yamlr/yamlr/internal/pipeline"
)

var dumpMetrics bool

var scanCmd = &cobra.Command{
	Use:   "scan [paths...]",
	Short: "Report diagnostics without modifying any file",
	Long: `Scan crawls the given files and directories, runs the full diagnostic
pass and prints the findings. Nothing is ever written back; use heal
to apply fixes. A single "-" reads one YAML stream from standard
input instead of crawling paths.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&dumpMetrics, "dump-metrics", false,
		"Print run instrumentation to stderr after the scan")
}

func hasStdinMarker(args []string) bool {
	for _, a := range args {
		if a == "-" {
			return true
		}
	}
	return false
}

// rejectStdinMarker guards the commands that write files or watch
// directories; only scan reads the "-" stream.
func rejectStdinMarker(args []string) error {
	if hasStdinMarker(args) {
		return fmt.Errorf("reading from stdin is only supported by scan")
	}
	return nil
}

func runScan(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	HandleError(err, "loading config")

	renderer, err := newRenderer()
	HandleError(err, "invalid format")

	provider, err := newTracing(cfg)
	HandleError(err, "initializing tracing")

	p, err := pipeline.New(cfg, pipeline.Policy{Mode: pipeline.ModeDryRun})
	HandleError(err, "initializing pipeline")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var result *models.ScanResult
	switch {
	case len(args) == 1 && args[0] == "-":
		result, err = p.RunStream(ctx, pipeline.StdinPath, os.Stdin)
	case hasStdinMarker(args):
		err = fmt.Errorf("the - stream marker cannot be combined with paths")
	default:
		result, err = p.Run(ctx, args)
	}
	HandleError(err, "scan failed")
	HandleError(renderer.Render(result), "rendering report")

	if dumpMetrics {
		HandleError(p.Metrics().Dump(os.Stderr), "dumping metrics")
	}
	HandleError(provider.Shutdown(ctx), "shutting down tracing")

	os.Exit(result.ExitCode())
}
