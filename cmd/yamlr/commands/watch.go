package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yamlr/yamlr/internal/models"
	"github.com/yamlr/yamlr/internal/pipeline"
	"github.com/yamlr/yamlr/internal/watch"
)

var debounceMillis int

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Re-scan manifests whenever they change",
	Long: `Watch runs an initial scan and then re-scans changed files on every
save, debounced to absorb editor save storms. Files whose content is
unchanged since their last clean scan are skipped. Watch never writes;
it is scan on a loop.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&debounceMillis, "debounce", 500,
		"Milliseconds to coalesce change events before re-scanning")
}

func runWatch(cmd *cobra.Command, args []string) {
	HandleError(rejectStdinMarker(args), "invalid arguments")

	cfg, err := loadConfig(cmd)
	HandleError(err, "loading config")

	renderer, err := newRenderer()
	HandleError(err, "invalid format")

	p, err := pipeline.New(cfg, pipeline.Policy{Mode: pipeline.ModeDryRun})
	HandleError(err, "initializing pipeline")

	w, err := watch.New(watch.Config{
		Paths:          args,
		DebounceMillis: debounceMillis,
	}, p, func(result *models.ScanResult) {
		if err := renderer.Render(result); err != nil {
			HandleError(err, "rendering report")
		}
	})
	HandleError(err, "initializing watcher")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		HandleError(err, "watch failed")
	}
	os.Exit(0)
}
