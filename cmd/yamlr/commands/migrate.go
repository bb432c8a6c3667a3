package commands

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yamlr/yamlr/internal/pipeline"
)

var (
	migrateAuto   bool
	migrateDryRun bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [paths...]",
	Short: "Rewrite manifests off deprecated and removed API versions",
	Long: `Migrate finds documents on retired API versions and rewrites them to
their supported successors. Every rewrite re-validates against the
schema catalog before it is accepted; a rewrite that would not
validate is rejected and the original stays untouched. Other fixes
are reported but never applied by this command.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateAuto, "auto", false, "Apply all migrations without prompting")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Report available migrations without writing")
}

func runMigrate(cmd *cobra.Command, args []string) {
	HandleError(rejectStdinMarker(args), "invalid arguments")

	cfg, err := loadConfig(cmd)
	HandleError(err, "loading config")

	policy, err := buildPolicy(migrateDryRun, migrateAuto)
	HandleError(err, "refusing to migrate")

	renderer, err := newRenderer()
	HandleError(err, "invalid format")

	provider, err := newTracing(cfg)
	HandleError(err, "initializing tracing")

	p, err := pipeline.New(cfg, policy)
	HandleError(err, "initializing pipeline")
	p.SetFixScope(func(ruleID string) bool {
		return strings.HasPrefix(ruleID, "migrate/")
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := p.Run(ctx, args)
	HandleError(err, "migrate failed")
	HandleError(renderer.Render(result), "rendering report")
	HandleError(provider.Shutdown(ctx), "shutting down tracing")

	os.Exit(result.ExitCode())
}
