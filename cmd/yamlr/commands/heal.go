package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yamlr/yamlr/internal/config"
	"github.com/yamlr/yamlr/internal/pipeline"
)

var (
	healAuto        bool
	healDryRun      bool
	backupKeep      int
	defaultImageTag string
)

var healCmd = &cobra.Command{
	Use:   "heal [paths...]",
	Short: "Apply fixes to the given manifests in place",
	Long: `Heal runs the same diagnostic pass as scan and writes approved fixes
back atomically, keeping rotated backups next to each healed file.
Without --auto it asks before touching anything: a single file gets a
per-file prompt, a larger batch requires the typed '` + pipeline.BatchToken + `' token.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runHeal,
}

func init() {
	healCmd.Flags().BoolVar(&healAuto, "auto", false, "Apply all fixes without prompting")
	healCmd.Flags().BoolVar(&healDryRun, "dry-run", false, "Report what would be fixed without writing")
	healCmd.Flags().IntVar(&backupKeep, "backup-keep", 0, "Rotated backups to keep per file (0 uses the config value)")
	healCmd.Flags().StringVar(&defaultImageTag, "default-image-tag", "", "Tag to pin unpinned images to")
}

// buildPolicy decides how fixes are approved. Interactive is the
// default and needs a terminal; piped input must opt into --auto or
// --dry-run explicitly.
func buildPolicy(dryRun, auto bool) (pipeline.Policy, error) {
	switch {
	case dryRun:
		return pipeline.Policy{Mode: pipeline.ModeDryRun}, nil
	case auto:
		return pipeline.Policy{Mode: pipeline.ModeAuto}, nil
	case pipeline.StdinIsTerminal():
		return pipeline.Policy{
			Mode:     pipeline.ModeInteractive,
			Prompter: pipeline.NewPrompter(os.Stdin, os.Stderr),
		}, nil
	default:
		return pipeline.Policy{}, fmt.Errorf("interactive healing requires a terminal; use --auto or --dry-run")
	}
}

func healConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("backup-keep") {
		cfg.BackupKeep = backupKeep
	}
	if cmd.Flags().Changed("default-image-tag") {
		cfg.DefaultImageTag = defaultImageTag
	}
	return cfg, nil
}

func runHeal(cmd *cobra.Command, args []string) {
	HandleError(rejectStdinMarker(args), "invalid arguments")

	cfg, err := healConfig(cmd)
	HandleError(err, "loading config")

	policy, err := buildPolicy(healDryRun, healAuto)
	HandleError(err, "refusing to heal")

	renderer, err := newRenderer()
	HandleError(err, "invalid format")

	provider, err := newTracing(cfg)
	HandleError(err, "initializing tracing")

	p, err := pipeline.New(cfg, policy)
	HandleError(err, "initializing pipeline")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := p.Run(ctx, args)
	HandleError(err, "heal failed")
	HandleError(renderer.Render(result), "rendering report")
	HandleError(provider.Shutdown(ctx), "shutting down tracing")

	os.Exit(result.ExitCode())
}
