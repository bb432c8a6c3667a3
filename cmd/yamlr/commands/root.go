package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yamlr/yamlr/internal/config"
	"github.com/yamlr/yamlr/internal/logging"
	"github.com/yamlr/yamlr/internal/report"
	"github.com/yamlr/yamlr/internal/tracing"
)

const Version = "0.1.0"

var (
	configPath    string
	logLevelFlags []string // Supports multiple --log-level flags
	outputFormat  string

	// Overrides layered over the config file.
	threshold     float64
	workers       int
	targetVersion string
	ignoreGlobs   []string

	tracingEnabled     bool
	tracingEndpoint    string
	tracingTLSCAPath   string
	tracingTLSInsecure bool
)

var rootCmd = &cobra.Command{
	Use:   "yamlr",
	Short: "yamlr - diagnose and heal Kubernetes YAML manifests",
	Long: `yamlr scans Kubernetes YAML manifests for structural damage, schema
violations, deprecated API versions and broken cross-resource wiring,
and can heal what it finds in place with rotated backups.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLog(logLevelFlags)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "",
		"Path to a config file (default: ./"+config.FileName+" when present)")
	pf.StringSliceVar(&logLevelFlags, "log-level", []string{"info"},
		"Log level for packages. Use a bare level for the default, or 'package=level' per package.\n"+
			"Examples: --log-level debug (all), --log-level pipeline=debug --log-level watch=warn")
	pf.StringVar(&outputFormat, "format", "auto", "Output format: auto, json or human")
	pf.Float64Var(&threshold, "threshold", 0, "Minimum heuristic confidence for automatic repairs (0..1)")
	pf.IntVar(&workers, "workers", 0, "Number of files processed concurrently")
	pf.StringVar(&targetVersion, "target-version", "", "Kubernetes version deprecations are judged against")
	pf.StringSliceVar(&ignoreGlobs, "ignore", nil, "Glob patterns excluded from the crawl")

	pf.BoolVar(&tracingEnabled, "tracing-enabled", false, "Enable OpenTelemetry tracing")
	pf.StringVar(&tracingEndpoint, "tracing-endpoint", "", "OTLP gRPC endpoint for trace export")
	pf.StringVar(&tracingTLSCAPath, "tracing-tls-ca", "", "CA certificate for the tracing endpoint")
	pf.BoolVar(&tracingTLSInsecure, "tracing-tls-insecure", false, "Skip TLS verification for the tracing endpoint")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(healCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(watchCmd)
}

// HandleError prints error and exits
func HandleError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}

// setupLog initializes the logging system with parsed log level flags.
// A bare level sets the default; 'package=level' entries override it
// per package.
func setupLog(flags []string) error {
	defaultLevel := "info"
	packageLevels := make(map[string]string)
	for _, flag := range flags {
		if !strings.Contains(flag, "=") {
			defaultLevel = flag
			continue
		}
		parts := strings.SplitN(flag, "=", 2)
		packageLevels[parts[0]] = parts[1]
	}
	return logging.Initialize(defaultLevel, packageLevels)
}

// loadConfig resolves the effective configuration: explicitly changed
// flags win over the config file, which wins over defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("threshold") {
		cfg.Threshold = threshold
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("target-version") {
		cfg.TargetVersion = targetVersion
	}
	if flags.Changed("ignore") {
		cfg.IgnoreFiles = append(cfg.IgnoreFiles, ignoreGlobs...)
	}
	if flags.Changed("tracing-enabled") {
		cfg.TracingEnabled = tracingEnabled
	}
	if flags.Changed("tracing-endpoint") {
		cfg.TracingEndpoint = tracingEndpoint
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRenderer() (*report.Renderer, error) {
	format, err := report.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return report.NewRenderer(os.Stdout, format), nil
}

func newTracing(cfg *config.Config) (*tracing.Provider, error) {
	return tracing.NewProvider(tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.TracingEndpoint,
		TLSCAPath:   tracingTLSCAPath,
		TLSInsecure: tracingTLSInsecure,
	})
}
