package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/August26/proxychk/internal/analytics"
	"github.com/August26/proxychk/internal/config"
	"github.com/August26/proxychk/internal/logging"
	"github.com/August26/proxychk/internal/output"
	"github.com/August26/proxychk/internal/parser"
	"github.com/August26/proxychk/internal/service"
)

// errNoInputs is returned when neither arguments nor --list give endpoints.
var errNoInputs = errors.New("no proxies given: pass endpoints as arguments or use --list")

// defaultRequester names the caller in reports when --requester is unset.
const defaultRequester = "cli"

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [endpoint...]",
		Short: "Check proxy endpoints",
		Long: `Check probes each endpoint and reports the protocols it serves.

Endpoints are host:port or host:port:username:password.

Examples:
  # Check a single proxy
  proxychk check 203.0.113.5:3128

  # Check a list, one endpoint per line, and write JSON
  proxychk check --list proxies.txt --output results.json

  # Skip the validation service and probe directly
  proxychk check --api-url "" 203.0.113.5:1080:bob:secret`,
		Args: cobra.ArbitraryArgs,
		RunE: runCheckCmd,
	}

	cmd.Flags().StringP("list", "l", "",
		"File with one endpoint per line ('#' starts a comment)")
	cmd.Flags().StringP("requester", "r", defaultRequester,
		"Name shown as the requester in reports")
	cmd.Flags().StringP("format", "f", config.DefaultFormat,
		"Output format: "+strings.Join(config.Formats, ", "))
	cmd.Flags().StringP("output", "o", "",
		"Write results to file (format from --format, or the file extension)")

	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum simultaneous network operations")
	cmd.Flags().IntP("batch-size", "b", config.DefaultBatchSize,
		"Endpoints checked together in one sub-batch")
	cmd.Flags().DurationP("timeout", "t", config.DefaultRequestTimeout,
		"Per-request timeout; race, batch and service budgets derive from it")
	cmd.Flags().Duration("socket-timeout", config.DefaultSocketTimeout,
		"Timeout of each TCP connect attempt")

	cmd.Flags().String("api-url", config.DefaultValidationURL,
		"Validation service URL (empty disables the service)")
	cmd.Flags().String("api-key", "",
		"Validation service API key")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: config.yaml in "+config.XDGConfigDir()+" or the current directory)")

	return cmd
}

func runCheckCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	inputs, err := collectInputs(cmd, args)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	requester, _ := cmd.Flags().GetString("requester")
	outputPath, _ := cmd.Flags().GetString("output")

	return runCheck(ctx, cfg, logger, checkRun{
		inputs:     inputs,
		requester:  requester,
		outputPath: outputPath,
		out:        cmd.OutOrStdout(),
	})
}

// checkRun is one invocation of the check command.
type checkRun struct {
	inputs     []string
	requester  string
	outputPath string
	out        io.Writer
}

func runCheck(ctx context.Context, cfg *config.Config, logger *slog.Logger, run checkRun, opts ...service.Option) error {
	svc := service.New(cfg, logger, opts...)
	if err := svc.Init(); err != nil {
		return fmt.Errorf("init service: %w", err)
	}
	if err := svc.Start(); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() { _ = svc.Stop() }()

	logger.Info("starting proxychk",
		"proxies", len(run.inputs),
		"concurrency", cfg.Concurrency,
		"batch_size", cfg.BatchSize,
		"timeout", cfg.RequestTimeout,
	)

	start := time.Now()
	entries, err := svc.CheckBatch(ctx, run.requester, run.inputs)
	if err != nil {
		return err
	}
	stats := analytics.Compute(entries, time.Since(start))

	logger.Info("batch finished",
		"total_ms", stats.TotalProcessingTimeMs,
		"alive", stats.AliveProxies,
		"total", stats.TotalProxies,
	)
	st := svc.Status()
	logger.Debug("service status",
		"total_checks", st.Stats.TotalChecks,
		"successful_checks", st.Stats.SuccessfulChecks,
		"in_flight", st.InFlight,
	)

	if run.outputPath == "" {
		return output.Write(run.out, cfg.Format, entries, stats)
	}

	format := fileFormat(run.outputPath, cfg.Format)
	if err := output.WriteFile(run.outputPath, format, entries, stats); err != nil {
		return fmt.Errorf("write %s: %w", run.outputPath, err)
	}
	logger.Info("results written", "path", run.outputPath, "format", format)

	output.PrintResultsTable(run.out, entries)
	output.PrintSummary(run.out, stats)
	return nil
}

// buildConfig loads the configuration file and environment, then applies
// the flags the user set explicitly.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Format, _ = flags.GetString("format")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("socket-timeout") {
		cfg.SocketTimeout, _ = flags.GetDuration("socket-timeout")
	}
	if flags.Changed("api-url") {
		cfg.Validation.URL, _ = flags.GetString("api-url")
	}
	if flags.Changed("api-key") {
		cfg.Validation.Key, _ = flags.GetString("api-key")
	}
	if getVerboseFlag(cmd) {
		cfg.Verbose = true
	}
	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// collectInputs joins the arguments and the --list file, in that order.
func collectInputs(cmd *cobra.Command, args []string) ([]string, error) {
	inputs := append([]string(nil), args...)

	list, _ := cmd.Flags().GetString("list")
	if list != "" {
		lines, err := parser.LoadFromFile(list)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, lines...)
	}

	if len(inputs) == 0 {
		return nil, errNoInputs
	}
	return inputs, nil
}

// fileFormat picks the file format. Terminal formats give way to the one
// named by the extension, defaulting to JSON.
func fileFormat(path, format string) string {
	if format != "text" && format != "table" {
		return format
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv"
	case ".yaml", ".yml":
		return "yaml"
	case ".md", ".markdown":
		return "markdown"
	case ".txt":
		return "text"
	default:
		return "json"
	}
}
