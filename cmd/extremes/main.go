// Extremes fetches daily candles for a trading pair from Binance, derives
// rolling trailing and forward high/low extremes, and writes the result to a
// spreadsheet.
//
// Usage:
//
//	extremes
//	extremes --pair BTC/USDT --start 2024-01-01
//	extremes --pair ETHUSDT --start 2023-06-01 --lookback 14 --lookforward 7 --format csv
//
// Without --pair and --start the missing values are read interactively.
package main

import (
	"bufio"
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

	"github.com/johnayoung/go-ohlcv-extremes/internal/config"
	apperrors "github.com/johnayoung/go-ohlcv-extremes/internal/errors"
	"github.com/johnayoung/go-ohlcv-extremes/internal/exchange"
	"github.com/johnayoung/go-ohlcv-extremes/internal/export"
	"github.com/johnayoung/go-ohlcv-extremes/internal/extremes"
	"github.com/johnayoung/go-ohlcv-extremes/internal/logger"
	"github.com/johnayoung/go-ohlcv-extremes/internal/metrics"
	"github.com/johnayoung/go-ohlcv-extremes/internal/pipeline"
	"github.com/johnayoung/go-ohlcv-extremes/internal/validator"
)

// CLI version information
const (
	Version = "1.0.0"
	AppName = "extremes"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0
	ExitUsageError  = 1
	ExitConfigError = 2
	ExitFetchError  = 3
	ExitExportError = 4
	ExitInterrupt   = 130
)

const (
	pairPrompt  = "Enter the crypto pair (e.g., BTC/USD as BTCUSDT): "
	startPrompt = "Enter the start date (YYYY-MM-DD): "
	dateLayout  = "2006-01-02"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags, err := parseFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		printUsage(stderr)
		return ExitUsageError
	}
	if flags.Help {
		printUsage(stdout)
		return ExitSuccess
	}
	if flags.Version {
		fmt.Fprintf(stdout, "%s version %s\n", AppName, Version)
		return ExitSuccess
	}

	bootstrap := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg, err := config.NewConfigManager(flags.Config, bootstrap).LoadConfig(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to load configuration: %v\n", err)
		return ExitConfigError
	}

	lm, err := setupLogging(cfg.Logging, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to setup logging: %v\n", err)
		return ExitConfigError
	}
	defer lm.Close()
	slog.SetDefault(lm.GetLogger())

	ctx = logger.NewRunContext(ctx)
	cliLog := lm.GetComponentLogger("cli")
	cliLog.Debug("configuration", "config", cfg.String())

	req, err := buildRequest(flags, cfg, bufio.NewReader(stdin), stdout)
	if err != nil {
		return fail(ctx, cliLog, stderr, err)
	}
	ctx = logger.WithPair(ctx, req.Pair)

	exporter, err := export.New(req.format, lm.GetComponentLogger("export").Logger)
	if err != nil {
		return fail(ctx, cliLog, stderr, err)
	}

	adapter := exchange.NewBinanceAdapterFromConfig(cfg.Exchange, lm.GetComponentLogger("exchange").Logger)
	if cfg.Exchange.Ping {
		err := logger.TimedOperation(cliLog.Logger, "exchange_ping", func() error {
			return adapter.HealthCheck(ctx)
		})
		if err != nil {
			return fail(ctx, cliLog, stderr, err)
		}
	}

	collector := metrics.NewCollector()
	runner := pipeline.NewRunner(
		adapter,
		validator.NewSequenceValidator(lm.GetComponentLogger("validator").Logger),
		exporter,
		lm.GetComponentLogger("pipeline"),
		pipeline.WithMetrics(collector),
		pipeline.WithStageHook(func(s pipeline.Stage) {
			for _, msg := range stageMessages(s, exporter.Format(), req.Output) {
				fmt.Fprintln(stdout, msg)
			}
		}),
	)

	result, err := runner.Run(ctx, req.Request)
	if err != nil {
		return fail(ctx, cliLog, stderr, err)
	}

	cliLog.InfoWithContext(ctx, "run finished",
		slog.String("symbol", result.Symbol),
		slog.Int("rows", result.Rows),
		slog.String("path", result.Path))
	cliLog.InfoWithContext(ctx, "run metrics", collector.GetSnapshot().LogAttrs()...)

	return ExitSuccess
}

type runRequest struct {
	pipeline.Request
	format string
}

// buildRequest merges flags, configuration and interactive answers into a
// pipeline request.
func buildRequest(flags *Flags, cfg *config.AppConfig, in *bufio.Reader, out io.Writer) (*runRequest, error) {
	pair := strings.TrimSpace(flags.Pair)
	if pair == "" {
		answer, err := prompt(in, out, pairPrompt)
		if err != nil {
			return nil, err
		}
		pair = answer
	}
	if pair == "" {
		return nil, apperrors.InvalidInputf("read_pair", "trading pair is required")
	}

	rawStart := strings.TrimSpace(flags.Start)
	if rawStart == "" {
		answer, err := prompt(in, out, startPrompt)
		if err != nil {
			return nil, err
		}
		rawStart = answer
	}
	start, err := parseStartDate(rawStart)
	if err != nil {
		return nil, err
	}

	windows := extremes.Windows{
		LookBack:    cfg.Analysis.LookBackDays,
		LookForward: cfg.Analysis.LookForwardDays,
	}
	if flags.LookBack != 0 {
		windows.LookBack = flags.LookBack
	}
	if flags.LookForward != 0 {
		windows.LookForward = flags.LookForward
	}

	format := cfg.Export.Format
	if flags.Format != "" {
		format = strings.ToLower(flags.Format)
	}

	output := flags.Output
	if output == "" {
		output = filepath.Join(cfg.Export.Dir, export.OutputFilename(pair, format))
	}

	return &runRequest{
		Request: pipeline.Request{
			Pair:    pair,
			Start:   start,
			Windows: windows,
			Output:  output,
		},
		format: format,
	}, nil
}

// prompt writes label and reads one trimmed line. A final line without a
// newline is accepted.
func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)

	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", apperrors.InvalidInputf("read_input", "no input for %q", strings.TrimSpace(label))
		}
		return "", apperrors.NewInvalidInputError("read_input", err)
	}
	return strings.TrimSpace(line), nil
}

func parseStartDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, apperrors.InvalidInputf("parse_start_date", "invalid date %q", s)
	}
	return t, nil
}

func setupLogging(cfg config.LoggingConfig, stdout, stderr io.Writer) (*logger.LoggerManager, error) {
	switch cfg.Output {
	case "file":
		return logger.NewLoggerManager(cfg)
	case "stdout":
		return logger.NewLoggerManagerWithWriter(cfg, stdout), nil
	default:
		return logger.NewLoggerManagerWithWriter(cfg, stderr), nil
	}
}

// stageMessages returns the progress lines printed after stage s.
func stageMessages(s pipeline.Stage, format, path string) []string {
	switch s {
	case pipeline.StageFetch:
		return []string{"Data retrieved successfully!"}
	case pipeline.StageCalculate:
		return []string{"Metrics calculated successfully!"}
	case pipeline.StageExport:
		done := "Data exported to Excel successfully!"
		if format == export.FormatCSV {
			done = "Data exported to CSV successfully!"
		}
		return []string{fmt.Sprintf("Data exported to %s successfully.", path), done}
	default:
		return nil
	}
}

// fail logs err, reports it on stderr and maps it to an exit code.
func fail(ctx context.Context, log *logger.ComponentLogger, stderr io.Writer, err error) int {
	code := exitCode(err)
	if code == ExitInterrupt {
		log.WarnWithContext(ctx, "run interrupted")
		fmt.Fprintln(stderr, "Interrupted")
		return code
	}

	log.ErrorWithContext(ctx, "run failed", err, slog.Int("exit_code", code))
	if exchange.IsSymbolNotFound(err) {
		fmt.Fprintf(stderr, "Error: unknown trading pair %q\n", logger.GetPair(ctx))
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return code
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, context.Canceled) || apperrors.ReasonOf(err) == apperrors.ReasonCanceled {
		return ExitInterrupt
	}

	switch apperrors.KindOf(err) {
	case apperrors.KindInvalidInput:
		return ExitUsageError
	case apperrors.KindConfiguration:
		return ExitConfigError
	case apperrors.KindFetch:
		return ExitFetchError
	case apperrors.KindExport:
		return ExitExportError
	default:
		return ExitUsageError
	}
}
