package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"txengine/internal/config"
	"txengine/internal/engine"
	"txengine/internal/report"
	"txengine/internal/service"
	"txengine/pkg/logger"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run processes one transactions file and writes the final balances to
// stdout. Diagnostics go to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("txengine", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "optional YAML config file")
	flags.Int("workers", 1, "number of processing shards; clients are partitioned across them")
	flags.String("format", report.FormatCSV, "output format: csv or table")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-env", logger.EnvironmentProduction, "log profile: production, development or local")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: txengine [flags] <transactions.csv>")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return exitUsage
	}

	cfg, err := config.LoadConfig(*configPath, flags)
	if err != nil {
		fmt.Fprintf(stderr, "txengine: %v\n", err)
		return exitError
	}
	if err := report.CheckFormat(cfg.Output.Format); err != nil {
		fmt.Fprintf(stderr, "txengine: %v\n", err)
		return exitUsage
	}

	log, err := logger.New(logger.Config{Environment: cfg.Log.Environment, Level: cfg.Log.Level})
	if err != nil {
		fmt.Fprintf(stderr, "txengine: %v\n", err)
		return exitError
	}
	defer func() { _ = log.Sync() }()

	path := flags.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		log.Error("open input", zap.String("path", path), zap.Error(err))
		return exitError
	}
	defer f.Close()

	eng := engine.New()
	ledger := service.NewLedgerService(eng, log)
	importer := service.NewImportService(eng, ledger, cfg.Engine.Workers, log)

	if _, err := importer.Import(ctx, bufio.NewReader(f)); err != nil {
		log.Error("import failed", zap.String("path", path), zap.Error(err))
		return exitError
	}

	out := bufio.NewWriter(stdout)
	if err := report.Write(out, cfg.Output.Format, eng.Accounts()); err != nil {
		log.Error("write report", zap.Error(err))
		return exitError
	}
	if err := out.Flush(); err != nil {
		log.Error("write report", zap.Error(err))
		return exitError
	}
	return exitOK
}
