// Package main is the entry point for the btcstrategylab backtest engine.
//
// Modes:
//   - "run":     execute a single backtest over a date range and print the result
//   - "batch":   execute many backtests concurrently from a job manifest
//   - "analyze": run a strategy's exploratory run_on_data(df) entry point
//   - "serve":   exit with a pointer to cmd/dashboard, the separate binary that serves the HTTP+websocket API
//   - "migrate": apply a SQL migration file against the configured database
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/nitinkhare/btcstrategylab/internal/analytics"
	"github.com/nitinkhare/btcstrategylab/internal/backtest"
	"github.com/nitinkhare/btcstrategylab/internal/config"
	"github.com/nitinkhare/btcstrategylab/internal/guardrail"
	"github.com/nitinkhare/btcstrategylab/internal/pricetable"
	"github.com/nitinkhare/btcstrategylab/internal/risk"
	"github.com/nitinkhare/btcstrategylab/internal/sandbox"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to configuration file")
	mode := flag.String("mode", "run", "run mode: run | batch | analyze | serve | migrate")
	strategyPath := flag.String("strategy", "", "path to a strategy source file")
	startFlag := flag.String("start", "", "backtest/analysis window start date, YYYY-MM-DD")
	endFlag := flag.String("end", "", "backtest/analysis window end date, YYYY-MM-DD")
	label := flag.String("label", "run", "label recorded for this run")
	manifestPath := flag.String("manifest", "", "path to a JSON batch manifest (batch mode)")
	migrationFile := flag.String("migration", "", "path to a SQL migration file (migrate mode)")
	flag.Parse()

	logger := log.New(os.Stdout, "[engine] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	switch *mode {
	case "run":
		runSingle(logger, cfg, *strategyPath, *startFlag, *endFlag, *label)
	case "batch":
		runBatch(logger, cfg, *manifestPath)
	case "analyze":
		runAnalyze(logger, cfg, *strategyPath, *startFlag, *endFlag)
	case "serve":
		runServe(logger, *configPath)
	case "migrate":
		runMigrate(logger, cfg, *migrationFile)
	default:
		logger.Fatalf("unknown mode %q (want run | batch | analyze | serve | migrate)", *mode)
	}
}

func runSingle(logger *log.Logger, cfg *config.Config, strategyPath, startStr, endStr, label string) {
	if strategyPath == "" || startStr == "" || endStr == "" {
		logger.Fatalf("run mode requires -strategy, -start, and -end")
	}

	source, err := os.ReadFile(strategyPath)
	if err != nil {
		logger.Fatalf("failed to read strategy file: %v", err)
	}
	start, end := parseDateOrExit(logger, startStr, "-start"), parseDateOrExit(logger, endStr, "-end")

	table, err := pricetable.Load(cfg.PriceTablePath)
	if err != nil {
		logger.Fatalf("failed to load price table: %v", err)
	}

	engine := backtest.NewEngine(table).WithExposureLimiter(guardrail.NewExposureLimiter(cfg.Guardrail.ExposureLimit))
	result, runErr := engine.Run(start, end, string(source))

	notifier := guardrail.NewNotifier(cfg.Guardrail.NotifyURL, logger)
	notifier.Notify(context.Background(), guardrail.ReportFromRun(result, runErr))

	if runErr != nil {
		logger.Fatalf("run %q failed: %v", label, runErr)
	}

	logger.Printf("run %q complete", label)
	fmt.Println(analytics.FormatReport(analytics.Analyze(result)))
	printJSON(result)
}

// manifestEntry is one row of a batch manifest: a labeled strategy file
// run over its own date range.
type manifestEntry struct {
	Label    string `json:"label"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Strategy string `json:"strategy"`
}

func runBatch(logger *log.Logger, cfg *config.Config, manifestPath string) {
	if manifestPath == "" {
		logger.Fatalf("batch mode requires -manifest")
	}

	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		logger.Fatalf("failed to read manifest: %v", err)
	}
	var entries []manifestEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		logger.Fatalf("failed to parse manifest: %v", err)
	}

	table, err := pricetable.Load(cfg.PriceTablePath)
	if err != nil {
		logger.Fatalf("failed to load price table: %v", err)
	}

	jobs := make([]backtest.BatchJob, 0, len(entries))
	for _, e := range entries {
		source, err := os.ReadFile(e.Strategy)
		if err != nil {
			logger.Fatalf("failed to read strategy %s: %v", e.Strategy, err)
		}
		start, end := parseDateOrExit(logger, e.Start, "start for "+e.Label), parseDateOrExit(logger, e.End, "end for "+e.Label)
		jobs = append(jobs, backtest.BatchJob{Label: e.Label, Start: start, End: end, Source: string(source)})
	}

	breaker := risk.NewCircuitBreaker(cfg.Batch.CircuitBreaker, logger)
	limiter := guardrail.NewExposureLimiter(cfg.Guardrail.ExposureLimit)
	runner := backtest.NewBatchRunner(table, cfg.Batch.Concurrency, breaker, limiter, logger)
	outcomes := runner.Run(context.Background(), jobs)

	var summaries []analytics.RunSummary
	for _, o := range outcomes {
		if o.Err != nil {
			logger.Printf("run %q failed: %v", o.Label, o.Err)
			continue
		}
		summaries = append(summaries, analytics.Summarize(o.Label, o.Result))
	}
	fmt.Println(analytics.FormatBatchReport(analytics.CompareRuns(summaries)))
}

func runAnalyze(logger *log.Logger, cfg *config.Config, strategyPath, startStr, endStr string) {
	if strategyPath == "" {
		logger.Fatalf("analyze mode requires -strategy")
	}

	source, err := os.ReadFile(strategyPath)
	if err != nil {
		logger.Fatalf("failed to read strategy file: %v", err)
	}

	table, err := pricetable.Load(cfg.PriceTablePath)
	if err != nil {
		logger.Fatalf("failed to load price table: %v", err)
	}

	end := table.MaxDate()
	start := end.AddDate(0, 0, -pricetable.MaxAdHocRangeDays)
	if startStr != "" {
		start = parseDateOrExit(logger, startStr, "-start")
	}
	if endStr != "" {
		end = parseDateOrExit(logger, endStr, "-end")
	}

	view, err := table.RangeBounded(start, end)
	if err != nil {
		logger.Fatalf("failed to build analysis window: %v", err)
	}

	program, err := sandbox.CompileForAnalysis(string(source))
	if err != nil {
		logger.Fatalf("strategy failed to compile: %v", err)
	}
	defer program.Close()

	result, err := program.RunOnData(view)
	if err != nil {
		logger.Fatalf("run_on_data failed: %v", err)
	}

	printJSON(sandbox.ToGoValue(result))
}

func runServe(logger *log.Logger, configPath string) {
	logger.Fatalf("serve mode lives in its own binary: run `go run ./cmd/dashboard -config %s`", configPath)
}

func runMigrate(logger *log.Logger, cfg *config.Config, migrationFile string) {
	if migrationFile == "" {
		logger.Fatalf("migrate mode requires -migration")
	}
	cmd := exec.Command("go", "run", "./scripts/run_migration.go", "-db", cfg.DatabaseURL, "-file", migrationFile)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		logger.Fatalf("migration failed: %v", err)
	}
}

func parseDateOrExit(logger *log.Logger, s, flagName string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		logger.Fatalf("invalid %s (want YYYY-MM-DD): %v", flagName, err)
	}
	return d
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
