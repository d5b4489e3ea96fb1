package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dropout-risk/internal/cfg"
	"dropout-risk/internal/gbdt"
	"dropout-risk/internal/metrics"
	"dropout-risk/internal/storage"
	"dropout-risk/internal/train"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dataPath   = flag.String("data", "", "Path to the student table (.csv or .xlsx), overrides DATA_PATH")
		modelPath  = flag.String("model", "", "Where to write the model artifact, overrides MODEL_PATH")
		ledgerPath = flag.String("ledger", "", "Directory of the training-run ledger, overrides LEDGER_PATH")
		metricsOut = flag.String("metrics-out", "", "Write training metrics to this Prometheus textfile")
		history    = flag.Int("history", 0, "Print the last N recorded training runs and exit")
		logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *dataPath != "" {
		config.DataPath = *dataPath
	}
	if *modelPath != "" {
		config.ModelPath = *modelPath
	}
	if *ledgerPath != "" {
		config.LedgerPath = *ledgerPath
	}
	if *logLevel != "" {
		config.LogLevel = *logLevel
	}
	setLogLevel(config.LogLevel)

	store := openLedger(config.LedgerPath)
	if store != nil {
		defer store.Close()
	}

	if *history > 0 {
		if store == nil {
			log.Fatal().Msg("No ledger configured, set LEDGER_PATH or -ledger")
		}
		printHistory(store, *history)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	trainer := train.NewTrainer(train.Config{
		ArtifactPath: config.ModelPath,
		LabelColumn:  config.LabelColumn,
		TestRatio:    config.TestRatio,
		Seed:         config.Seed,
		Params:       trainParams(config),
	}, ledger(store), metrics.NewWrapper(m))

	log.Info().Str("data", config.DataPath).Str("model", config.ModelPath).Msg("Starting training")
	res, err := trainer.Run(ctx, config.DataPath)
	writeMetrics(m, *metricsOut)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Fatal().Msg("Training interrupted, no model written")
		}
		log.Fatal().Err(err).Msg("Training failed")
	}

	printResult(res)
}

func setLogLevel(name string) {
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func trainParams(c cfg.Settings) gbdt.Params {
	params := train.DefaultParams()
	params.NEstimators = c.NEstimators
	params.LearningRate = c.LearningRate
	params.MaxDepth = c.MaxDepth
	params.NumLeaves = c.NumLeaves
	params.MinChildSamples = c.MinChildSamples
	params.Seed = c.Seed
	return params
}

// openLedger opens the run ledger if LEDGER_PATH is configured
func openLedger(path string) *storage.Store {
	if path == "" {
		return nil
	}
	store, err := storage.New(path)
	if err != nil {
		log.Warn().Err(err).Msg("Ledger initialization failed, continuing without run history")
		return nil
	}
	return store
}

// ledger avoids handing the trainer a typed nil.
func ledger(store *storage.Store) train.RunLedger {
	if store == nil {
		return nil
	}
	return store
}

func writeMetrics(m *metrics.Metrics, path string) {
	if path == "" {
		return
	}
	if err := m.WriteToTextfile(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to write metrics textfile")
	}
}

func printResult(res *train.Result) {
	fmt.Println("=== Training Results ===")
	fmt.Printf("Model: %s (version %s)\n", res.ArtifactPath, res.Artifact.Metadata.Version)
	fmt.Printf("Train rows: %d, test rows: %d\n", res.Artifact.Metadata.TrainingRows, res.Artifact.Metadata.TestRows)
	fmt.Printf("Accuracy: %.4f\n", res.Evaluation.Accuracy)
	fmt.Printf("ROC-AUC: %.4f\n", res.Evaluation.ROCAUC)
	fmt.Println()
	fmt.Println("Classification report:")
	fmt.Print(res.Report)
	fmt.Println()
	fmt.Println("Feature importance (split gain):")
	for _, imp := range res.Importance {
		fmt.Printf("  %-46s %12.4f\n", imp.Feature, imp.Gain)
	}
	if res.RunID != "" {
		fmt.Printf("\nRun recorded as %s\n", res.RunID)
	}
}

func printHistory(store *storage.Store, n int) {
	runs, err := store.GetRuns(train.ModelName, time.Time{}, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read training runs")
	}
	if len(runs) > n {
		runs = runs[len(runs)-n:]
	}
	if len(runs) == 0 {
		fmt.Println("No training runs recorded")
		return
	}

	fmt.Printf("%-20s %-9s %-9s %8s %8s  %s\n", "finished", "accuracy", "roc_auc", "rows", "took", "artifact")
	for _, run := range runs {
		fmt.Printf("%-20s %-9.4f %-9.4f %8d %8s  %s\n",
			run.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			run.Accuracy, run.ROCAUC,
			run.TrainingRows+run.TestRows,
			run.Duration().Round(time.Millisecond),
			run.ArtifactPath)
	}
}
