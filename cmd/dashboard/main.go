package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"dropout-risk/internal/cfg"
	"dropout-risk/internal/dashboard"
	"dropout-risk/internal/metrics"
	"dropout-risk/internal/ml"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	modelPath := flag.String("model", "", "Model artifact to load, overrides MODEL_PATH")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if *modelPath != "" {
		c.ModelPath = *modelPath
	}
	if level, err := zerolog.ParseLevel(c.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	scheme, err := ml.ParseRiskScheme(c.RiskScheme)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid risk scheme")
	}

	mw := metrics.NewWrapper(metrics.New())
	predictor := ml.NewPredictor(ml.PredictorConfig{ModelPath: c.ModelPath, RiskScheme: scheme}, mw)

	dash := dashboard.NewDashboard(predictor, mw.DashboardClients(), c.DashboardPort)
	if err := dash.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start dashboard")
	}
	log.Info().Int("port", c.DashboardPort).Msg("dashboard running")

	waitForShutdown(dash)

	if err := dash.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop dashboard")
	}
}

// waitForShutdown blocks until SIGINT/SIGTERM. SIGHUP reloads the model
// artifact so a freshly trained model is served without a restart.
func waitForShutdown(dash *dashboard.Dashboard) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			if err := dash.Reload(); err != nil {
				log.Error().Err(err).Msg("model reload failed, keeping current model")
			}
			continue
		}
		log.Info().Msg("shutdown signal received")
		return
	}
}
