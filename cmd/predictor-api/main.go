package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dropout-risk/internal/cfg"
	"dropout-risk/internal/metrics"
	"dropout-risk/internal/ml"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	modelPath := flag.String("model", "", "Model artifact to serve, overrides MODEL_PATH")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if *modelPath != "" {
		c.ModelPath = *modelPath
	}
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	scheme, err := ml.ParseRiskScheme(c.RiskScheme)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid risk scheme")
	}

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	// A missing artifact is not fatal: the API answers 503 until a reload succeeds.
	predictor := ml.NewPredictor(ml.PredictorConfig{ModelPath: c.ModelPath, RiskScheme: scheme}, mw)
	server := ml.NewModelServer(predictor, c.APIPort, m.Handler())

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	waitForShutdown(predictor, errCh)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown model server")
	}
	log.Info().Msg("model server stopped")
}

// waitForShutdown blocks until SIGINT/SIGTERM or a server failure. SIGHUP
// reloads the model artifact in place.
func waitForShutdown(predictor *ml.Predictor, errCh <-chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				if err := predictor.Reload(); err != nil {
					log.Error().Err(err).Msg("model reload failed, keeping current model")
				}
				continue
			}
			log.Info().Msg("shutdown signal received")
			return
		case err := <-errCh:
			log.Error().Err(err).Msg("model server failed")
			return
		}
	}
}
