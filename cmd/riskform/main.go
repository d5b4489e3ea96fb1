package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dropout-risk/internal/apiclient"
	"dropout-risk/internal/cfg"
	"dropout-risk/internal/form"
	"dropout-risk/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if level, err := zerolog.ParseLevel(c.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	client := apiclient.New(c.APIURL, c.RequestTimeout)
	checkAPI(client, c.APIURL)

	mw := metrics.NewWrapper(metrics.New())
	server := form.NewServer(client, c.FormPort, c.RequestTimeout, mw.FormSubmissions(), mw.FormLatency(), mw.Errors())

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("form server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown form server")
	}
}

// checkAPI only warns: the form stays up and reports per request while the
// prediction API is down or has no model.
func checkAPI(client *apiclient.Client, url string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		log.Warn().Err(err).Str("api_url", url).Msg("prediction API not ready")
		return
	}
	log.Info().Str("api_url", url).Str("model_version", health.ModelVersion).Msg("prediction API ready")
}
