package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"smartdoc/internal/api"
	"smartdoc/internal/artifact"
	"smartdoc/internal/config"
	"smartdoc/internal/docapi"
	fileutil "smartdoc/internal/file"
	"smartdoc/internal/flow"
	"smartdoc/internal/history"
	"smartdoc/internal/ui"
	"smartdoc/internal/upload"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load("config.yml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := fileutil.EnsureDir(cfg.DataDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("ensure data dir")
	}

	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.HistoryDB).Msg("open history store")
	}
	defer func() { _ = store.Close() }()

	client := docapi.New(cfg.APIBaseURL, cfg.RequestTimeout())
	shell := flow.New(client, client, cfg.PollInterval(), cfg.CompletionGrace())

	controller := upload.NewController(client, upload.Options{
		AllowedExtensions: cfg.AllowedExtensions,
		MaxBytes:          cfg.MaxUploadBytes,
		AllowMultiple:     cfg.AllowMultiple,
		OnCompleted: func(item upload.Item) {
			if err := shell.FileUploaded(item); err != nil {
				// later completions in a multi-file batch land after the
				// shell already advanced; they stay visible in the item list
				log.Debug().Str("file", item.Name).Err(err).Msg("completion not advancing flow")
			}
		},
	})

	cache := artifact.NewCache(cfg.DataDir, client)

	router := setupRouter()
	apiHandler := api.NewAPI(shell, controller, cache, store)
	apiHandler.RegisterRoutes(router)
	uiHandler := ui.NewUI(shell, controller, store, apiHandler, cfg)
	uiHandler.RegisterRoutes(router)

	const (
		readHeaderTimeout = 5 * time.Second
		shutdownTimeout   = 10 * time.Second
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Str("backend", cfg.APIBaseURL).Msg("smartdoc listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdownSignal()
	gracefulShutdown(srv, shell, controller, shutdownTimeout)
}

func setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(api.RequestLogger())
	return r
}

func waitForShutdownSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
}

func gracefulShutdown(srv *http.Server, shell *flow.Shell, controller *upload.Controller, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}

	shell.Close()
	if !controller.Wait(ctx) {
		log.Warn().Msg("in-flight uploads did not finish before timeout")
	}
	log.Info().Msg("server exited cleanly")
}
