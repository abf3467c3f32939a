package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"nutriguide"
	"nutriguide/reconciler"
	"nutriguide/server"
	"nutriguide/setup"
	"nutriguide/slack"
)

func main() {
	// load .env if present
	if err := godotenv.Load(); err != nil {
		slog.Info("SETUP: No .env file found; using system environment")
	}

	var resolverConfig nutriguide.ResolverConfig
	if err := envdecode.Decode(&resolverConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var modelConfig nutriguide.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var storeConfig nutriguide.StoreConfig
	if err := envdecode.Decode(&storeConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var serverConfig nutriguide.ServerConfig
	if err := envdecode.Decode(&serverConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var notifyConfig nutriguide.NotifyConfig
	if err := envdecode.Decode(&notifyConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	ctx := context.Background()

	_, _, otelShutdown, err := nutriguide.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	stack, err := setup.Build(ctx, resolverConfig, modelConfig, storeConfig)
	if err != nil {
		slog.Error("SETUP: Failed to build resolver stack", "error", err)
		return
	}
	defer stack.Close()

	cfg := server.Config{
		NewReconciler: func() *reconciler.Reconciler {
			return reconciler.New(stack.Resolver, reconciler.Config{
				Writer:   stack.Writer,
				Goals:    stack.Goals,
				Feedback: stack.Feedback,
				Logger:   nutriguide.NewStdoutTransitionLogger(),
			})
		},
		Writer:         stack.Writer,
		Goals:          stack.Goals,
		CORSOrigins:    serverConfig.CORSOrigins,
		RateLimitRPS:   serverConfig.RateLimitRPS,
		RateLimitBurst: serverConfig.RateLimitBurst,
	}
	if notifyConfig.SlackWebhookURL != "" {
		cfg.Notifier = slack.NewClient(notifyConfig.SlackWebhookURL, &http.Client{Timeout: 10 * time.Second})
		cfg.NotifyChannel = notifyConfig.SlackChannel
		slog.Info("SETUP: Slack notifications enabled", "channel", notifyConfig.SlackChannel)
	}

	srv, err := server.New(cfg)
	if err != nil {
		slog.Error("SETUP: Failed to create server", "error", err)
		return
	}

	httpServer := &http.Server{
		Addr:              serverConfig.Addr,
		Handler:           srv.Handler(),
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      resolverConfig.RequestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		slog.Info("SERVER: Listening", "addr", serverConfig.Addr, "resolver", stack.Name)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("SERVER: ListenAndServe failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("SERVER: Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("SERVER: Graceful shutdown failed", "error", err)
		return
	}
	slog.Info("SERVER: Stopped cleanly")
}
