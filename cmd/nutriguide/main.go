package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joeshaw/envdecode"

	"nutriguide"
	"nutriguide/reconciler"
	"nutriguide/setup"
)

func main() {
	ctx := context.Background()

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

	logger, cleanup, err := newTransitionLogger(stack.Name)
	if err != nil {
		slog.Error("Failed to create transition logger", "error", err)
		return
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("Failed to flush transition log", "error", err)
		}
	}()

	rec := reconciler.New(stack.Resolver, reconciler.Config{
		Writer:   stack.Writer,
		Goals:    stack.Goals,
		Feedback: stack.Feedback,
		Logger:   logger,
	})
	if _, err := rec.Refresh(ctx); err != nil {
		slog.Warn("SETUP: Daily progress unavailable", "error", err)
	}

	sh := &shell{rec: rec, goals: stack.Goals, writer: stack.Writer, out: os.Stdout, readFile: os.ReadFile}
	if err := sh.run(ctx, os.Stdin); err != nil {
		slog.Error("Shell stopped", "error", err)
	}
}

func newTransitionLogger(resolverName string) (nutriguide.TransitionLogger, func() error, error) {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to create log directory: %w", err)
	}
	logFilePath := nutriguide.NewTransitionLogFilePath(resolverName)
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := nutriguide.NewFileTransitionLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}
