package main

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joeshaw/envdecode"

	"nutriguide"
	"nutriguide/setup"
)

func main() {
	fn := func(ctx context.Context, params Params) (Results, error) {
		var resolverConfig nutriguide.ResolverConfig
		if err := envdecode.Decode(&resolverConfig); err != nil {
			return Results{}, err
		}

		var modelConfig nutriguide.ModelConfig
		if err := envdecode.Decode(&modelConfig); err != nil {
			return Results{}, err
		}

		var storeConfig nutriguide.StoreConfig
		if err := envdecode.Decode(&storeConfig); err != nil {
			return Results{}, err
		}

		_, _, otelShutdown, err := nutriguide.InitOtel(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
			return Results{}, err
		}
		defer func() {
			if err := otelShutdown(ctx); err != nil {
				slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
			}
		}()

		stack, err := setup.Build(ctx, resolverConfig, modelConfig, storeConfig)
		if err != nil {
			slog.Error("SETUP: Failed to build resolver stack", "error", err)
			return Results{}, err
		}
		defer stack.Close()

		return handle(ctx, stack, nutriguide.NewStdoutTransitionLogger(), params)
	}

	lambda.Start(fn)
}
