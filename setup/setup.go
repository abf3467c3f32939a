// Package setup assembles the resolver and meal log stack from configuration for the binaries.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"

	"nutriguide"
	"nutriguide/mealog"
	"nutriguide/nutrition"
	"nutriguide/resolver"
	"nutriguide/resolver/bedrock"
	"nutriguide/resolver/cache"
	"nutriguide/resolver/local"
	"nutriguide/resolver/mock"
	"nutriguide/resolver/remote"
	"nutriguide/tools"
	"nutriguide/tools/storage"
)

const (
	KindMock    = "mock"
	KindLocal   = "local"
	KindRemote  = "remote"
	KindBedrock = "bedrock"
)

// Stack is everything a reconciler needs besides its per-session state.
type Stack struct {
	Name     string
	Resolver nutriguide.Resolver
	Writer   nutriguide.MealLogWriter
	Goals    nutriguide.GoalStore
	Feedback nutriguide.FeedbackRecorder

	closers []func() error
}

func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// Build opens the meal store and the configured resolver, then applies the cache and
// instrumentation decorators when they are enabled.
func Build(ctx context.Context, rc nutriguide.ResolverConfig, mc nutriguide.ModelConfig, sc nutriguide.StoreConfig) (*Stack, error) {
	store, err := mealog.NewSQLiteStore(sc.MealDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open meal store: %w", err)
	}
	stack := &Stack{
		Name:     rc.Kind,
		Writer:   mealog.NewWriter(store, nil),
		Goals:    store,
		Feedback: store,
		closers:  []func() error{store.Close},
	}
	slog.Info("SETUP: Meal store opened", "path", sc.MealDBPath)

	res, err := newResolver(ctx, rc, mc, stack)
	if err != nil {
		stack.Close()
		return nil, err
	}

	if rc.RedisAddr != "" {
		rdb := cache.NewRedisClient(rc.RedisAddr, rc.RedisPassword)
		stack.closers = append(stack.closers, rdb.Close)
		res = cache.NewSuggestCache(res, rdb, rc.SuggestCacheTTL)
		slog.Info("SETUP: Suggest cache enabled", "addr", rc.RedisAddr, "ttl", rc.SuggestCacheTTL)
	}

	if rc.InstrumentCalls {
		res = resolver.NewInstrumented(res, rc.Kind,
			otel.Tracer(nutriguide.TracerNameResolver),
			otel.Meter(nutriguide.TracerNameResolver))
	}

	stack.Resolver = res
	return stack, nil
}

func newResolver(ctx context.Context, rc nutriguide.ResolverConfig, mc nutriguide.ModelConfig, stack *Stack) (nutriguide.Resolver, error) {
	switch rc.Kind {
	case KindMock:
		return mock.New(""), nil

	case KindLocal:
		db, err := LoadNutrition(ctx, rc)
		if err != nil {
			return nil, err
		}
		return local.New(db, local.Options{SuggestLimit: rc.SuggestLimit, SuggestMinScore: rc.SuggestMinScore}), nil

	case KindRemote:
		client := remote.NewClient(rc.RemoteBaseURL, &http.Client{Timeout: rc.RequestTimeout})
		// the backend owns history and feedback; goals stay local
		stack.Writer = client
		stack.Feedback = client
		slog.Info("SETUP: Remote backend configured", "base_url", rc.RemoteBaseURL)
		return client, nil

	case KindBedrock:
		db, err := LoadNutrition(ctx, rc)
		if err != nil {
			return nil, err
		}
		registry, err := tools.NewRegistry(db)
		if err != nil {
			return nil, fmt.Errorf("failed to create tool registry: %w", err)
		}
		brc, err := newBedrockRuntimeClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Bedrock client: %w", err)
		}
		llm := bedrock.NewLLMClient(brc, bedrock.LLMOptions{
			ModelID:     mc.ModelID,
			MaxTokens:   mc.MaxTokens,
			Temperature: mc.Temperature,
			TopP:        mc.TopP,
		})
		return bedrock.NewResolver(llm, registry, bedrock.Options{
			MaxIterations: mc.MaxToolIterations,
			SuggestLimit:  rc.SuggestLimit,
		}), nil

	default:
		return nil, fmt.Errorf("unknown resolver kind %q (want %s, %s, %s or %s)", rc.Kind, KindMock, KindLocal, KindRemote, KindBedrock)
	}
}

// LoadNutrition reads the nutrition database from S3 when a bucket and key are configured,
// otherwise from NutritionDBPath.
func LoadNutrition(ctx context.Context, rc nutriguide.ResolverConfig) (*nutrition.Database, error) {
	var state storage.NutritionState
	if rc.NutritionBucket != "" && rc.NutritionKey != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		state = storage.NewS3NutritionState(s3.NewFromConfig(awsCfg), rc.NutritionBucket, rc.NutritionKey)
	} else {
		state = storage.NewFileNutritionState(rc.NutritionDBPath)
	}

	return nutrition.Load(ctx, state)
}

func newBedrockRuntimeClient(ctx context.Context) (*bedrockruntime.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}
