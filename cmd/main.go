package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"broker-agent/handler"
	"broker-agent/internal/config"
	"broker-agent/internal/integrations/openai"
	"broker-agent/internal/integrations/paramstore"
	"broker-agent/internal/integrations/supabase"
	"broker-agent/internal/repository"
	"broker-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	backend, err := cfg.Backend()
	if err != nil {
		logger.Error("invalid context backend", "err", err)
		os.Exit(1)
	}

	awsCfg := lazyAWSConfig(ctx)

	// ---- Clients ----
	keys, err := keySource(cfg, awsCfg)
	if err != nil {
		logger.Error("failed to create API key source", "err", err)
		os.Exit(1)
	}
	llm, err := openai.NewClient(keys, openai.WithBaseURL(cfg.CompletionBaseURL))
	if err != nil {
		logger.Error("failed to create completion client", "err", err)
		os.Exit(1)
	}

	store, err := contextStore(ctx, cfg, backend, awsCfg)
	if err != nil {
		logger.Error("failed to create context store", "backend", backend, "err", err)
		os.Exit(1)
	}
	logger.Info("context backend selected", "backend", backend, "table", cfg.KBTable)

	// ---- Handler ----
	svc, err := usecase.NewAnswerService(llm, store, cfg.CompletionModel, logger)
	if err != nil {
		logger.Error("failed to create answer service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(svc, logger)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

// lazyAWSConfig loads the default AWS config the first time it is needed, so
// deployments using only Supabase and an env key never touch AWS.
func lazyAWSConfig(ctx context.Context) func() aws.Config {
	var (
		loaded bool
		cfg    aws.Config
	)
	return func() aws.Config {
		if loaded {
			return cfg
		}
		c, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		cfg, loaded = c, true
		return cfg
	}
}

func keySource(cfg *config.Config, awsCfg func() aws.Config) (openai.KeySource, error) {
	if !cfg.UsesParamStore() {
		return openai.StaticKey(cfg.APIKey), nil
	}
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg()))
	if err != nil {
		return nil, err
	}
	return openai.NewParamStoreKey(ssmClient, cfg.ParamPrefix)
}

// contextStore returns a nil store when context fetching is disabled.
func contextStore(ctx context.Context, cfg *config.Config, backend config.Backend, awsCfg func() aws.Config) (usecase.ContextStore, error) {
	switch backend {
	case config.BackendSupabase:
		return supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, supabase.WithTable(cfg.KBTable))
	case config.BackendDynamoDB:
		return repository.NewDynamo(awsdynamodb.NewFromConfig(awsCfg()), cfg.KBTable)
	case config.BackendSQLite:
		db, err := repository.OpenSQLite(ctx, cfg.KBSQLitePath)
		if err != nil {
			return nil, err
		}
		return repository.NewSQLite(db, cfg.KBTable)
	default:
		return nil, nil
	}
}
