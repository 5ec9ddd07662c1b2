package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"persona-chat/handler"
	"persona-chat/internal/config"
	"persona-chat/internal/integrations/paramstore"
	"persona-chat/internal/repository"
	"persona-chat/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config", err)
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	if cfg.ParamPrefix != "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			fatal("failed to create SSM client", err)
		}
		if err := cfg.ApplyParams(ctx, ssmClient); err != nil {
			fatal("failed to read config parameters", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		fatal("invalid config", err)
	}

	// ---- Storage ----
	var backend repository.Backend
	switch cfg.StorageBackend {
	case config.BackendDynamoDB:
		backend, err = repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	case config.BackendBolt:
		backend, err = repository.OpenBolt(cfg.BoltPath)
	case config.BackendSQLite:
		backend, err = repository.OpenSQLite(cfg.SQLitePath)
	default:
		backend = repository.NewMemoryBackend()
	}
	if err != nil {
		fatal("failed to open storage backend", err)
	}
	// lambda.Start never returns; bolt and sqlite files are released when the
	// execution environment is torn down.
	storage, err := repository.NewStorage(backend, cfg.Namespace)
	if err != nil {
		fatal("failed to create storage", err)
	}

	// ---- Handler ----
	commands, err := usecase.NewCommandService(storage, cfg.ReplyDelay, cfg.DefaultAvatar, slog.Default(),
		usecase.WithAssistant(cfg.Assistant))
	if err != nil {
		fatal("failed to create command service", err)
	}

	h, err := handler.NewHandler(commands)
	if err != nil {
		fatal("failed to create handler", err)
	}

	slog.Info("starting chat handler", "backend", cfg.StorageBackend, "namespace", cfg.Namespace)
	lambda.Start(h.Handle)
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
