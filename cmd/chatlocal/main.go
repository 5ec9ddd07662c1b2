package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"persona-chat/internal/config"
	"persona-chat/internal/repository"
	"persona-chat/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config", err)
	}
	if cfg.StorageBackend == config.BackendDynamoDB {
		cfg.StorageBackend = config.BackendBolt
	}

	flag.StringVar(&cfg.Username, "user", cfg.Username, "username whose conversations are loaded")
	flag.StringVar(&cfg.StorageBackend, "backend", cfg.StorageBackend, "bolt, sqlite or memory")
	flag.StringVar(&cfg.Namespace, "namespace", cfg.Namespace, "storage namespace (path name)")
	flag.DurationVar(&cfg.ReplyDelay, "delay", cfg.ReplyDelay, "bot reply delay")
	flag.BoolVar(&cfg.Assistant, "assistant", cfg.Assistant, "open the assistant conversation on start")
	flag.Parse()

	if cfg.Username == "" {
		cfg.Username = os.Getenv("USER")
	}
	if cfg.Username == "" {
		cfg.Username = "local"
	}
	if err := cfg.Validate(); err != nil {
		fatal("invalid config", err)
	}

	// Diagnostics go to stderr so they do not interleave with the chat.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	backend, err := openBackend(cfg)
	if err != nil {
		fatal("failed to open storage backend", err)
	}
	if c, ok := backend.(io.Closer); ok {
		defer c.Close()
	}
	storage, err := repository.NewStorage(backend, cfg.Namespace)
	if err != nil {
		fatal("failed to create storage", err)
	}

	ctx := context.Background()
	r, err := newREPL(ctx, storage, cfg, os.Stdout, logger)
	if err != nil {
		fatal("failed to start", err)
	}
	r.out.printf("%s\n", helpText)
	r.list()
	if err := r.run(ctx, os.Stdin); err != nil {
		slog.Error("read input", "err", err)
	}
}

func openBackend(cfg config.Config) (repository.Backend, error) {
	switch cfg.StorageBackend {
	case config.BackendBolt:
		return repository.OpenBolt(cfg.BoltPath)
	case config.BackendSQLite:
		return repository.OpenSQLite(cfg.SQLitePath)
	case config.BackendMemory:
		return repository.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("backend %q is not available locally; use bolt, sqlite or memory", cfg.StorageBackend)
	}
}

func newREPL(ctx context.Context, p usecase.Persister, cfg config.Config, w io.Writer, logger *slog.Logger) (*repl, error) {
	r := &repl{username: cfg.Username, out: &syncWriter{w: w}}
	store, err := usecase.NewConversationStore(p,
		usecase.WithLogger(logger),
		usecase.WithDefaultAvatar(cfg.DefaultAvatar),
		usecase.WithMessageObserver(r.printMessage),
		usecase.WithChangeObserver(r.printChange),
	)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx, cfg.Username); err != nil {
		return nil, err
	}
	if cfg.Assistant {
		if _, err := store.EnsureAssistant(ctx, cfg.Username); err != nil && !usecase.IsPersistence(err) {
			return nil, err
		}
	}
	disp, err := usecase.NewDispatcher(store, usecase.WithReplyDelay(cfg.ReplyDelay), usecase.WithDispatcherLogger(logger))
	if err != nil {
		return nil, err
	}
	r.store = store
	r.disp = disp
	return r, nil
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
