package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kbase/internal/config"
	logpkg "github.com/kailas-cloud/kbase/internal/logger"
	chiTransport "github.com/kailas-cloud/kbase/internal/transport/chi"
	healthuc "github.com/kailas-cloud/kbase/internal/usecase/health"
	knowledgeuc "github.com/kailas-cloud/kbase/internal/usecase/knowledge"
	memoryuc "github.com/kailas-cloud/kbase/internal/usecase/memory"
	usageuc "github.com/kailas-cloud/kbase/internal/usecase/usage"
	"github.com/kailas-cloud/kbase/internal/vectordb/factory"
	"github.com/kailas-cloud/kbase/internal/version"
)

func main() {
	configPath := flag.String("config", "", "config file (default: config/<ENV>.yaml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "kbase:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Load configuration based on ENV
	env := config.GetEnv()

	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting kbase API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("driver", cfg.Backend.Driver),
		zap.String("collection", cfg.Backend.Collection),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := factory.New(ctx, cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer backend.Close()

	// Pass a nil interface (not a typed nil) when there is no embedder.
	var embeddingChecker healthuc.EmbeddingChecker
	if hc, ok := backend.Embedder.(healthuc.EmbeddingChecker); ok {
		embeddingChecker = hc
	}

	knowledgeSvc := knowledgeuc.New(backend.DB, logger.Named("knowledge"))
	memorySvc := memoryuc.New(backend.DB, logger.Named("memory"))
	healthSvc := healthuc.New(backend, backend.DB, embeddingChecker)

	server := chiTransport.NewServer(backend.DB, knowledgeSvc, memorySvc, healthSvc, logger).
		WithMaxBodyBytes(int64(cfg.HTTP.MaxBodyBytes)).
		WithUsage(usageuc.New(nil))

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(cfg.Auth.APIKeys),
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
