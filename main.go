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

	"github.com/lumina-bi/lumina-engine/pkg/adapters/datasource"
	_ "github.com/lumina-bi/lumina-engine/pkg/adapters/datasource/mysql"
	_ "github.com/lumina-bi/lumina-engine/pkg/adapters/datasource/postgres"
	_ "github.com/lumina-bi/lumina-engine/pkg/adapters/datasource/sqlite"
	"github.com/lumina-bi/lumina-engine/pkg/auth"
	"github.com/lumina-bi/lumina-engine/pkg/config"
	"github.com/lumina-bi/lumina-engine/pkg/crypto"
	"github.com/lumina-bi/lumina-engine/pkg/database"
	"github.com/lumina-bi/lumina-engine/pkg/handlers"
	"github.com/lumina-bi/lumina-engine/pkg/llm"
	"github.com/lumina-bi/lumina-engine/pkg/logging"
	"github.com/lumina-bi/lumina-engine/pkg/repositories"
	"github.com/lumina-bi/lumina-engine/pkg/services"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	migrationsPath := flag.String("migrations", "migrations", "path to the migrations directory")
	flag.Parse()

	if err := run(*configPath, *migrationsPath); err != nil {
		fmt.Fprintf(os.Stderr, "engine failed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, migrationsPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Environment)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database, migrationsPath, logger); err != nil {
		return err
	}

	encryptor, err := crypto.NewCredentialEncryptor(cfg.Credentials.EncryptionKey)
	if err != nil {
		return err
	}

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return err
	}
	logger.Info("LLM client ready",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", llmClient.Model()))

	factory := datasource.NewAdapterFactory()

	dsRepo := repositories.NewDataSourceRepository(db)
	invRepo := repositories.NewInvocationRepository(db)

	schemaService := services.NewSchemaService(dsRepo, encryptor, factory, logger)
	generator := services.NewSQLGenerator(llmClient, services.GeneratorOptions{
		RowLimit:          cfg.Pipeline.DefaultRowLimit,
		GenerationTimeout: cfg.LLM.Timeout,
	}, logger)
	pipeline := services.NewQueryPipeline(dsRepo, invRepo, schemaService, generator, encryptor, factory,
		services.PipelineOptions{
			ExecutionTimeout: cfg.Pipeline.ExecutionTimeout,
			MaxResponseRows:  cfg.Pipeline.MaxResponseRows,
		}, logger)
	dataSourceService := services.NewDataSourceService(dsRepo, encryptor, factory, cfg.Pipeline.ConnectionTimeout, logger)
	historyService := services.NewHistoryService(invRepo, logger)

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	apiMux := http.NewServeMux()
	handlers.NewDataSourceHandler(dataSourceService, schemaService, logger).Register(apiMux)
	handlers.NewQueryHandler(pipeline, historyService, logger).Register(apiMux)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.NewHealthHandler(db).Health)
	mux.Handle("/api/", auth.Middleware(verifier)(apiMux))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("engine listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
