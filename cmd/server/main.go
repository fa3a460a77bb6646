package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/expenseflow/expenseflow/internal/application/service"
	"github.com/expenseflow/expenseflow/internal/application/workflow"
	"github.com/expenseflow/expenseflow/internal/config"
	"github.com/expenseflow/expenseflow/internal/currency"
	"github.com/expenseflow/expenseflow/internal/export"
	"github.com/expenseflow/expenseflow/internal/infrastructure/external/directory"
	"github.com/expenseflow/expenseflow/internal/infrastructure/external/rates"
	"github.com/expenseflow/expenseflow/internal/infrastructure/persistence/repository"
	"github.com/expenseflow/expenseflow/internal/infrastructure/persistence/sqlite"
	httpadapter "github.com/expenseflow/expenseflow/internal/interfaces/http"
	"github.com/expenseflow/expenseflow/pkg/database"
	"github.com/expenseflow/expenseflow/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting ExpenseFlow approval workflow engine",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	sqlDB, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer sqlDB.Close()

	// Run migrations
	migrator := database.NewMigrator(sqlDB, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	db := sqlite.NewDB(sqlDB.DB, logger)

	// Initialize repositories
	expenseRepo := repository.NewExpenseRepository(db, logger)
	historyRepo := repository.NewHistoryRepository(db, logger)
	policyRepo := repository.NewPolicyRepository(db, logger)
	userRepo := repository.NewUserRepository(db, logger)
	companyRepo := repository.NewCompanyRepository(db, logger)

	// Initialize external collaborators
	orgDirectory := directory.NewUserDirectory(userRepo, logger)
	rateSource := rates.NewClient(logger,
		rates.WithBaseURL(cfg.Rates.BaseURL),
		rates.WithTimeout(cfg.Rates.Timeout))
	normalizer := currency.NewNormalizer(rateSource)

	kvLogger := utils.NewKVLogger(logger)

	// Initialize workflow engine
	var engineOpts []workflow.EngineOption
	if cfg.Workflow.ConditionalRules {
		engineOpts = append(engineOpts, workflow.WithConditionalRules())
	}
	engine := workflow.NewEngine(
		expenseRepo,
		historyRepo,
		policyRepo,
		userRepo,
		orgDirectory,
		db,
		kvLogger,
		engineOpts...,
	)

	// Initialize application services
	expenseService := service.NewExpenseService(expenseRepo, historyRepo, companyRepo, normalizer, kvLogger)
	policyService := service.NewPolicyService(policyRepo, kvLogger)
	reports := export.NewReportWriter(logger)

	// Initialize HTTP server
	server := httpadapter.NewServer(
		httpadapter.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		expenseService,
		policyService,
		engine,
		companyRepo,
		reports,
		kvLogger,
	)

	// Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
