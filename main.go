package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"financing_api/internal/config"
	"financing_api/internal/docstore"
	"financing_api/internal/httpapi"
	"financing_api/internal/logger"
	"financing_api/internal/messaging"
	"financing_api/internal/repository"
	"financing_api/internal/service"
	"financing_api/internal/verifier"
)

func runMigrations(db *pgxpool.Pool, log *zap.Logger) error {
	log.Info("Running database migrations")

	migrationsDir := "migrations"
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		log.Info("Running migration", zap.String("file", filename))

		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		_, err = db.Exec(context.Background(), string(content))
		if err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}

		log.Info("Migration completed", zap.String("file", filename))
	}

	log.Info("All migrations completed successfully")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting financing API")

	db, err := pgxpool.New(context.Background(), cfg.DatabaseDSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	log.Info("Connected to database")

	if err := runMigrations(db, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS.URL, log)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsClient.Close()

	log.Info("Connected to NATS")

	docs, err := docstore.NewDiskStore(cfg.Docs.Dir, log)
	if err != nil {
		log.Fatal("Failed to open document store", zap.Error(err))
	}

	verifierClient := verifier.NewClient(
		cfg.Verifier.URL,
		cfg.Verifier.APIKey,
		time.Duration(cfg.Verifier.TimeoutSeconds)*time.Second,
		log,
	)

	sessionRepo := repository.NewSessionRepository(db, log)
	clientRepo := repository.NewClientRepository(db, log)
	requestRepo := repository.NewRequestRepository(db, log)
	equipmentRepo := repository.NewEquipmentRepository(db, log)
	paymentRepo := repository.NewPaymentRepository(db, log)

	clientService := service.NewClientService(clientRepo, requestRepo, log)
	sessionService := service.NewSessionService(sessionRepo, verifierClient, docs, natsClient, log)
	requestService := service.NewRequestService(requestRepo, sessionRepo, clientService, natsClient, log)
	scheduleService := service.NewScheduleService(clientRepo, requestRepo, equipmentRepo, paymentRepo, log)
	paymentService := service.NewPaymentService(paymentRepo, requestRepo, equipmentRepo, log)

	err = natsClient.SubscribeToSessionCompleted(context.Background(), func(msg *messaging.SessionCompletedMessage) {
		log.Info("Received session completed notification",
			zap.String("session_id", msg.SessionID),
			zap.String("status", msg.Status),
			zap.Bool("passed", msg.Passed))
	})
	if err != nil {
		log.Error("Failed to subscribe to session completed", zap.Error(err))
	}

	handler := httpapi.NewHandler(
		sessionService,
		requestService,
		clientService,
		scheduleService,
		paymentService,
		docs,
		cfg.Public.BaseURL,
		log,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: handler.Router(),
	}

	go func() {
		log.Info("Starting server", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
