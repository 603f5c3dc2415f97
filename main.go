package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"docuchat/backend/features/chat"
	"docuchat/backend/features/document"
	"docuchat/backend/features/model"
	"docuchat/backend/features/stats"
	"docuchat/backend/features/user"
	"docuchat/backend/internal/adapter/gemini"
	"docuchat/backend/internal/adapter/pdf"
	"docuchat/backend/internal/answer"
	"docuchat/backend/internal/config"
	"docuchat/backend/internal/logger"
	"docuchat/backend/internal/middleware"
	"docuchat/backend/internal/retrieval"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
)

// noopPublisher keeps the event path wired when ENABLE_EVENTS is off.
type noopPublisher struct{}

func (noopPublisher) Publish(topic string, body []byte) error { return nil }

func main() {
	// Initialize structured logger
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// 2. Database Connection
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("failed to open db connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Retry connection
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1, "max_attempts", cfg.BootstrapRetryAttempts)
		time.Sleep(retryDelay)
	}

	if err := db.Ping(); err != nil {
		slog.Error("failed to ping db after retries", "error", err)
		os.Exit(1)
	}

	// 3. Run Migrations
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		slog.Error("failed to create migration driver", "error", err)
		os.Exit(1)
	}

	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		slog.Error("failed to create migration instance", "error", err)
		os.Exit(1)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations applied successfully")

	// 4. Event Publisher
	var publisher document.EventPublisher = noopPublisher{}
	if cfg.EnableEvents {
		nsqCfg := nsq.NewConfig()
		producer, err := nsq.NewProducer(cfg.NSQDHost, nsqCfg)
		if err != nil {
			slog.Error("failed to create NSQ producer", "error", err)
			os.Exit(1)
		}
		defer producer.Stop()
		publisher = producer
	}

	// 5. Adapters
	ctx := context.Background()
	llmTimeout := time.Duration(cfg.LLMTimeoutSeconds) * time.Second
	geminiClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, llmTimeout)
	if err != nil {
		slog.Error("failed to create gemini client", "error", err)
		os.Exit(1)
	}
	defer geminiClient.Close()

	extractor := pdf.NewExtractor()

	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}

	// 6. Features
	userRepo := user.NewPostgresRepo(db)

	docRepo := document.NewPostgresRepo(db)
	docService := document.NewService(docRepo, extractor, publisher, cfg.ChunkMaxTokens, cfg.ChunkOverlapTokens)
	docHandler := document.NewHandler(docService, userRepo, extractor, cfg.UploadDir, cfg.MaxUploadSizeMB)

	chunkStore := retrieval.NewPostgresStore(db)
	retrievalService := retrieval.NewService(chunkStore, queryLogger)

	generator := answer.NewGenerator(geminiClient)

	chatRepo := chat.NewPostgresRepo(db)
	chatService := chat.NewService(chatRepo, docService, retrievalService, generator, cfg.RetrievalTopK)
	chatHandler := chat.NewHandler(chatService, userRepo)

	statsHandler := stats.NewHandler(docRepo, chunkStore, chatRepo)
	modelHandler := model.NewHandler(geminiClient)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID, X-User-Email")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	authed := func(next http.HandlerFunc) http.Handler {
		return middleware.CorrelationID(enableCORS(middleware.RequireIdentity(next).ServeHTTP))
	}

	// Routes
	http.Handle("POST /documents", authed(docHandler.Upload))
	http.Handle("GET /documents", authed(docHandler.List))
	http.Handle("GET /documents/{id}", authed(docHandler.Get))
	http.Handle("DELETE /documents/{id}", authed(docHandler.Delete))
	http.Handle("POST /documents/{id}/index", authed(docHandler.Index))

	http.Handle("POST /documents/{id}/ask", authed(chatHandler.Ask))
	http.Handle("GET /documents/{id}/conversations", authed(chatHandler.ListConversations))
	http.Handle("GET /conversations/{id}", authed(chatHandler.GetConversation))
	http.Handle("DELETE /conversations/{id}", authed(chatHandler.DeleteConversation))

	http.Handle("GET /models", middleware.CorrelationID(enableCORS(modelHandler.List)))
	http.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded","database":"unreachable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","database":"ok"}`))
	})

	// 7. Start Server
	slog.Info("server starting", "port", cfg.ServerPort)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.ServerPort), nil); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
