package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examflow-backend/internal/config"
	"github.com/stemsi/examflow-backend/internal/database"
	"github.com/stemsi/examflow-backend/internal/handler"
	"github.com/stemsi/examflow-backend/internal/logger"
	"github.com/stemsi/examflow-backend/internal/repository"
	"github.com/stemsi/examflow-backend/internal/router"
	"github.com/stemsi/examflow-backend/internal/service"
	"github.com/stemsi/examflow-backend/internal/validator"
	"github.com/stemsi/examflow-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExamFlow Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	scoreRepo := repository.NewScoreRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	grantRepo := repository.NewGrantRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	teacherRepo := repository.NewTeacherRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	locks := service.NewSessionLocks()
	aggregator := service.NewScoreAggregator(answerRepo, scoreRepo, sessionRepo, cfg.RetakeThreshold)
	sessionService := service.NewSessionService(
		examRepo, sessionRepo, answerRepo, questionRepo, grantRepo,
		aggregator, locks, rdb,
	)
	gradingService := service.NewGradingService(
		examRepo, sessionRepo, answerRepo, questionRepo, scoreRepo,
		aggregator, locks,
	)
	auditRecorder := service.NewAuditRecorder(rdb)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:        handler.NewAuthHandler(authService, studentRepo, teacherRepo),
		StudentExam: handler.NewStudentExamHandler(sessionService, auditRecorder),
		TeacherExam: handler.NewTeacherExamHandler(sessionService, gradingService, auditRecorder),
		Monitor:     handler.NewMonitorHandler(rdb, examRepo, scoreRepo, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	sweepWorker := worker.NewSweepWorker(
		sessionService, examRepo, sessionRepo, grantRepo, auditRecorder, log,
		cfg.SweepInterval, cfg.SweepLookback, cfg.AbsentGrace,
	)
	auditWorker := worker.NewAuditWorker(pool, rdb, log)

	go sweepWorker.Start(workerCtx)
	go auditWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
