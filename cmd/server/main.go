package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/examly/examly-backend/internal/config"
	"github.com/examly/examly-backend/internal/database"
	"github.com/examly/examly-backend/internal/handler"
	"github.com/examly/examly-backend/internal/logger"
	"github.com/examly/examly-backend/internal/repository"
	"github.com/examly/examly-backend/internal/router"
	"github.com/examly/examly-backend/internal/service"
	"github.com/examly/examly-backend/internal/validator"
	"github.com/examly/examly-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("PostgreSQL connection failed")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer rdb.Close()

	validator.Setup()

	// Repositories.
	userRepo := repository.NewUserRepository(pool)
	subjectRepo := repository.NewSubjectRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	paperRepo := repository.NewTestPaperRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// Services.
	authService := service.NewAuthService(userRepo, rdb, cfg, log)
	subjectService := service.NewSubjectService(subjectRepo)
	questionService := service.NewQuestionService(questionRepo)
	paperService := service.NewTestPaperService(paperRepo, questionRepo)
	examService := service.NewExamService(examRepo, paperRepo, submissionRepo, rdb, log)
	takingService := service.NewTakingService(examRepo, submissionRepo, examService, rdb, cfg, log)
	dashboardService := service.NewDashboardService(dashboardRepo, userRepo)

	// A Redis wipe must not leave published exams unservable: rebuild every
	// cache before accepting traffic.
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Fatal().Err(err).Msg("exam cache prewarm failed")
	}

	// Background workers.
	answerWorker := worker.NewAnswerWorker(rdb, submissionRepo, log)
	scoreWorker := worker.NewScoreWorker(rdb, submissionRepo, log)
	deadlineWorker := worker.NewDeadlineWorker(examRepo, submissionRepo, takingService, cfg, log)
	go answerWorker.Start(ctx)
	go scoreWorker.Start(ctx)
	go deadlineWorker.Start(ctx)

	engine := router.Setup(cfg, authService, log, router.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Subject:   handler.NewSubjectHandler(subjectService),
		Question:  handler.NewQuestionHandler(questionService),
		TestPaper: handler.NewTestPaperHandler(paperService),
		Exam:      handler.NewExamHandler(examService),
		Taking:    handler.NewTakingHandler(takingService),
		Dashboard: handler.NewDashboardHandler(dashboardService),
		WS:        handler.NewWSHandler(takingService, examService, cfg.AllowedOrigins, log),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: engine,
	}

	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	// Stop accepting requests first, then let the workers drain their queues.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	cancel()
	for _, done := range []<-chan struct{}{answerWorker.Done(), scoreWorker.Done(), deadlineWorker.Done()} {
		select {
		case <-done:
		case <-time.After(30 * time.Second):
			log.Warn().Msg("worker drain timed out")
		}
	}

	log.Info().Msg("shutdown complete")
}
