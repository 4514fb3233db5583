package worker

import (
	"context"
	"errors"
	"time"

	"github.com/examly/examly-backend/internal/config"
	"github.com/examly/examly-backend/internal/model"
	"github.com/examly/examly-backend/internal/repository"
	"github.com/examly/examly-backend/internal/service"
	"github.com/rs/zerolog"
)

// DeadlineWorker is the server-side authority on exam expiry. The live
// stream's countdown force-submits connected clients, but a student who
// closed the tab would otherwise stay in_progress forever. The sweeper
// periodically finds published examinations whose window (plus grace) has
// closed, force-submits every unfinished attempt from its cached draft
// answers, and closes the examination.
type DeadlineWorker struct {
	exams       *repository.ExamRepository
	submissions *repository.SubmissionRepository
	taking      *service.TakingService
	interval    time.Duration
	grace       time.Duration
	log         zerolog.Logger
	done        chan struct{}
}

// NewDeadlineWorker creates a new DeadlineWorker.
func NewDeadlineWorker(
	exams *repository.ExamRepository,
	submissions *repository.SubmissionRepository,
	taking *service.TakingService,
	cfg *config.Config,
	log zerolog.Logger,
) *DeadlineWorker {
	return &DeadlineWorker{
		exams:       exams,
		submissions: submissions,
		taking:      taking,
		interval:    cfg.DeadlineSweepInterval,
		grace:       cfg.DeadlineGrace,
		log:         log.With().Str("component", "deadline_worker").Logger(),
		done:        make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *DeadlineWorker) Start(ctx context.Context) {
	defer close(w.done)
	w.log.Info().Dur("interval", w.interval).Msg("deadline worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("deadline worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Done is closed once Start has returned.
func (w *DeadlineWorker) Done() <-chan struct{} {
	return w.done
}

func (w *DeadlineWorker) sweep(ctx context.Context) {
	exams, err := w.exams.ListExpiredPublished(ctx, time.Now(), w.grace)
	if err != nil {
		w.log.Warn().Err(err).Msg("expired exam lookup failed")
		return
	}

	for i := range exams {
		w.settleExam(ctx, &exams[i])
	}
}

func (w *DeadlineWorker) settleExam(ctx context.Context, exam *model.Examination) {
	subs, err := w.submissions.ListInProgress(ctx, exam.ID)
	if err != nil {
		w.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("unfinished attempt lookup failed")
		return
	}

	forced := 0
	failed := 0
	for _, sub := range subs {
		// Submit with no extra answers grades whatever was autosaved and
		// flags the attempt as auto-submitted, since the window has closed.
		if _, err := w.taking.Submit(ctx, exam.ID, sub.StudentID, nil); err != nil {
			if errors.Is(err, service.ErrAlreadySubmitted) {
				continue
			}
			failed++
			w.log.Warn().Err(err).
				Str("exam_id", exam.ID.String()).
				Int("student_id", sub.StudentID).
				Msg("forced submit failed")
			continue
		}
		forced++
	}

	if failed > 0 {
		// Leave the exam published; the next sweep retries the stragglers.
		w.log.Warn().
			Str("exam_id", exam.ID.String()).
			Int("failed", failed).
			Msg("examination left open for retry")
		return
	}

	if err := w.exams.UpdateStatus(ctx, exam.ID, model.ExamStatusClosed); err != nil {
		w.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("examination close failed")
		return
	}

	w.log.Info().
		Str("exam_id", exam.ID.String()).
		Int("forced_submits", forced).
		Msg("examination settled")
}
