package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/examly/examly-backend/internal/config"
	"github.com/examly/examly-backend/internal/model"
	"github.com/examly/examly-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AnswerWorker drains the answer persistence queue: every autosave that hit
// the Redis cache is replayed into Postgres here, off the request path. Jobs
// that fail are requeued so a database hiccup loses nothing.
type AnswerWorker struct {
	rdb         *redis.Client
	submissions *repository.SubmissionRepository
	log         zerolog.Logger
	done        chan struct{}
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(rdb *redis.Client, submissions *repository.SubmissionRepository, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		rdb:         rdb,
		submissions: submissions,
		log:         log.With().Str("component", "answer_worker").Logger(),
		done:        make(chan struct{}),
	}
}

// Start runs the worker loop until ctx is cancelled, then drains whatever is
// left in the queue before returning.
func (w *AnswerWorker) Start(ctx context.Context) {
	defer close(w.done)
	w.log.Info().Msg("answer worker started")

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		default:
		}

		res, err := w.rdb.BLPop(ctx, 5*time.Second, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			w.log.Warn().Err(err).Msg("queue pop failed")
			time.Sleep(time.Second)
			continue
		}
		// BLPop returns [key, value].
		w.process(res[1])
	}
}

// Done is closed once Start has returned.
func (w *AnswerWorker) Done() <-chan struct{} {
	return w.done
}

func (w *AnswerWorker) process(raw string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var job model.AnswerPersistJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		w.log.Error().Err(err).Msg("malformed answer job dropped")
		return
	}

	if err := w.submissions.UpsertAnswer(ctx, job.ExamID, job.StudentID, job.Answer); err != nil {
		w.log.Warn().Err(err).
			Str("exam_id", job.ExamID.String()).
			Int("student_id", job.StudentID).
			Msg("answer persist failed, requeueing")
		if err := w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw).Err(); err != nil {
			w.log.Error().Err(err).Msg("requeue failed, answer job lost")
		}
	}
}

// drain empties the queue without blocking so a shutdown does not strand
// cached answers.
func (w *AnswerWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}
		w.process(raw)
		drained++
	}
	w.log.Info().Int("drained", drained).Msg("answer worker stopped")
}
