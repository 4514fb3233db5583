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

const (
	scoreBatchSize = 50
	scoreBatchWait = 2 * time.Second
)

// ScoreWorker persists graded attempts in batches. Exam deadlines produce a
// thundering herd of submits; collecting them for up to scoreBatchWait and
// writing one bulk UPDATE keeps Postgres flat. After a batch lands, the
// students' answer caches are dropped in one pipeline.
type ScoreWorker struct {
	rdb         *redis.Client
	submissions *repository.SubmissionRepository
	log         zerolog.Logger
	done        chan struct{}
}

// NewScoreWorker creates a new ScoreWorker.
func NewScoreWorker(rdb *redis.Client, submissions *repository.SubmissionRepository, log zerolog.Logger) *ScoreWorker {
	return &ScoreWorker{
		rdb:         rdb,
		submissions: submissions,
		log:         log.With().Str("component", "score_worker").Logger(),
		done:        make(chan struct{}),
	}
}

// Start runs the worker loop until ctx is cancelled, then drains the queue.
func (w *ScoreWorker) Start(ctx context.Context) {
	defer close(w.done)
	w.log.Info().Msg("score worker started")

	for {
		select {
		case <-ctx.Done():
			w.drainAll()
			return
		default:
		}

		batch := w.collect(ctx)
		if len(batch) > 0 {
			w.flush(batch)
		}
	}
}

// Done is closed once Start has returned.
func (w *ScoreWorker) Done() <-chan struct{} {
	return w.done
}

// collect blocks for the first job, then keeps popping without blocking until
// the batch is full or the wait window closes.
func (w *ScoreWorker) collect(ctx context.Context) []model.ScorePersistJob {
	res, err := w.rdb.BLPop(ctx, 5*time.Second, config.WorkerKey.PersistScoresQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) {
			w.log.Warn().Err(err).Msg("queue pop failed")
			time.Sleep(time.Second)
		}
		return nil
	}

	batch := w.appendJob(nil, res[1])
	deadline := time.Now().Add(scoreBatchWait)

	for len(batch) < scoreBatchSize && time.Now().Before(deadline) {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistScoresQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			break
		}
		batch = w.appendJob(batch, raw)
	}
	return batch
}

func (w *ScoreWorker) appendJob(batch []model.ScorePersistJob, raw string) []model.ScorePersistJob {
	var job model.ScorePersistJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		w.log.Error().Err(err).Msg("malformed score job dropped")
		return batch
	}
	return append(batch, job)
}

func (w *ScoreWorker) flush(batch []model.ScorePersistJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	updates := make([]repository.ScoreUpdate, len(batch))
	for i, job := range batch {
		updates[i] = repository.ScoreUpdate{
			SubmissionID: job.SubmissionID,
			Score:        job.Score,
			Details:      job.Details,
		}
	}

	if err := w.submissions.BulkUpdateScores(ctx, updates); err != nil {
		w.log.Warn().Err(err).Int("batch", len(batch)).Msg("bulk score update failed, retrying per row")
		for _, job := range batch {
			if err := w.submissions.UpdateScore(ctx, job.SubmissionID, job.Score, job.Details); err != nil {
				w.log.Error().Err(err).
					Str("submission_id", job.SubmissionID.String()).
					Msg("score persist failed")
				continue
			}
			w.cleanupCache(ctx, job)
		}
		return
	}

	pipe := w.rdb.Pipeline()
	for _, job := range batch {
		pipe.Del(ctx, config.CacheKey.StudentAnswersKey(job.ExamID.String(), job.StudentID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Warn().Err(err).Msg("answer cache cleanup failed")
	}

	w.log.Info().Int("batch", len(batch)).Msg("scores persisted")
}

func (w *ScoreWorker) cleanupCache(ctx context.Context, job model.ScorePersistJob) {
	key := config.CacheKey.StudentAnswersKey(job.ExamID.String(), job.StudentID)
	if err := w.rdb.Del(ctx, key).Err(); err != nil {
		w.log.Warn().Err(err).Str("key", key).Msg("answer cache cleanup failed")
	}
}

// drainAll flushes everything left in the queue at shutdown.
func (w *ScoreWorker) drainAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var batch []model.ScorePersistJob
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistScoresQueue).Result()
		if err != nil {
			break
		}
		batch = w.appendJob(batch, raw)
		if len(batch) >= scoreBatchSize {
			w.flush(batch)
			batch = nil
		}
	}
	if len(batch) > 0 {
		w.flush(batch)
	}
	w.log.Info().Msg("score worker stopped")
}
