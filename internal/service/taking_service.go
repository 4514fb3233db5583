package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/examly/examly-backend/internal/attempt"
	"github.com/examly/examly-backend/internal/config"
	"github.com/examly/examly-backend/internal/model"
	"github.com/examly/examly-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// TakingService drives a student through an examination: start, autosave,
// status recovery and the final graded submit. Autosaved answers live in a
// Redis hash per attempt and are persisted to Postgres by the answer worker;
// grading runs fully in memory against the cached answer key.
type TakingService struct {
	exams       *repository.ExamRepository
	submissions *repository.SubmissionRepository
	examSvc     *ExamService
	rdb         *redis.Client
	grace       time.Duration
	log         zerolog.Logger
}

// NewTakingService creates a new TakingService.
func NewTakingService(
	exams *repository.ExamRepository,
	submissions *repository.SubmissionRepository,
	examSvc *ExamService,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *TakingService {
	return &TakingService{
		exams:       exams,
		submissions: submissions,
		examSvc:     examSvc,
		rdb:         rdb,
		grace:       cfg.DeadlineGrace,
		log:         log.With().Str("component", "taking_service").Logger(),
	}
}

// AvailableExams lists the examinations the student is enrolled in.
func (s *TakingService) AvailableExams(ctx context.Context, studentID, limit, offset int) ([]model.StudentExamItem, int64, error) {
	return s.exams.ListForStudent(ctx, studentID, limit, offset)
}

// Info retrieves one examination's metadata for the student, without the
// questions.
func (s *TakingService) Info(ctx context.Context, examID uuid.UUID, studentID int) (*model.StudentExamItem, error) {
	item, err := s.exams.GetForStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotEnrolled
		}
		return nil, err
	}
	return item, nil
}

// Start begins (or resumes) the student's attempt. Starting is idempotent: a
// second call returns the existing in-progress attempt with Resumed set.
func (s *TakingService) Start(ctx context.Context, examID uuid.UUID, studentID int) (*model.StartResult, error) {
	exam, err := s.authorizeAttempt(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if now.Before(exam.StartTime) {
		return nil, ErrExamNotOpen
	}
	if now.After(exam.EndTime) {
		return nil, ErrExamClosed
	}

	sub, created, err := s.submissions.CreateIfAbsent(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}
	if sub.Status == model.SubmissionStatusSubmitted {
		return nil, ErrAlreadySubmitted
	}

	if created {
		s.log.Info().
			Str("exam_id", examID.String()).
			Int("student_id", studentID).
			Msg("attempt started")
	}

	return &model.StartResult{
		SubmissionID: sub.ID,
		StartedAt:    sub.StartedAt,
		EndTime:      exam.EndTime,
		Resumed:      !created,
	}, nil
}

// Paper retrieves the question payload for an in-progress attempt.
func (s *TakingService) Paper(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamPayload, error) {
	if _, err := s.inProgressSubmission(ctx, examID, studentID); err != nil {
		return nil, err
	}
	return s.examSvc.Payload(ctx, examID)
}

// SaveAnswer caches one answer in Redis with last-write-wins semantics and
// queues it for database persistence. Rejected once the attempt is submitted
// or the exam window (plus grace) has closed.
func (s *TakingService) SaveAnswer(ctx context.Context, examID uuid.UUID, studentID int, ans model.StudentAnswer) error {
	if _, err := s.inProgressSubmission(ctx, examID, studentID); err != nil {
		return err
	}

	endTime, err := s.examSvc.EndTime(ctx, examID)
	if err != nil {
		return err
	}
	if time.Now().After(endTime.Add(s.grace)) {
		return ErrExamClosed
	}

	// Only accept answers for questions that are actually on the paper.
	known, err := s.rdb.HExists(ctx, config.CacheKey.ExamAnswerKey(examID.String()), ans.QuestionID.String()).Result()
	if err == nil && !known {
		return attempt.ErrUnknownQuestion
	}

	raw, err := json.Marshal(ans)
	if err != nil {
		return err
	}

	answersKey := config.CacheKey.StudentAnswersKey(examID.String(), studentID)
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, answersKey, ans.QuestionID.String(), raw)
	pipe.Expire(ctx, answersKey, time.Until(endTime.Add(cacheSlack)))
	if _, err := pipe.Exec(ctx); err != nil {
		// Redis down. Fall back to a direct database write so the answer is
		// not lost, at the cost of one synchronous query.
		s.log.Warn().Err(err).Msg("answer cache write failed, persisting directly")
		return s.submissions.UpsertAnswer(ctx, examID, studentID, ans)
	}

	job, err := json.Marshal(model.AnswerPersistJob{ExamID: examID, StudentID: studentID, Answer: ans})
	if err != nil {
		return err
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, job).Err(); err != nil {
		s.log.Warn().Err(err).Msg("answer persist enqueue failed, persisting directly")
		return s.submissions.UpsertAnswer(ctx, examID, studentID, ans)
	}
	return nil
}

// DraftAnswers retrieves the student's autosaved answers, preferring the
// Redis cache and falling back to Postgres.
func (s *TakingService) DraftAnswers(ctx context.Context, examID uuid.UUID, studentID int) ([]model.StudentAnswer, error) {
	fields, err := s.rdb.HGetAll(ctx, config.CacheKey.StudentAnswersKey(examID.String(), studentID)).Result()
	if err == nil && len(fields) > 0 {
		answers := make([]model.StudentAnswer, 0, len(fields))
		ok := true
		for _, raw := range fields {
			var a model.StudentAnswer
			if err := json.Unmarshal([]byte(raw), &a); err != nil {
				ok = false
				break
			}
			answers = append(answers, a)
		}
		if ok {
			return answers, nil
		}
	}
	return s.submissions.ListAnswers(ctx, examID, studentID)
}

// Submit flushes the attempt: answers passed in override drafts, the merged
// set is graded in memory against the cached answer key, the attempt is
// marked submitted, and score persistence is queued. Submits that arrive
// after the end time are accepted but flagged as auto-submitted.
func (s *TakingService) Submit(ctx context.Context, examID uuid.UUID, studentID int, answers []model.StudentAnswer) (*model.SubmitResult, error) {
	sub, err := s.inProgressSubmission(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	drafts, err := s.DraftAnswers(ctx, examID, studentID)
	if err != nil {
		s.log.Warn().Err(err).Msg("draft answers unavailable at submit, grading provided answers only")
		drafts = nil
	}
	merged := mergeAnswers(drafts, answers)

	endTime, err := s.examSvc.EndTime(ctx, examID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	autoSubmitted := now.After(endTime)

	// The status flip is the race arbiter: only one concurrent submit wins.
	if err := s.submissions.MarkSubmitted(ctx, sub.ID, now, autoSubmitted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadySubmitted
		}
		return nil, err
	}

	payload, err := s.examSvc.Payload(ctx, examID)
	if err != nil {
		return nil, err
	}
	key, err := s.examSvc.AnswerKey(ctx, examID)
	if err != nil {
		return nil, err
	}

	order := make([]uuid.UUID, len(payload.Questions))
	for i, q := range payload.Questions {
		order[i] = q.ID
	}
	outcome := GradeAttempt(order, key, merged)

	s.persistScore(ctx, model.ScorePersistJob{
		SubmissionID: sub.ID,
		ExamID:       examID,
		StudentID:    studentID,
		Score:        outcome.Score,
		Details:      outcome.Details,
	})

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Float64("score", outcome.Score).
		Bool("auto_submitted", autoSubmitted).
		Msg("attempt submitted")

	return &model.SubmitResult{
		Score:         outcome.Score,
		TotalPossible: outcome.TotalPossible,
		Passed:        outcome.Score >= payload.PassingScore,
		AutoSubmitted: autoSubmitted,
	}, nil
}

// Status reports the attempt state for a client that reloaded mid-exam.
func (s *TakingService) Status(ctx context.Context, examID uuid.UUID, studentID int) (*model.TakingStatus, error) {
	item, err := s.Info(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	status := &model.TakingStatus{
		ExamID:   examID,
		ExamName: item.Name,
	}

	sub, err := s.submissions.Get(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return status, nil
		}
		return nil, err
	}

	status.IsStarted = true
	status.StartedAt = &sub.StartedAt
	if sub.Status == model.SubmissionStatusSubmitted {
		status.IsSubmitted = true
		status.SubmittedAt = sub.SubmittedAt
		status.Score = sub.Score
		return status, nil
	}

	remaining := int(time.Until(item.EndTime) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	status.RemainingSeconds = &remaining

	drafts, err := s.DraftAnswers(ctx, examID, studentID)
	if err != nil {
		s.log.Warn().Err(err).Msg("draft answers unavailable for status")
	} else {
		status.DraftAnswers = drafts
	}
	return status, nil
}

// Result retrieves the student's graded outcome with the answer breakdown.
func (s *TakingService) Result(ctx context.Context, examID uuid.UUID, studentID int) (*model.SubmissionResult, error) {
	sub, err := s.submissions.Get(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotStarted
		}
		return nil, err
	}
	if sub.Status != model.SubmissionStatusSubmitted {
		return nil, ErrNotStarted
	}

	details, err := s.submissions.GetDetails(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	var total float64
	for _, d := range details {
		total += d.MaxScore
	}

	passed := false
	if sub.Score != nil {
		payload, err := s.examSvc.Payload(ctx, examID)
		if err == nil {
			passed = *sub.Score >= payload.PassingScore
		}
	}

	return &model.SubmissionResult{
		Submission:    *sub,
		Details:       details,
		TotalPossible: total,
		Passed:        passed,
	}, nil
}

// BackendFor binds the service to one student as an attempt.Backend, for use
// by the live exam stream.
func (s *TakingService) BackendFor(studentID int) attempt.Backend {
	return &studentBackend{svc: s, studentID: studentID}
}

func (s *TakingService) authorizeAttempt(ctx context.Context, examID uuid.UUID, studentID int) (*model.Examination, error) {
	enrolled, err := s.exams.IsEnrolled(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, ErrNotEnrolled
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	switch exam.Status {
	case model.ExamStatusPublished:
		return exam, nil
	case model.ExamStatusClosed:
		return nil, ErrExamClosed
	default:
		return nil, ErrExamNotPublished
	}
}

func (s *TakingService) inProgressSubmission(ctx context.Context, examID uuid.UUID, studentID int) (*model.Submission, error) {
	sub, err := s.submissions.Get(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotStarted
		}
		return nil, err
	}
	if sub.Status == model.SubmissionStatusSubmitted {
		return nil, ErrAlreadySubmitted
	}
	return sub, nil
}

// persistScore queues the graded attempt for batched persistence, falling
// back to a direct write when the queue is unreachable.
func (s *TakingService) persistScore(ctx context.Context, job model.ScorePersistJob) {
	raw, err := json.Marshal(job)
	if err == nil {
		err = s.rdb.RPush(ctx, config.WorkerKey.PersistScoresQueue, raw).Err()
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("score enqueue failed, persisting directly")
		if err := s.submissions.UpdateScore(ctx, job.SubmissionID, job.Score, job.Details); err != nil {
			s.log.Error().Err(err).
				Str("submission_id", job.SubmissionID.String()).
				Msg("direct score persistence failed")
		}
	}
}

// mergeAnswers overlays submitted answers onto drafts; the submit payload
// wins per question.
func mergeAnswers(drafts, submitted []model.StudentAnswer) []model.StudentAnswer {
	merged := make(map[uuid.UUID]model.StudentAnswer, len(drafts)+len(submitted))
	for _, a := range drafts {
		merged[a.QuestionID] = a
	}
	for _, a := range submitted {
		merged[a.QuestionID] = a
	}

	out := make([]model.StudentAnswer, 0, len(merged))
	for _, a := range merged {
		out = append(out, a)
	}
	return out
}

// studentBackend adapts TakingService to the attempt.Backend interface for a
// single student.
type studentBackend struct {
	svc       *TakingService
	studentID int
}

func (b *studentBackend) StartAttempt(ctx context.Context, examID uuid.UUID) (*model.StartResult, error) {
	return b.svc.Start(ctx, examID, b.studentID)
}

func (b *studentBackend) SaveAnswer(ctx context.Context, examID uuid.UUID, ans model.StudentAnswer) error {
	return b.svc.SaveAnswer(ctx, examID, b.studentID, ans)
}

func (b *studentBackend) SubmitAttempt(ctx context.Context, examID, submissionID uuid.UUID, answers []model.StudentAnswer) (*model.SubmitResult, error) {
	return b.svc.Submit(ctx, examID, b.studentID, answers)
}
