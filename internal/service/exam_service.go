package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/examly/examly-backend/internal/config"
	"github.com/examly/examly-backend/internal/model"
	"github.com/examly/examly-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// cacheSlack keeps exam caches alive past the end time so late submits and
// the deadline sweeper can still grade from Redis.
const cacheSlack = 24 * time.Hour

// ExamService handles examination lifecycle, enrollment and the Redis caches
// that serve exam taking.
type ExamService struct {
	exams       *repository.ExamRepository
	papers      *repository.TestPaperRepository
	submissions *repository.SubmissionRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	exams *repository.ExamRepository,
	papers *repository.TestPaperRepository,
	submissions *repository.SubmissionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		exams:       exams,
		papers:      papers,
		submissions: submissions,
		rdb:         rdb,
		log:         log.With().Str("component", "exam_service").Logger(),
	}
}

// Create schedules a new draft examination on one of the teacher's papers.
func (s *ExamService) Create(ctx context.Context, authorID int, req *model.ExaminationRequest) (*model.Examination, error) {
	paper, err := s.papers.GetByID(ctx, req.PaperID)
	if err != nil {
		return nil, err
	}
	if paper.AuthorID != authorID {
		return nil, ErrForbidden
	}

	exam := &model.Examination{
		Name:      req.Name,
		PaperID:   paper.ID,
		SubjectID: paper.SubjectID,
		AuthorID:  authorID,
		StartTime: *req.StartTime,
		EndTime:   *req.EndTime,
		Status:    model.ExamStatusDraft,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, err
	}
	return exam, nil
}

// Get retrieves one of the teacher's examinations.
func (s *ExamService) Get(ctx context.Context, authorID int, examID uuid.UUID) (*model.Examination, error) {
	return s.ownedExam(ctx, authorID, examID)
}

// List retrieves the teacher's examinations.
func (s *ExamService) List(ctx context.Context, authorID, limit, offset int) ([]model.Examination, int64, error) {
	return s.exams.ListByAuthor(ctx, authorID, limit, offset)
}

// Update reschedules a draft examination.
func (s *ExamService) Update(ctx context.Context, authorID int, examID uuid.UUID, req *model.ExaminationRequest) (*model.Examination, error) {
	exam, err := s.ownedExam(ctx, authorID, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}

	paper, err := s.papers.GetByID(ctx, req.PaperID)
	if err != nil {
		return nil, err
	}
	if paper.AuthorID != authorID {
		return nil, ErrForbidden
	}

	exam.Name = req.Name
	exam.PaperID = paper.ID
	exam.SubjectID = paper.SubjectID
	exam.StartTime = *req.StartTime
	exam.EndTime = *req.EndTime
	if err := s.exams.Update(ctx, exam); err != nil {
		return nil, err
	}
	return exam, nil
}

// Delete removes an examination that was never published.
func (s *ExamService) Delete(ctx context.Context, authorID int, examID uuid.UUID) error {
	exam, err := s.ownedExam(ctx, authorID, examID)
	if err != nil {
		return err
	}
	if exam.Status == model.ExamStatusPublished {
		return ErrExamNotDraft
	}
	return s.exams.Delete(ctx, examID)
}

// Publish moves a draft examination to published and warms the Redis caches
// so exam taking never has to assemble the paper from Postgres on the hot
// path.
func (s *ExamService) Publish(ctx context.Context, authorID int, examID uuid.UUID) (*model.Examination, error) {
	exam, err := s.ownedExam(ctx, authorID, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}

	if err := s.WarmCaches(ctx, exam); err != nil {
		return nil, err
	}
	if err := s.exams.UpdateStatus(ctx, examID, model.ExamStatusPublished); err != nil {
		return nil, err
	}
	exam.Status = model.ExamStatusPublished

	s.log.Info().Str("exam_id", examID.String()).Msg("examination published")
	return exam, nil
}

// Close ends a published examination early.
func (s *ExamService) Close(ctx context.Context, authorID int, examID uuid.UUID) (*model.Examination, error) {
	exam, err := s.ownedExam(ctx, authorID, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotPublished
	}

	if err := s.exams.UpdateStatus(ctx, examID, model.ExamStatusClosed); err != nil {
		return nil, err
	}
	exam.Status = model.ExamStatusClosed

	// Stop serving the paper. The answer key and end time stay cached so the
	// deadline sweeper can still grade unfinished attempts.
	if err := s.rdb.Del(ctx, config.CacheKey.ExamPayloadKey(examID.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("failed to drop exam payload cache")
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("examination closed")
	return exam, nil
}

// Enroll adds students to an examination.
func (s *ExamService) Enroll(ctx context.Context, authorID int, examID uuid.UUID, studentIDs []int) error {
	if _, err := s.ownedExam(ctx, authorID, examID); err != nil {
		return err
	}
	return s.exams.Enroll(ctx, examID, studentIDs)
}

// Unenroll removes a student from an examination.
func (s *ExamService) Unenroll(ctx context.Context, authorID int, examID uuid.UUID, studentID int) error {
	if _, err := s.ownedExam(ctx, authorID, examID); err != nil {
		return err
	}
	return s.exams.Unenroll(ctx, examID, studentID)
}

// EnrolledStudents retrieves the students enrolled in an examination.
func (s *ExamService) EnrolledStudents(ctx context.Context, authorID int, examID uuid.UUID) ([]model.User, error) {
	if _, err := s.ownedExam(ctx, authorID, examID); err != nil {
		return nil, err
	}
	return s.exams.ListEnrolledStudents(ctx, examID)
}

// Results retrieves the per-student outcome of an examination.
func (s *ExamService) Results(ctx context.Context, authorID int, examID uuid.UUID, limit, offset int) ([]model.ExamResultRow, int64, error) {
	if _, err := s.ownedExam(ctx, authorID, examID); err != nil {
		return nil, 0, err
	}
	return s.submissions.ListResults(ctx, examID, limit, offset)
}

// PrewarmAllCaches rebuilds the Redis caches for every published examination.
// Called once at startup before the server accepts traffic, so a Redis wipe
// never leaves exam taking stuck on cache misses.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.exams.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published examinations: %w", err)
	}

	for i := range exams {
		if err := s.WarmCaches(ctx, &exams[i]); err != nil {
			return fmt.Errorf("warm exam %s: %w", exams[i].ID, err)
		}
	}

	s.log.Info().Int("count", len(exams)).Msg("exam caches prewarmed")
	return nil
}

// WarmCaches builds and stores the student payload, the answer key hash and
// the authoritative end time for one examination.
func (s *ExamService) WarmCaches(ctx context.Context, exam *model.Examination) error {
	payload, key, err := s.buildPayload(ctx, exam)
	if err != nil {
		return err
	}
	if len(payload.Questions) == 0 {
		return ErrNoQuestions
	}

	ttl := time.Until(exam.EndTime.Add(cacheSlack))
	if ttl <= 0 {
		ttl = cacheSlack
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	examID := exam.ID.String()
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamPayloadKey(examID), raw, ttl)
	pipe.Set(ctx, config.CacheKey.ExamEndTimeKey(examID), exam.EndTime.UTC().Format(time.RFC3339), ttl)

	keyName := config.CacheKey.ExamAnswerKey(examID)
	pipe.Del(ctx, keyName)
	for qid, entry := range key {
		entryRaw, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, keyName, qid.String(), entryRaw)
	}
	pipe.Expire(ctx, keyName, ttl)

	_, err = pipe.Exec(ctx)
	return err
}

// Payload retrieves an examination's student paper from Redis, falling back
// to Postgres and healing the cache on a miss.
func (s *ExamService) Payload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(examID.String())).Bytes()
	if err == nil {
		payload := &model.ExamPayload{}
		if err := json.Unmarshal(raw, payload); err == nil {
			return payload, nil
		}
		s.log.Warn().Str("exam_id", examID.String()).Msg("corrupt exam payload cache, rebuilding")
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotPublished
	}

	if err := s.WarmCaches(ctx, exam); err != nil {
		return nil, err
	}
	payload, _, err := s.buildPayload(ctx, exam)
	return payload, err
}

// AnswerKey retrieves an examination's grading key from Redis, falling back
// to Postgres and healing the cache on a miss.
func (s *ExamService) AnswerKey(ctx context.Context, examID uuid.UUID) (map[uuid.UUID]model.AnswerKeyEntry, error) {
	fields, err := s.rdb.HGetAll(ctx, config.CacheKey.ExamAnswerKey(examID.String())).Result()
	if err == nil && len(fields) > 0 {
		key := make(map[uuid.UUID]model.AnswerKeyEntry, len(fields))
		ok := true
		for field, raw := range fields {
			qid, err := uuid.Parse(field)
			if err != nil {
				ok = false
				break
			}
			var entry model.AnswerKeyEntry
			if err := json.Unmarshal([]byte(raw), &entry); err != nil {
				ok = false
				break
			}
			key[qid] = entry
		}
		if ok {
			return key, nil
		}
		s.log.Warn().Str("exam_id", examID.String()).Msg("corrupt answer key cache, rebuilding")
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.WarmCaches(ctx, exam); err != nil {
		return nil, err
	}
	_, key, err := s.buildPayload(ctx, exam)
	return key, err
}

// EndTime retrieves an examination's authoritative end time from Redis,
// falling back to Postgres on a miss.
func (s *ExamService) EndTime(ctx context.Context, examID uuid.UUID) (time.Time, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.ExamEndTimeKey(examID.String())).Result()
	if err == nil {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return time.Time{}, err
	}
	return exam.EndTime, nil
}

func (s *ExamService) ownedExam(ctx context.Context, authorID int, examID uuid.UUID) (*model.Examination, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.AuthorID != authorID {
		return nil, ErrForbidden
	}
	return exam, nil
}

func (s *ExamService) buildPayload(ctx context.Context, exam *model.Examination) (*model.ExamPayload, map[uuid.UUID]model.AnswerKeyEntry, error) {
	paper, err := s.papers.GetByID(ctx, exam.PaperID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.papers.ListQuestions(ctx, exam.PaperID)
	if err != nil {
		return nil, nil, err
	}

	payload := &model.ExamPayload{
		ExamID:       exam.ID,
		ExamName:     exam.Name,
		StartTime:    exam.StartTime,
		EndTime:      exam.EndTime,
		PassingScore: paper.PassingScore,
		Questions:    make([]model.QuestionForStudent, 0, len(entries)),
	}
	key := make(map[uuid.UUID]model.AnswerKeyEntry, len(entries))

	for _, e := range entries {
		q := model.QuestionForStudent{
			ID:       e.Question.ID,
			Type:     e.Question.Type,
			Prompt:   e.Question.Prompt,
			Score:    e.Score,
			Position: e.Position,
		}
		entry := model.AnswerKeyEntry{Type: e.Question.Type, Score: e.Score}
		for _, opt := range e.Question.Options {
			q.Options = append(q.Options, model.OptionForStudent{ID: opt.ID, Text: opt.Text})
			if opt.IsCorrect {
				entry.CorrectOptionIDs = append(entry.CorrectOptionIDs, opt.ID)
			}
		}
		payload.Questions = append(payload.Questions, q)
		key[e.Question.ID] = entry
	}
	return payload, key, nil
}
