// Package attempt implements the lifecycle of a single exam attempt: countdown,
// per-question answer cache, navigation, and the submission handshake with the
// backend. The rest of the codebase mutates attempt state only through this
// package, so the forward-only lifecycle invariants live in one place.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/examly/examly-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State enumerates the attempt lifecycle. Transitions are forward-only:
// NotStarted → Active → {Submitting → Submitted} | Expired. Expired is
// transient and immediately forces Submitting.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateActive     State = "ACTIVE"
	StateSubmitting State = "SUBMITTING"
	StateSubmitted  State = "SUBMITTED"
	StateExpired    State = "EXPIRED"
)

// Domain errors surfaced by Session operations.
var (
	ErrNoQuestions      = errors.New("attempt has no questions")
	ErrAlreadyStarted   = errors.New("attempt already started")
	ErrNotActive        = errors.New("attempt is not active")
	ErrUnknownQuestion  = errors.New("question does not belong to this attempt")
	ErrIndexOutOfRange  = errors.New("question index out of range")
	ErrSubmitFailed     = errors.New("forced submit failed after retries")
	ErrSubmitInProgress = errors.New("submit already in progress")
)

const (
	// forcedSubmitAttempts bounds the automatic retries of an expiry-forced
	// submit. The student has no manual retry path once time is at zero.
	forcedSubmitAttempts = 3
	forcedSubmitBackoff  = 2 * time.Second
)

// Question is the attempt-side view of one paper question. Option contents and
// prompts stay in the exam payload; the session only needs identity and kind.
type Question struct {
	ID    uuid.UUID
	Type  model.QuestionType
	Score float64
}

// QuestionsFromPayload converts a cached exam payload into session questions,
// preserving order.
func QuestionsFromPayload(qs []model.QuestionForStudent) []Question {
	out := make([]Question, len(qs))
	for i, q := range qs {
		out[i] = Question{ID: q.ID, Type: q.Type, Score: q.Score}
	}
	return out
}

// Backend is the server side of the attempt: session start, best-effort answer
// persistence, and the final submission flush. Implementations are expected to
// treat SaveAnswer as a last-write-wins upsert keyed by question id.
type Backend interface {
	StartAttempt(ctx context.Context, examID uuid.UUID) (*model.StartResult, error)
	SaveAnswer(ctx context.Context, examID uuid.UUID, ans model.StudentAnswer) error
	SubmitAttempt(ctx context.Context, examID, submissionID uuid.UUID, answers []model.StudentAnswer) (*model.SubmitResult, error)
}

// Summary is the read-only precondition check returned by RequestSubmit for
// confirmation-dialog display. It never mutates the session.
type Summary struct {
	Unanswered []uuid.UUID `json:"unanswered"`
	Answered   int         `json:"answered"`
	Total      int         `json:"total"`
}

// Session owns one student's attempt at one examination.
//
// A single mutex guards answers and lifecycle: the runner's tick-driven
// auto-submit and a client-driven submit would otherwise race. Backend calls
// are always made outside the lock.
type Session struct {
	mu sync.Mutex

	examID       uuid.UUID
	submissionID uuid.UUID
	questions    []Question
	index        map[uuid.UUID]int

	answers map[uuid.UUID]model.StudentAnswer
	// saveSeq carries a monotone per-question sequence so a slow, stale save
	// acknowledgement can be told apart from the latest one.
	saveSeq map[uuid.UUID]uint64

	current   int
	remaining int
	state     State
	starting  bool

	// forcedErr holds the terminal error of an exhausted expiry-forced submit.
	forcedErr error
	result    *model.SubmitResult

	backend Backend
	log     zerolog.Logger

	now func() time.Time
	// retryBackoff is forcedSubmitBackoff unless shortened by tests.
	retryBackoff time.Duration
}

// NewSession builds a NotStarted session over an ordered question list.
func NewSession(examID uuid.UUID, questions []Question, backend Backend, log zerolog.Logger) (*Session, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	index := make(map[uuid.UUID]int, len(questions))
	for i, q := range questions {
		index[q.ID] = i
	}

	return &Session{
		examID:       examID,
		questions:    questions,
		index:        index,
		answers:      make(map[uuid.UUID]model.StudentAnswer, len(questions)),
		saveSeq:      make(map[uuid.UUID]uint64, len(questions)),
		state:        StateNotStarted,
		backend:      backend,
		log:          log.With().Str("component", "attempt").Str("exam_id", examID.String()).Logger(),
		now:          time.Now,
		retryBackoff: forcedSubmitBackoff,
	}, nil
}

// Start begins the attempt: creates the submission record server-side and
// derives the countdown from the authoritative end time. On failure the
// session stays NotStarted and cannot proceed.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateNotStarted || s.starting {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.starting = true
	s.mu.Unlock()

	res, err := s.backend.StartAttempt(ctx, s.examID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false

	if err != nil {
		return fmt.Errorf("start attempt: %w", err)
	}

	s.submissionID = res.SubmissionID
	s.remaining = int(res.EndTime.Sub(s.now()) / time.Second)
	if s.remaining < 0 {
		s.remaining = 0
	}
	s.state = StateActive

	s.log.Info().
		Str("submission_id", res.SubmissionID.String()).
		Int("remaining_seconds", s.remaining).
		Msg("Attempt started")
	return nil
}

// Tick advances the countdown by one second. It reports true when the deadline
// was hit, in which case the expiry-forced submit has already run to completion
// (success or terminal failure) by the time Tick returns. Ticks outside the
// Active state are ignored, so a stray tick can never force a second submit.
func (s *Session) Tick(ctx context.Context) bool {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return false
	}

	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining > 0 {
		s.mu.Unlock()
		return false
	}

	// Deadline reached. The countdown is advisory, but the student must not
	// keep answering past it: force submission with whatever is cached.
	s.state = StateExpired
	answers := s.snapshotLocked()
	submissionID := s.submissionID
	s.mu.Unlock()

	s.log.Info().Msg("Countdown expired, forcing submit")
	s.submitForced(ctx, submissionID, answers)
	return true
}

// SetAnswer overwrites the cached answer for one question and dispatches it to
// the backend as a detached, best-effort save. A failed save never rolls back
// the in-memory value and never blocks navigation.
func (s *Session) SetAnswer(ans model.StudentAnswer) error {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return ErrNotActive
	}

	pos, ok := s.index[ans.QuestionID]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownQuestion
	}

	// Keep the tagged union clean: a choice question carries option ids only,
	// a free-text question carries text only.
	if s.questions[pos].Type.Choice() {
		ans.Text = ""
	} else {
		ans.SelectedOptionIDs = nil
	}

	s.answers[ans.QuestionID] = ans
	s.saveSeq[ans.QuestionID]++
	seq := s.saveSeq[ans.QuestionID]
	s.mu.Unlock()

	go s.dispatchSave(seq, ans)
	return nil
}

// dispatchSave runs one fire-and-forget persistence call. The context is
// detached on purpose: navigating away must not cancel in-flight saves.
func (s *Session) dispatchSave(seq uint64, ans model.StudentAnswer) {
	err := s.backend.SaveAnswer(context.Background(), s.examID, ans)

	s.mu.Lock()
	stale := s.saveSeq[ans.QuestionID] != seq
	s.mu.Unlock()

	if err == nil {
		if stale {
			s.log.Debug().Str("question_id", ans.QuestionID.String()).Msg("Stale save ack discarded")
		}
		return
	}
	if stale {
		// A newer save for this question is already in flight; nothing to do.
		s.log.Debug().Err(err).Str("question_id", ans.QuestionID.String()).Msg("Superseded save failed")
		return
	}
	// Swallowed: the in-memory answer is retained and flushed at submit time.
	s.log.Warn().Err(err).Str("question_id", ans.QuestionID.String()).Msg("Autosave failed")
}

// Restore seeds previously autosaved answers into an Active session without
// re-dispatching saves. Used when a student reconnects mid-attempt.
func (s *Session) Restore(answers []model.StudentAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return ErrNotActive
	}
	for _, ans := range answers {
		if _, ok := s.index[ans.QuestionID]; !ok {
			continue
		}
		s.answers[ans.QuestionID] = ans
	}
	return nil
}

// GoTo jumps to any question by index. Pure navigation; answers are untouched.
func (s *Session) GoTo(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return ErrNotActive
	}
	if i < 0 || i >= len(s.questions) {
		return ErrIndexOutOfRange
	}
	s.current = i
	return nil
}

// Next steps forward one question; a no-op at the last question.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return ErrNotActive
	}
	if s.current < len(s.questions)-1 {
		s.current++
	}
	return nil
}

// Previous steps back one question; a no-op at the first question.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return ErrNotActive
	}
	if s.current > 0 {
		s.current--
	}
	return nil
}

// RequestSubmit computes the unanswered set for confirmation display. An
// answer that is present but empty (blank text, no selected options) counts
// as unanswered. State and backend are untouched.
func (s *Session) RequestSubmit() (*Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return nil, ErrNotActive
	}

	sum := &Summary{Total: len(s.questions)}
	for _, q := range s.questions {
		ans, ok := s.answers[q.ID]
		if !ok || ans.Empty() {
			sum.Unanswered = append(sum.Unanswered, q.ID)
			continue
		}
		sum.Answered++
	}
	return sum, nil
}

// Submit flushes the full answer set to the backend. On failure the session
// reverts to Active with answers untouched, so the caller can retry without
// losing anything.
func (s *Session) Submit(ctx context.Context) (*model.SubmitResult, error) {
	s.mu.Lock()
	switch s.state {
	case StateActive:
	case StateSubmitting:
		s.mu.Unlock()
		return nil, ErrSubmitInProgress
	default:
		s.mu.Unlock()
		return nil, ErrNotActive
	}

	s.state = StateSubmitting
	answers := s.snapshotLocked()
	submissionID := s.submissionID
	s.mu.Unlock()

	res, err := s.backend.SubmitAttempt(ctx, s.examID, submissionID, answers)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateActive
		return nil, fmt.Errorf("submit attempt: %w", err)
	}

	s.state = StateSubmitted
	s.result = res
	s.log.Info().Str("submission_id", submissionID.String()).Msg("Attempt submitted")
	return res, nil
}

// submitForced runs the expiry path: Expired transitions to Submitting, then a
// bounded retry loop that never reverts to Active. After exhaustion the session
// stays Submitting with a terminal error.
func (s *Session) submitForced(ctx context.Context, submissionID uuid.UUID, answers []model.StudentAnswer) {
	s.mu.Lock()
	s.state = StateSubmitting
	s.mu.Unlock()

	var lastErr error
	for i := 0; i < forcedSubmitAttempts; i++ {
		if i > 0 {
			time.Sleep(s.retryBackoff)
		}

		res, err := s.backend.SubmitAttempt(ctx, s.examID, submissionID, answers)
		if err == nil {
			s.mu.Lock()
			s.state = StateSubmitted
			s.result = res
			s.mu.Unlock()
			s.log.Info().Str("submission_id", submissionID.String()).Msg("Forced submit succeeded")
			return
		}

		lastErr = err
		s.log.Warn().Err(err).Int("try", i+1).Msg("Forced submit failed")
	}

	s.mu.Lock()
	s.forcedErr = fmt.Errorf("%w: %v", ErrSubmitFailed, lastErr)
	s.mu.Unlock()
	s.log.Error().Err(lastErr).Msg("Forced submit exhausted retries")
}

// snapshotLocked copies the answer map into question order. Callers hold s.mu.
func (s *Session) snapshotLocked() []model.StudentAnswer {
	out := make([]model.StudentAnswer, 0, len(s.answers))
	for _, q := range s.questions {
		if ans, ok := s.answers[q.ID]; ok {
			out = append(out, ans)
		}
	}
	return out
}

// ─── Accessors ──────────────────────────────────────────────────────

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RemainingSeconds returns the advisory countdown value.
func (s *Session) RemainingSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// CurrentIndex returns the navigation position.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SubmissionID returns the server-assigned submission id (zero before Start).
func (s *Session) SubmissionID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissionID
}

// Answer returns the cached answer for a question, if any.
func (s *Session) Answer(questionID uuid.UUID) (model.StudentAnswer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ans, ok := s.answers[questionID]
	return ans, ok
}

// Result returns the grading result once the attempt is Submitted.
func (s *Session) Result() *model.SubmitResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// ForcedSubmitErr returns the terminal error of an exhausted forced submit,
// or nil. The caller surfaces it as "could not submit, contact instructor".
func (s *Session) ForcedSubmitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forcedErr
}
