package attempt

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/examly/examly-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// fakeBackend records calls and fails on demand.
type fakeBackend struct {
	mu sync.Mutex

	startErr    error
	saveErr     error
	submitErrs  []error // consumed one per SubmitAttempt call; nil entry = success
	endTime     time.Time
	submissions [][]model.StudentAnswer
	saves       []model.StudentAnswer
	startCalls  int
	submitCalls int
	saveDone    chan struct{}
}

func newFakeBackend(endTime time.Time) *fakeBackend {
	return &fakeBackend{
		endTime:  endTime,
		saveDone: make(chan struct{}, 64),
	}
}

func (f *fakeBackend) StartAttempt(_ context.Context, _ uuid.UUID) (*model.StartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &model.StartResult{SubmissionID: uuid.New(), EndTime: f.endTime}, nil
}

func (f *fakeBackend) SaveAnswer(_ context.Context, _ uuid.UUID, ans model.StudentAnswer) error {
	f.mu.Lock()
	f.saves = append(f.saves, ans)
	err := f.saveErr
	f.mu.Unlock()
	f.saveDone <- struct{}{}
	return err
}

func (f *fakeBackend) SubmitAttempt(_ context.Context, _, _ uuid.UUID, answers []model.StudentAnswer) (*model.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	f.submissions = append(f.submissions, answers)
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &model.SubmitResult{Score: 80, TotalPossible: 100, Passed: true}, nil
}

func (f *fakeBackend) submitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls
}

func waitSaves(t *testing.T, f *fakeBackend, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.saveDone:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for save %d of %d", i+1, n)
		}
	}
}

var (
	q1 = uuid.New()
	q2 = uuid.New()
	q3 = uuid.New()

	opt11 = uuid.New()
	opt12 = uuid.New()
	opt21 = uuid.New()
	opt22 = uuid.New()
)

func threeQuestions() []Question {
	return []Question{
		{ID: q1, Type: model.QuestionTypeSingleChoice, Score: 30},
		{ID: q2, Type: model.QuestionTypeSingleChoice, Score: 30},
		{ID: q3, Type: model.QuestionTypeFillIn, Score: 40},
	}
}

func startedSession(t *testing.T, remaining int) (*Session, *fakeBackend) {
	t.Helper()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	fb := newFakeBackend(now.Add(time.Duration(remaining) * time.Second))

	s, err := NewSession(uuid.New(), threeQuestions(), fb, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	s.now = func() time.Time { return now }
	s.retryBackoff = time.Millisecond

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s, fb
}

func TestNewSessionRequiresQuestions(t *testing.T) {
	_, err := NewSession(uuid.New(), nil, newFakeBackend(time.Now()), zerolog.Nop())
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestStartComputesCountdownFromEndTime(t *testing.T) {
	s, _ := startedSession(t, 90)

	if got := s.State(); got != StateActive {
		t.Fatalf("state = %s, want %s", got, StateActive)
	}
	if got := s.RemainingSeconds(); got != 90 {
		t.Fatalf("remaining = %d, want 90", got)
	}
}

func TestStartClampsPastEndTimeToZero(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	fb := newFakeBackend(now.Add(-time.Minute))

	s, err := NewSession(uuid.New(), threeQuestions(), fb, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	s.now = func() time.Time { return now }

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.RemainingSeconds(); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
}

func TestStartFailureLeavesSessionUnstarted(t *testing.T) {
	fb := newFakeBackend(time.Now())
	fb.startErr = errors.New("exam closed")

	s, err := NewSession(uuid.New(), threeQuestions(), fb, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if got := s.State(); got != StateNotStarted {
		t.Fatalf("state = %s, want %s", got, StateNotStarted)
	}
	// A second start is allowed after a failure cleared the starting flag.
	fb.startErr = nil
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
}

func TestStartTwiceRejected(t *testing.T) {
	s, _ := startedSession(t, 60)
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestSetAnswerLastWriteWins(t *testing.T) {
	s, fb := startedSession(t, 60)

	first := model.StudentAnswer{QuestionID: q1, SelectedOptionIDs: []uuid.UUID{opt11}}
	second := model.StudentAnswer{QuestionID: q1, SelectedOptionIDs: []uuid.UUID{opt12}}

	if err := s.SetAnswer(first); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	if err := s.SetAnswer(second); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}

	got, ok := s.Answer(q1)
	if !ok {
		t.Fatal("answer missing")
	}
	if !reflect.DeepEqual(got.SelectedOptionIDs, []uuid.UUID{opt12}) {
		t.Fatalf("answer = %v, want latest write", got.SelectedOptionIDs)
	}

	waitSaves(t, fb, 2)
}

func TestSetAnswerSurvivesSaveFailure(t *testing.T) {
	s, fb := startedSession(t, 60)
	fb.saveErr = errors.New("network down")

	ans := model.StudentAnswer{QuestionID: q3, Text: "kept in memory"}
	if err := s.SetAnswer(ans); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	waitSaves(t, fb, 1)

	got, ok := s.Answer(q3)
	if !ok || got.Text != "kept in memory" {
		t.Fatalf("answer = %+v, want retained despite save failure", got)
	}
	if s.State() != StateActive {
		t.Fatal("save failure must not change lifecycle state")
	}
}

func TestSetAnswerNormalizesTaggedUnion(t *testing.T) {
	s, fb := startedSession(t, 60)

	// Choice question: stray text is dropped.
	if err := s.SetAnswer(model.StudentAnswer{QuestionID: q1, Text: "junk", SelectedOptionIDs: []uuid.UUID{opt11}}); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	got, _ := s.Answer(q1)
	if got.Text != "" || len(got.SelectedOptionIDs) != 1 {
		t.Fatalf("choice answer not normalized: %+v", got)
	}

	// Free-text question: stray options are dropped.
	if err := s.SetAnswer(model.StudentAnswer{QuestionID: q3, Text: "essay", SelectedOptionIDs: []uuid.UUID{opt11}}); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	got, _ = s.Answer(q3)
	if got.Text != "essay" || got.SelectedOptionIDs != nil {
		t.Fatalf("text answer not normalized: %+v", got)
	}

	waitSaves(t, fb, 2)
}

func TestSetAnswerUnknownQuestion(t *testing.T) {
	s, _ := startedSession(t, 60)
	err := s.SetAnswer(model.StudentAnswer{QuestionID: uuid.New(), Text: "x"})
	if !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("expected ErrUnknownQuestion, got %v", err)
	}
}

func TestNavigationNeverTouchesAnswers(t *testing.T) {
	s, fb := startedSession(t, 60)

	ans := model.StudentAnswer{QuestionID: q1, SelectedOptionIDs: []uuid.UUID{opt11}}
	if err := s.SetAnswer(ans); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}

	if err := s.GoTo(2); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if err := s.GoTo(1); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if err := s.GoTo(0); err != nil {
		t.Fatalf("GoTo: %v", err)
	}

	if got := s.CurrentIndex(); got != 0 {
		t.Fatalf("current = %d, want 0", got)
	}
	got, ok := s.Answer(q1)
	if !ok || !reflect.DeepEqual(got.SelectedOptionIDs, []uuid.UUID{opt11}) {
		t.Fatalf("answer changed by navigation: %+v", got)
	}

	waitSaves(t, fb, 1)
}

func TestGoToOutOfRange(t *testing.T) {
	s, _ := startedSession(t, 60)
	if err := s.GoTo(3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if err := s.GoTo(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestNextPreviousBoundariesAreNoOps(t *testing.T) {
	s, _ := startedSession(t, 60)

	if err := s.Previous(); err != nil {
		t.Fatalf("Previous at first question: %v", err)
	}
	if got := s.CurrentIndex(); got != 0 {
		t.Fatalf("current = %d, want 0", got)
	}

	if err := s.GoTo(2); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if err := s.Next(); err != nil {
		t.Fatalf("Next at last question: %v", err)
	}
	if got := s.CurrentIndex(); got != 2 {
		t.Fatalf("current = %d, want 2", got)
	}
}

func TestRequestSubmitCountsEmptyAnswersAsUnanswered(t *testing.T) {
	s, fb := startedSession(t, 60)

	mustSet := func(ans model.StudentAnswer) {
		t.Helper()
		if err := s.SetAnswer(ans); err != nil {
			t.Fatalf("SetAnswer: %v", err)
		}
	}
	mustSet(model.StudentAnswer{QuestionID: q1, SelectedOptionIDs: []uuid.UUID{opt11}})
	mustSet(model.StudentAnswer{QuestionID: q2, SelectedOptionIDs: []uuid.UUID{opt21}})
	mustSet(model.StudentAnswer{QuestionID: q3, Text: ""}) // present but empty

	sum, err := s.RequestSubmit()
	if err != nil {
		t.Fatalf("RequestSubmit: %v", err)
	}
	if sum.Total != 3 || sum.Answered != 2 {
		t.Fatalf("summary = %+v, want 2/3 answered", sum)
	}
	if len(sum.Unanswered) != 1 || sum.Unanswered[0] != q3 {
		t.Fatalf("unanswered = %v, want [%s]", sum.Unanswered, q3)
	}
	if got := s.State(); got != StateActive {
		t.Fatalf("RequestSubmit mutated state to %s", got)
	}

	waitSaves(t, fb, 3)
}

func TestTickForcesExactlyOneSubmit(t *testing.T) {
	s, fb := startedSession(t, 2)
	ctx := context.Background()

	if expired := s.Tick(ctx); expired {
		t.Fatal("expired one second early")
	}
	if expired := s.Tick(ctx); !expired {
		t.Fatal("expected expiry on second tick")
	}
	if got := s.State(); got != StateSubmitted {
		t.Fatalf("state = %s, want %s after forced submit", got, StateSubmitted)
	}

	// Stray ticks after expiry must not force a second submission.
	for i := 0; i < 5; i++ {
		if expired := s.Tick(ctx); expired {
			t.Fatal("stray tick re-fired expiry")
		}
	}
	if got := fb.submitted(); got != 1 {
		t.Fatalf("submit calls = %d, want exactly 1", got)
	}
}

func TestTickIgnoredOutsideActive(t *testing.T) {
	fb := newFakeBackend(time.Now().Add(time.Minute))
	s, err := NewSession(uuid.New(), threeQuestions(), fb, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if expired := s.Tick(context.Background()); expired {
		t.Fatal("tick before start must be ignored")
	}
	if got := fb.submitted(); got != 0 {
		t.Fatalf("submit calls = %d, want 0", got)
	}
}

func TestForcedSubmitRetriesThenSucceeds(t *testing.T) {
	s, fb := startedSession(t, 1)
	fb.mu.Lock()
	fb.submitErrs = []error{errors.New("transient"), errors.New("transient"), nil}
	fb.mu.Unlock()

	if expired := s.Tick(context.Background()); !expired {
		t.Fatal("expected expiry")
	}
	if got := s.State(); got != StateSubmitted {
		t.Fatalf("state = %s, want %s", got, StateSubmitted)
	}
	if got := fb.submitted(); got != 3 {
		t.Fatalf("submit calls = %d, want 3", got)
	}
	if err := s.ForcedSubmitErr(); err != nil {
		t.Fatalf("unexpected terminal error: %v", err)
	}
}

func TestForcedSubmitExhaustsRetries(t *testing.T) {
	s, fb := startedSession(t, 1)
	fail := errors.New("exam closed")
	fb.mu.Lock()
	fb.submitErrs = []error{fail, fail, fail}
	fb.mu.Unlock()

	if expired := s.Tick(context.Background()); !expired {
		t.Fatal("expected expiry")
	}
	if got := s.State(); got != StateSubmitting {
		t.Fatalf("state = %s, want stuck %s", got, StateSubmitting)
	}
	if err := s.ForcedSubmitErr(); !errors.Is(err, ErrSubmitFailed) {
		t.Fatalf("expected ErrSubmitFailed, got %v", err)
	}
	if got := fb.submitted(); got != 3 {
		t.Fatalf("submit calls = %d, want 3", got)
	}
}

func TestFailedManualSubmitRevertsToActiveWithAnswersIntact(t *testing.T) {
	s, fb := startedSession(t, 60)

	want := model.StudentAnswer{QuestionID: q1, SelectedOptionIDs: []uuid.UUID{opt11}}
	if err := s.SetAnswer(want); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	waitSaves(t, fb, 1)

	fb.mu.Lock()
	fb.submitErrs = []error{errors.New("boom")}
	fb.mu.Unlock()

	if _, err := s.Submit(context.Background()); err == nil {
		t.Fatal("expected submit error")
	}
	if got := s.State(); got != StateActive {
		t.Fatalf("state = %s, want %s after failed submit", got, StateActive)
	}
	got, ok := s.Answer(q1)
	if !ok || !reflect.DeepEqual(got, want) {
		t.Fatalf("answers changed by failed submit: %+v", got)
	}

	// Retry succeeds without losing the cached answers.
	res, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if res == nil || s.State() != StateSubmitted {
		t.Fatalf("retry did not settle the attempt: state=%s", s.State())
	}

	fb.mu.Lock()
	flushed := fb.submissions[len(fb.submissions)-1]
	fb.mu.Unlock()
	if len(flushed) != 1 || !reflect.DeepEqual(flushed[0], want) {
		t.Fatalf("flushed answers = %+v, want [%+v]", flushed, want)
	}
}

func TestSubmitRejectedOutsideActive(t *testing.T) {
	s, _ := startedSession(t, 60)

	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive after Submitted, got %v", err)
	}
	if err := s.SetAnswer(model.StudentAnswer{QuestionID: q1, Text: "late"}); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive for late SetAnswer, got %v", err)
	}
	if err := s.GoTo(1); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive for late GoTo, got %v", err)
	}
}

func TestRestoreSeedsWithoutDispatching(t *testing.T) {
	s, fb := startedSession(t, 60)

	saved := []model.StudentAnswer{
		{QuestionID: q1, SelectedOptionIDs: []uuid.UUID{opt12}},
		{QuestionID: uuid.New(), Text: "not in this paper"}, // ignored
	}
	if err := s.Restore(saved); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	got, ok := s.Answer(q1)
	if !ok || !reflect.DeepEqual(got.SelectedOptionIDs, []uuid.UUID{opt12}) {
		t.Fatalf("restored answer = %+v", got)
	}

	select {
	case <-fb.saveDone:
		t.Fatal("Restore must not dispatch saves")
	case <-time.After(50 * time.Millisecond):
	}
}

// Full walkthrough of the scenario in the design notes: two single-choice
// questions and one free-text question, answered across navigation, then
// confirmed and submitted.
func TestFullAttemptScenario(t *testing.T) {
	s, fb := startedSession(t, 600)
	ctx := context.Background()

	if err := s.SetAnswer(model.StudentAnswer{QuestionID: q1, SelectedOptionIDs: []uuid.UUID{opt12}}); err != nil {
		t.Fatalf("SetAnswer q1: %v", err)
	}
	if err := s.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := s.SetAnswer(model.StudentAnswer{QuestionID: q2, SelectedOptionIDs: []uuid.UUID{opt22}}); err != nil {
		t.Fatalf("SetAnswer q2: %v", err)
	}
	if err := s.Previous(); err != nil {
		t.Fatalf("Previous: %v", err)
	}

	if got := s.CurrentIndex(); got != 0 {
		t.Fatalf("current = %d, want 0", got)
	}
	got, _ := s.Answer(q1)
	if !reflect.DeepEqual(got.SelectedOptionIDs, []uuid.UUID{opt12}) {
		t.Fatalf("q1 answer = %v, want [%s]", got.SelectedOptionIDs, opt12)
	}

	if err := s.GoTo(2); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if err := s.SetAnswer(model.StudentAnswer{QuestionID: q3, Text: "answer"}); err != nil {
		t.Fatalf("SetAnswer q3: %v", err)
	}

	sum, err := s.RequestSubmit()
	if err != nil {
		t.Fatalf("RequestSubmit: %v", err)
	}
	if len(sum.Unanswered) != 0 || sum.Answered != 3 {
		t.Fatalf("summary = %+v, want all answered", sum)
	}

	if _, err := s.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := s.State(); got != StateSubmitted {
		t.Fatalf("state = %s, want %s", got, StateSubmitted)
	}

	waitSaves(t, fb, 3)
	fb.mu.Lock()
	flushed := fb.submissions[0]
	fb.mu.Unlock()
	if len(flushed) != 3 {
		t.Fatalf("flushed %d answers, want 3", len(flushed))
	}
	// Flush order follows question order, not answer order.
	if flushed[0].QuestionID != q1 || flushed[1].QuestionID != q2 || flushed[2].QuestionID != q3 {
		t.Fatalf("flush order = %v %v %v", flushed[0].QuestionID, flushed[1].QuestionID, flushed[2].QuestionID)
	}
}
