package service

import "errors"

// Domain errors shared across services. Handlers translate these into typed
// API error codes.
var (
	ErrForbidden        = errors.New("resource belongs to another account")
	ErrDependencyExists = errors.New("resource is still referenced")
	ErrExamNotDraft     = errors.New("examination is not in draft status")
	ErrExamNotPublished = errors.New("examination is not published")
	ErrNoQuestions      = errors.New("test paper has no questions")
	ErrExamNotOpen      = errors.New("examination has not opened yet")
	ErrExamClosed       = errors.New("examination window has closed")
	ErrNotEnrolled      = errors.New("student is not enrolled")
	ErrNotStarted       = errors.New("attempt has not been started")
	ErrAlreadySubmitted = errors.New("attempt already submitted")
)
