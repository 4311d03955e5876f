package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when an exam session id is unknown.
	ErrSessionNotFound = errors.New("exam session not found")
	// ErrExamNotFound indicates the exam could not be loaded.
	ErrExamNotFound = errors.New("exam not found")
	// ErrResultNotFound indicates a result id is unknown.
	ErrResultNotFound = errors.New("result not found")
	// ErrEmptyStudentName is returned when a session is started without a name.
	ErrEmptyStudentName = errors.New("student name is required")
	// ErrAccessExpired is returned when the exam deadline has already passed.
	ErrAccessExpired = errors.New("exam access period has ended")
	// ErrFormatNotRecognized is returned by the question parser on malformed input.
	ErrFormatNotRecognized = errors.New("question format not recognized: make sure options A) B) C) D) E) are present")
	// ErrNotInProgress is returned for ledger or navigation calls outside InProgress.
	ErrNotInProgress = errors.New("exam session is not in progress")
	// ErrAlreadyStarted is returned when start is called twice.
	ErrAlreadyStarted = errors.New("exam session already started")
	// ErrQuestionNotCurrent is returned when an answer targets a question other than the viewed one.
	ErrQuestionNotCurrent = errors.New("answer must target the currently viewed question")
	// ErrOptionOutOfRange is returned for option indexes outside the question's options.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrInvalidExam is returned for exams with a non-positive duration.
	ErrInvalidExam = errors.New("exam duration must be positive")
	// ErrForbidden is returned when an operation needs the admin capability.
	ErrForbidden = errors.New("admin capability required")
	// ErrFinishNotConfirmed is returned when a student finish request lacks confirmation.
	ErrFinishNotConfirmed = errors.New("finishing the exam must be confirmed")
	// ErrUnsupportedMessage is returned for unknown live session commands.
	ErrUnsupportedMessage = errors.New("unsupported message type")
	// ErrResultNotSaved reports a finished attempt whose result is not stored yet.
	ErrResultNotSaved = errors.New("result could not be saved, finish again to retry")
)

// Kind classifies errors for callers deciding how to surface them.
type Kind string

const (
	KindUnknown       Kind = "UNKNOWN"
	KindValidation    Kind = "VALIDATION"
	KindExpiredAccess Kind = "EXPIRED_ACCESS"
	KindNotFound      Kind = "NOT_FOUND"
	KindPersistence   Kind = "PERSISTENCE"
	KindForbidden     Kind = "FORBIDDEN"
)

// Error attaches a Kind and the failing operation to an underlying error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and operation name.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// PersistenceError wraps a failure from an external store.
func PersistenceError(op string, err error) *Error {
	return NewError(KindPersistence, op, err)
}

var sentinelKinds = map[error]Kind{
	ErrSessionNotFound:     KindNotFound,
	ErrExamNotFound:        KindNotFound,
	ErrResultNotFound:      KindNotFound,
	ErrEmptyStudentName:    KindValidation,
	ErrFormatNotRecognized: KindValidation,
	ErrNotInProgress:       KindValidation,
	ErrAlreadyStarted:      KindValidation,
	ErrQuestionNotCurrent:  KindValidation,
	ErrOptionOutOfRange:    KindValidation,
	ErrInvalidExam:         KindValidation,
	ErrFinishNotConfirmed:  KindValidation,
	ErrUnsupportedMessage:  KindValidation,
	ErrAccessExpired:       KindExpiredAccess,
	ErrForbidden:           KindForbidden,
	ErrResultNotSaved:      KindPersistence,
}

// KindOf reports the kind of err. Typed errors win over wrapped sentinels.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	for sentinel, kind := range sentinelKinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}
