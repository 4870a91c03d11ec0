package attendance

import (
	"errors"
	"fmt"
)

// Admission rejections. Each one is terminal for a single attempt; none are retried here.
var (
	ErrMalformedToken  = errors.New("proof token is malformed")
	ErrSessionMismatch = errors.New("proof token belongs to a different session")
	ErrTokenExpired    = errors.New("proof token has expired")
	ErrTokenFromFuture = errors.New("proof token is issued in the future")
	ErrOutsideWindow   = errors.New("session is not open for attendance")
	ErrNotEnrolled     = errors.New("student is not actively enrolled in the section")
	ErrAlreadyMarked   = errors.New("attendance already recorded for this session")
	ErrSessionNotFound = errors.New("session not found")
	ErrFaceNotVerified = errors.New("face verification failed")

	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidSession    = errors.New("invalid session")
	ErrInvalidEnrollment = errors.New("invalid enrollment")
)

// Kind is the errorKind reported to callers.
type Kind string

const (
	KindMalformedToken    Kind = "MalformedToken"
	KindSessionMismatch   Kind = "SessionMismatch"
	KindTokenExpired      Kind = "TokenExpired"
	KindTokenFromFuture   Kind = "TokenFromFuture"
	KindOutsideWindow     Kind = "OutsideWindow"
	KindNotEnrolled       Kind = "NotEnrolled"
	KindAlreadyMarked     Kind = "AlreadyMarked"
	KindSessionNotFound   Kind = "SessionNotFound"
	KindFaceNotVerified   Kind = "FaceNotVerified"
	KindInvalidRequest    Kind = "InvalidRequest"
	KindInvalidSession    Kind = "InvalidSession"
	KindInvalidEnrollment Kind = "InvalidEnrollment"
	KindPersistence       Kind = "PersistenceError"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrMalformedToken, KindMalformedToken},
	{ErrSessionMismatch, KindSessionMismatch},
	{ErrTokenExpired, KindTokenExpired},
	{ErrTokenFromFuture, KindTokenFromFuture},
	{ErrOutsideWindow, KindOutsideWindow},
	{ErrNotEnrolled, KindNotEnrolled},
	{ErrAlreadyMarked, KindAlreadyMarked},
	{ErrSessionNotFound, KindSessionNotFound},
	{ErrFaceNotVerified, KindFaceNotVerified},
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrInvalidSession, KindInvalidSession},
	{ErrInvalidEnrollment, KindInvalidEnrollment},
}

// KindOf maps err to its wire kind. Unknown errors are reported as persistence failures.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindPersistence
}

// PersistenceError wraps a backing-store failure during a lookup or the final insert.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
