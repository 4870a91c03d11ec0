package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence the service needs. Lookups return (nil, nil) for missing rows.
// InsertRecord must return ErrAlreadyMarked when the (session, student) pair already exists.
type Store interface {
	GetSession(ctx context.Context, id string) (*Session, error)
	CreateSession(ctx context.Context, s Session) (Session, error)
	RetireSession(ctx context.Context, id string, at time.Time) error

	IsActivelyEnrolled(ctx context.Context, studentID, sectionID string) (bool, error)
	UpsertEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)

	HasPriorRecord(ctx context.Context, sessionID, studentID string) (bool, error)
	InsertRecord(ctx context.Context, rec Record) (Record, error)
	ListRecords(ctx context.Context, sessionID string) ([]Record, error)
}

// Recorder observes admission outcomes. metrics.Registry implements it.
type Recorder interface {
	ObserveAdmission(outcome string, d time.Duration)
}

// Policy holds the token tolerances and defaults for admission checks.
type Policy struct {
	MaxTokenAge     time.Duration
	MaxTokenFuture  time.Duration
	RotateInterval  time.Duration
	DefaultLocation *time.Location
}

// DefaultPolicy returns the tolerances used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxTokenAge:     10 * time.Minute,
		MaxTokenFuture:  5 * time.Minute,
		RotateInterval:  30 * time.Second,
		DefaultLocation: time.UTC,
	}
}

// Request is one attendance-marking attempt.
type Request struct {
	SessionID  string
	StudentID  string
	Token      string
	Method     Method
	MatchScore *float64
}

// Service runs admission checks and records attendance.
type Service struct {
	store    Store
	policy   Policy
	log      *zap.Logger
	recorder Recorder
	now      func() time.Time
}

// NewService creates a service backed by store. logger and rec may be nil.
func NewService(store Store, policy Policy, logger *zap.Logger, rec Recorder) *Service {
	def := DefaultPolicy()
	if policy.MaxTokenAge <= 0 {
		policy.MaxTokenAge = def.MaxTokenAge
	}
	if policy.MaxTokenFuture < 0 {
		policy.MaxTokenFuture = def.MaxTokenFuture
	}
	if policy.RotateInterval <= 0 {
		policy.RotateInterval = def.RotateInterval
	}
	if policy.DefaultLocation == nil {
		policy.DefaultLocation = def.DefaultLocation
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, policy: policy, log: logger, recorder: rec, now: time.Now}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Policy returns the effective policy.
func (s *Service) Policy() Policy { return s.policy }

// Admit runs the admission check. A nil error means the attempt may be recorded.
//
// Order: token decode, token session match, token freshness, time window,
// enrollment, duplicate. Without a token the first three are skipped.
func (s *Service) Admit(ctx context.Context, req Request) error {
	start := time.Now()
	err := s.admit(ctx, req)
	s.observe(err, time.Since(start))
	return err
}

func (s *Service) admit(ctx context.Context, req Request) error {
	if req.SessionID == "" || req.StudentID == "" {
		return fmt.Errorf("%w: session_id and student_id are required", ErrInvalidRequest)
	}
	if !req.Method.Valid() {
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidRequest, req.Method)
	}
	now := s.now()

	if req.Token != "" {
		tok, err := DecodeToken(req.Token)
		if err != nil {
			return err
		}
		if tok.SessionID != req.SessionID {
			return ErrSessionMismatch
		}
		if err := CheckFreshness(tok.IssuedMinute, now, s.policy.MaxTokenAge, s.policy.MaxTokenFuture); err != nil {
			return err
		}
	}

	sess, err := s.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return persistence("session lookup", err)
	}
	if sess == nil || sess.Retired() {
		return ErrSessionNotFound
	}

	if !WithinWindow(now, sess.Date, sess.StartTime, sess.EndTime, sess.Location(s.policy.DefaultLocation)) {
		return ErrOutsideWindow
	}

	enrolled, err := s.store.IsActivelyEnrolled(ctx, req.StudentID, sess.SectionID)
	if err != nil {
		return persistence("enrollment lookup", err)
	}
	if !enrolled {
		return ErrNotEnrolled
	}

	prior, err := s.store.HasPriorRecord(ctx, req.SessionID, req.StudentID)
	if err != nil {
		return persistence("prior record lookup", err)
	}
	if prior {
		return ErrAlreadyMarked
	}
	return nil
}

// Mark admits the request and persists a present record. A concurrent insert that
// wins the uniqueness constraint surfaces here as ErrAlreadyMarked.
func (s *Service) Mark(ctx context.Context, req Request) (Record, error) {
	if err := s.Admit(ctx, req); err != nil {
		s.log.Info("attendance rejected",
			zap.String("session_id", req.SessionID),
			zap.String("student_id", req.StudentID),
			zap.String("method", string(req.Method)),
			zap.String("kind", string(KindOf(err))),
		)
		return Record{}, err
	}

	rec, err := s.store.InsertRecord(ctx, Record{
		ID:         uuid.NewString(),
		SessionID:  req.SessionID,
		StudentID:  req.StudentID,
		Status:     StatusPresent,
		Method:     req.Method,
		MatchScore: req.MatchScore,
		MarkedAt:   s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyMarked) {
			return Record{}, ErrAlreadyMarked
		}
		s.log.Error("attendance insert failed", zap.String("session_id", req.SessionID), zap.Error(err))
		return Record{}, persistence("insert attendance record", err)
	}
	s.log.Info("attendance recorded",
		zap.String("record_id", rec.ID),
		zap.String("session_id", rec.SessionID),
		zap.String("student_id", rec.StudentID),
		zap.String("method", string(rec.Method)),
	)
	return rec, nil
}

// IssueToken returns the current proof token for an open session together with the
// instant after which it is no longer accepted.
func (s *Service) IssueToken(ctx context.Context, sessionID string) (string, time.Time, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", time.Time{}, persistence("session lookup", err)
	}
	if sess == nil || sess.Retired() {
		return "", time.Time{}, ErrSessionNotFound
	}
	if !ValidTokenSessionID(sess.ID) {
		return "", time.Time{}, fmt.Errorf("%w: session id %q cannot be encoded in a proof token", ErrInvalidSession, sess.ID)
	}
	minute := MinuteOf(s.now())
	expires := time.UnixMilli(minute * millisPerMinute).Add(s.policy.MaxTokenAge).UTC()
	return EncodeToken(sess.ID, minute), expires, nil
}

// GetSession returns a session by id, including retired ones.
func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, persistence("session lookup", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// CreateSession validates and stores a new session.
func (s *Service) CreateSession(ctx context.Context, in Session) (Session, error) {
	in.CourseID = strings.TrimSpace(in.CourseID)
	in.SectionID = strings.TrimSpace(in.SectionID)
	if in.CourseID == "" || in.SectionID == "" {
		return Session{}, fmt.Errorf("%w: course_id and section_id are required", ErrInvalidSession)
	}
	if in.Timezone == "" {
		in.Timezone = s.policy.DefaultLocation.String()
	}
	loc, err := time.LoadLocation(in.Timezone)
	if err != nil {
		return Session{}, fmt.Errorf("%w: unknown timezone %q", ErrInvalidSession, in.Timezone)
	}
	if _, _, err := SessionBounds(in.Date, in.StartTime, in.EndTime, loc); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	in.ID = uuid.NewString()
	in.CreatedAt = s.now().UTC()
	in.RetiredAt = nil

	out, err := s.store.CreateSession(ctx, in)
	if err != nil {
		return Session{}, persistence("create session", err)
	}
	s.log.Info("session created", zap.String("session_id", out.ID), zap.String("section_id", out.SectionID))
	return out, nil
}

// RetireSession soft-retires a session; records referencing it are kept.
func (s *Service) RetireSession(ctx context.Context, id string) error {
	if _, err := s.GetSession(ctx, id); err != nil {
		return err
	}
	if err := s.store.RetireSession(ctx, id, s.now().UTC()); err != nil {
		return persistence("retire session", err)
	}
	return nil
}

// SetEnrollment creates or updates the enrollment status for (student, section).
func (s *Service) SetEnrollment(ctx context.Context, e Enrollment) (Enrollment, error) {
	e.StudentID = strings.TrimSpace(e.StudentID)
	e.SectionID = strings.TrimSpace(e.SectionID)
	if e.StudentID == "" || e.SectionID == "" {
		return Enrollment{}, fmt.Errorf("%w: student_id and section_id are required", ErrInvalidEnrollment)
	}
	if !e.Status.Valid() {
		return Enrollment{}, fmt.Errorf("%w: unknown status %q", ErrInvalidEnrollment, e.Status)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.UpdatedAt = s.now().UTC()
	out, err := s.store.UpsertEnrollment(ctx, e)
	if err != nil {
		return Enrollment{}, persistence("upsert enrollment", err)
	}
	return out, nil
}

// ListRecords returns the attendance recorded for a session.
func (s *Service) ListRecords(ctx context.Context, sessionID string) ([]Record, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	recs, err := s.store.ListRecords(ctx, sessionID)
	if err != nil {
		return nil, persistence("list records", err)
	}
	return recs, nil
}

func (s *Service) observe(err error, d time.Duration) {
	if s.recorder == nil {
		return
	}
	outcome := "admit"
	if err != nil {
		outcome = string(KindOf(err))
	}
	s.recorder.ObserveAdmission(outcome, d)
}
