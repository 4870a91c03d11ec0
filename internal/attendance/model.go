package attendance

import (
	"time"
)

// Method is how the student proved presence.
type Method string

const (
	MethodQRCode            Method = "qr_code"
	MethodFacialRecognition Method = "facial_recognition"
	MethodManual            Method = "manual"
)

// Valid reports whether m is a supported method.
func (m Method) Valid() bool {
	switch m {
	case MethodQRCode, MethodFacialRecognition, MethodManual:
		return true
	}
	return false
}

// EnrollmentStatus is the lifecycle state of a student's section enrollment.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentDropped   EnrollmentStatus = "dropped"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// Valid reports whether s is a known status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentActive, EnrollmentDropped, EnrollmentCompleted:
		return true
	}
	return false
}

// StatusPresent is the only status this service writes.
const StatusPresent = "present"

// Session is a scheduled class meeting. Date is YYYY-MM-DD, times are HH:MM[:SS]
// wall-clock values in Timezone.
type Session struct {
	ID        string     `json:"id"`
	CourseID  string     `json:"course_id"`
	SectionID string     `json:"section_id"`
	Date      string     `json:"date"`
	StartTime string     `json:"start_time"`
	EndTime   string     `json:"end_time"`
	Timezone  string     `json:"timezone"`
	CreatedBy string     `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	RetiredAt *time.Time `json:"retired_at,omitempty"`
}

// Retired reports whether the session has been soft-retired.
func (s *Session) Retired() bool { return s.RetiredAt != nil }

// Location resolves the session's zone, falling back to def (then UTC).
func (s *Session) Location(def *time.Location) *time.Location {
	if s.Timezone != "" {
		if loc, err := time.LoadLocation(s.Timezone); err == nil {
			return loc
		}
	}
	if def != nil {
		return def
	}
	return time.UTC
}

// Enrollment binds a student to a section.
type Enrollment struct {
	ID        string           `json:"id"`
	StudentID string           `json:"student_id"`
	SectionID string           `json:"section_id"`
	Status    EnrollmentStatus `json:"status"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Record is a persisted attendance entry. At most one exists per (SessionID, StudentID).
type Record struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	StudentID  string    `json:"student_id"`
	Status     string    `json:"status"`
	Method     Method    `json:"method"`
	MatchScore *float64  `json:"match_score,omitempty"`
	MarkedAt   time.Time `json:"marked_at"`
}

// MarkedEvent is published after a record is stored.
type MarkedEvent struct {
	RecordID  string    `json:"record_id"`
	SessionID string    `json:"session_id"`
	StudentID string    `json:"student_id"`
	Method    Method    `json:"method"`
	MarkedAt  time.Time `json:"marked_at"`
}

// EventMarked is the queue message type for MarkedEvent.
const EventMarked = "attendance.marked"
