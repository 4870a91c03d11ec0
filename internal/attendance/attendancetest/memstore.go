// Package attendancetest provides an in-memory attendance.Store for tests.
package attendancetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"uniattend/internal/attendance"
)

type pair struct{ a, b string }

// MemStore is a mutex-guarded attendance.Store. It enforces the same
// (session, student) uniqueness as the database. Set Err to make every call fail.
type MemStore struct {
	mu          sync.Mutex
	sessions    map[string]attendance.Session
	enrollments map[pair]attendance.Enrollment
	records     map[pair]attendance.Record

	Err error
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		sessions:    map[string]attendance.Session{},
		enrollments: map[pair]attendance.Enrollment{},
		records:     map[pair]attendance.Record{},
	}
}

var _ attendance.Store = (*MemStore)(nil)

// PutSession stores s as-is.
func (m *MemStore) PutSession(s attendance.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

// Enroll sets the enrollment status of student in section.
func (m *MemStore) Enroll(studentID, sectionID string, status attendance.EnrollmentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments[pair{studentID, sectionID}] = attendance.Enrollment{
		ID: studentID + "/" + sectionID, StudentID: studentID, SectionID: sectionID, Status: status,
	}
}

// PutRecord stores rec without checks.
func (m *MemStore) PutRecord(rec attendance.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[pair{rec.SessionID, rec.StudentID}] = rec
}

// RecordCount returns how many records exist for the session.
func (m *MemStore) RecordCount(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.records {
		if k.a == sessionID {
			n++
		}
	}
	return n
}

func (m *MemStore) GetSession(_ context.Context, id string) (*attendance.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemStore) CreateSession(_ context.Context, s attendance.Session) (attendance.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return attendance.Session{}, m.Err
	}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *MemStore) RetireSession(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	s, ok := m.sessions[id]
	if !ok || s.RetiredAt != nil {
		return nil
	}
	s.RetiredAt = &at
	m.sessions[id] = s
	return nil
}

func (m *MemStore) IsActivelyEnrolled(_ context.Context, studentID, sectionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	e, ok := m.enrollments[pair{studentID, sectionID}]
	return ok && e.Status == attendance.EnrollmentActive, nil
}

func (m *MemStore) UpsertEnrollment(_ context.Context, e attendance.Enrollment) (attendance.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return attendance.Enrollment{}, m.Err
	}
	k := pair{e.StudentID, e.SectionID}
	if prev, ok := m.enrollments[k]; ok {
		e.ID = prev.ID
	}
	m.enrollments[k] = e
	return e, nil
}

func (m *MemStore) HasPriorRecord(_ context.Context, sessionID, studentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	_, ok := m.records[pair{sessionID, studentID}]
	return ok, nil
}

func (m *MemStore) InsertRecord(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return attendance.Record{}, m.Err
	}
	k := pair{rec.SessionID, rec.StudentID}
	if _, ok := m.records[k]; ok {
		return attendance.Record{}, attendance.ErrAlreadyMarked
	}
	m.records[k] = rec
	return rec, nil
}

func (m *MemStore) ListRecords(_ context.Context, sessionID string) ([]attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []attendance.Record
	for k, r := range m.records {
		if k.a == sessionID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarkedAt.Before(out[j].MarkedAt) })
	return out, nil
}
