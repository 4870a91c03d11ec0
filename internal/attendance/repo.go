package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Repository persists sessions, enrollments and attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

const sessionColumns = `id, course_id, section_id, to_char(session_date, 'YYYY-MM-DD'),
	to_char(start_time, 'HH24:MI:SS'), to_char(end_time, 'HH24:MI:SS'), timezone, created_by, created_at, retired_at`

// GetSession returns a session by id, or nil if it does not exist.
func (r *Repository) GetSession(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	var s Session
	if err := row.Scan(&s.ID, &s.CourseID, &s.SectionID, &s.Date, &s.StartTime, &s.EndTime, &s.Timezone, &s.CreatedBy, &s.CreatedAt, &s.RetiredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// CreateSession writes a new session.
func (r *Repository) CreateSession(ctx context.Context, s Session) (Session, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, course_id, section_id, session_date, start_time, end_time, timezone, created_by, created_at)
		VALUES ($1, $2, $3, $4::date, $5::time, $6::time, $7, $8, $9)
	`, s.ID, s.CourseID, s.SectionID, s.Date, s.StartTime, s.EndTime, s.Timezone, s.CreatedBy, s.CreatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

// RetireSession marks a session retired. Already-retired sessions keep their first timestamp.
func (r *Repository) RetireSession(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET retired_at = COALESCE(retired_at, $2) WHERE id = $1`, id, at)
	return err
}

// IsActivelyEnrolled reports whether exactly one active enrollment exists for the pair.
func (r *Repository) IsActivelyEnrolled(ctx context.Context, studentID, sectionID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM enrollments
		WHERE student_id = $1 AND section_id = $2 AND status = $3
	`, studentID, sectionID, string(EnrollmentActive)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpsertEnrollment creates the enrollment or transitions its status.
func (r *Repository) UpsertEnrollment(ctx context.Context, e Enrollment) (Enrollment, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO enrollments (id, student_id, section_id, status, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, section_id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		RETURNING id, updated_at
	`, e.ID, e.StudentID, e.SectionID, string(e.Status), e.UpdatedAt)
	if err := row.Scan(&e.ID, &e.UpdatedAt); err != nil {
		return Enrollment{}, fmt.Errorf("upsert enrollment: %w", err)
	}
	return e, nil
}

// HasPriorRecord reports whether any record exists for the pair, whatever its status.
func (r *Repository) HasPriorRecord(ctx context.Context, sessionID, studentID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM attendance_records WHERE session_id = $1 AND student_id = $2)
	`, sessionID, studentID).Scan(&exists)
	return exists, err
}

// InsertRecord writes rec unless the pair already has a record, in which case it
// returns ErrAlreadyMarked. The unique constraint makes this safe under concurrency.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, status, method, match_score, marked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, student_id) DO NOTHING
		RETURNING marked_at
	`, rec.ID, rec.SessionID, rec.StudentID, rec.Status, string(rec.Method), rec.MatchScore, rec.MarkedAt)
	if err := row.Scan(&rec.MarkedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrAlreadyMarked
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Record{}, ErrAlreadyMarked
		}
		return Record{}, err
	}
	return rec, nil
}

// ListRecords returns the records of a session, oldest first.
func (r *Repository) ListRecords(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, student_id, status, method, match_score, marked_at
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY marked_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		var method string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.Status, &method, &rec.MatchScore, &rec.MarkedAt); err != nil {
			return nil, err
		}
		rec.Method = Method(method)
		res = append(res, rec)
	}
	return res, rows.Err()
}

// UpsertDevice ensures a device record exists.
func (r *Repository) UpsertDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return errors.New("device id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id)
		VALUES ($1)
		ON CONFLICT (device_id) DO UPDATE SET last_seen_at = NOW()
	`, deviceID)
	return err
}
