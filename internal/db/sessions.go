package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/models"
)

const sessionColumns = `s.id, s.course_id, s.schedule_id, s.title, s.description, s.date, s.start_time, s.end_time,
	s.qr_token, s.qr_expiry_time, s.is_closed, s.created_at, s.updated_at`

func scanSession(r rowScanner) (models.Session, error) {
	var (
		x        models.Session
		schedule sql.NullInt64
		expiry   sql.NullTime
	)
	err := r.Scan(&x.ID, &x.CourseID, &schedule, &x.Title, &x.Description, &x.Date, &x.StartTime, &x.EndTime,
		&x.QRToken, &expiry, &x.IsClosed, &x.CreatedAt, &x.UpdatedAt)
	if err != nil {
		return models.Session{}, err
	}
	x.Date = dateOnly(x.Date)
	if schedule.Valid {
		id := schedule.Int64
		x.ScheduleID = &id
	}
	if expiry.Valid {
		t := expiry.Time
		x.QRExpiry = &t
	}
	return x, nil
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Session{}
	for rows.Next() {
		x, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, rows.Err()
}

func (s *Store) CreateSession(ctx context.Context, x models.Session) (models.Session, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sessions (course_id, schedule_id, title, description, date, start_time, end_time, qr_token, qr_expiry_time)
		VALUES ($1, $2, $3, $4, $5::date, $6::time, $7::time, $8, $9)
		RETURNING id`,
		x.CourseID, x.ScheduleID, x.Title, x.Description, dateArg(x.Date), x.StartTime, x.EndTime, x.QRToken, x.QRExpiry,
	).Scan(&id)
	if err != nil {
		return models.Session{}, mapErr(err, "занятие")
	}
	created, err := s.GetSession(ctx, id)
	if err != nil {
		return models.Session{}, err
	}
	return *created, nil
}

func (s *Store) GetSession(ctx context.Context, id int64) (*models.Session, error) {
	x, err := scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "занятие")
	}
	return &x, nil
}

func (s *Store) ListSessionsByCourse(ctx context.Context, courseID int64) ([]models.Session, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions s
		WHERE s.course_id = $1 ORDER BY s.date, s.start_time`, courseID)
}

func (s *Store) ListSessionsByTeacher(ctx context.Context, teacherID int64) ([]models.Session, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions s
		JOIN courses c ON c.id = s.course_id
		WHERE c.teacher_id = $1 ORDER BY s.date, s.start_time`, teacherID)
}

func (s *Store) UpdateSession(ctx context.Context, x models.Session) error {
	return execOne(ctx, s.db, "занятие", `
		UPDATE sessions
		SET title = $2, description = $3, date = $4::date, start_time = $5::time, end_time = $6::time, updated_at = now()
		WHERE id = $1`,
		x.ID, x.Title, x.Description, dateArg(x.Date), x.StartTime, x.EndTime)
}

func (s *Store) UpdateSessionToken(ctx context.Context, id int64, token string, expiry time.Time) error {
	return execOne(ctx, s.db, "занятие", `
		UPDATE sessions SET qr_token = $2, qr_expiry_time = $3, updated_at = now() WHERE id = $1`,
		id, token, expiry)
}

func (s *Store) SetSessionClosed(ctx context.Context, id int64, closed bool) error {
	return execOne(ctx, s.db, "занятие", `
		UPDATE sessions SET is_closed = $2, updated_at = now() WHERE id = $1`, id, closed)
}

func (s *Store) ReopenSession(ctx context.Context, id int64, token string, expiry time.Time) error {
	return execOne(ctx, s.db, "занятие", `
		UPDATE sessions SET is_closed = FALSE, qr_token = $2, qr_expiry_time = $3, updated_at = now() WHERE id = $1`,
		id, token, expiry)
}

// DeleteSession удаляет занятие; с отметками — только при force (вместе с ними).
func (s *Store) DeleteSession(ctx context.Context, id int64, force bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var history bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM attendances WHERE session_id = $1)`, id).Scan(&history); err != nil {
			return err
		}
		if history && !force {
			return apperr.New(apperr.ConstraintViolation, "по занятию есть отметки посещаемости")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM attendances WHERE session_id = $1`, id); err != nil {
			return err
		}
		return execOne(ctx, tx, "занятие", `DELETE FROM sessions WHERE id = $1`, id)
	})
}

// CloseEndedSessions — атомарный UPDATE по "настенному" времени занятий:
// now приходит уже в таймзоне расписания.
func (s *Store) CloseEndedSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET is_closed = TRUE, updated_at = now()
		WHERE NOT is_closed AND (date + end_time) < $1::timestamp`,
		now.Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
