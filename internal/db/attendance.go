package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/models"
)

const attendanceColumns = `a.id, a.session_id, a.student_id, a.check_in_time, a.status, a.notes, a.ip_address, a.device_info`

func scanAttendance(r rowScanner) (models.Attendance, error) {
	var a models.Attendance
	err := r.Scan(&a.ID, &a.SessionID, &a.StudentID, &a.CheckInTime, &a.Status, &a.Notes, &a.IPAddress, &a.DeviceInfo)
	return a, err
}

// InsertAttendance — вставка или отказ. Уникальность (session, student) обеспечивает
// ограничение БД: из двух одновременных вставок проходит одна, вторая получает AlreadyRecorded.
func (s *Store) InsertAttendance(ctx context.Context, a models.Attendance) (models.Attendance, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO attendances (session_id, student_id, check_in_time, status, notes, ip_address, device_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, student_id) DO NOTHING
		RETURNING id, session_id, student_id, check_in_time, status, notes, ip_address, device_info`,
		a.SessionID, a.StudentID, a.CheckInTime, string(a.Status), a.Notes, a.IPAddress, a.DeviceInfo)
	out, err := scanAttendance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Attendance{}, apperr.ErrAlreadyRecorded
	}
	if err != nil {
		return models.Attendance{}, mapErr(err, "занятие")
	}
	return out, nil
}

// UpsertAttendance — ручная отметка: существующая строка получает новый статус и заметку,
// новая вставляется со статусом insertStatus.
func (s *Store) UpsertAttendance(ctx context.Context, a models.Attendance, insertStatus models.Status) (models.Attendance, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO attendances (session_id, student_id, check_in_time, status, notes, ip_address, device_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, student_id)
		DO UPDATE SET status = $8, notes = EXCLUDED.notes
		RETURNING id, session_id, student_id, check_in_time, status, notes, ip_address, device_info`,
		a.SessionID, a.StudentID, a.CheckInTime, string(insertStatus), a.Notes, a.IPAddress, a.DeviceInfo, string(a.Status))
	out, err := scanAttendance(row)
	if err != nil {
		return models.Attendance{}, mapErr(err, "занятие")
	}
	return out, nil
}

func (s *Store) DeleteAttendance(ctx context.Context, sessionID, attendanceID int64) error {
	return execOne(ctx, s.db, "отметка",
		`DELETE FROM attendances WHERE id = $1 AND session_id = $2`, attendanceID, sessionID)
}

const recordSelect = `
	SELECT ` + attendanceColumns + `,
	       trim(u.last_name || ' ' || u.first_name), u.email, s.title, s.date
	FROM attendances a
	JOIN users u ON u.id = a.student_id
	JOIN sessions s ON s.id = a.session_id`

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]models.AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.AttendanceRecord{}
	for rows.Next() {
		var r models.AttendanceRecord
		if err := rows.Scan(&r.ID, &r.SessionID, &r.StudentID, &r.CheckInTime, &r.Status, &r.Notes, &r.IPAddress, &r.DeviceInfo,
			&r.StudentName, &r.StudentEmail, &r.SessionTitle, &r.SessionDate); err != nil {
			return nil, err
		}
		r.SessionDate = dateOnly(r.SessionDate)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListSessionAttendance(ctx context.Context, sessionID int64) ([]models.AttendanceRecord, error) {
	return s.queryRecords(ctx, recordSelect+` WHERE a.session_id = $1 ORDER BY a.check_in_time DESC, a.id DESC`, sessionID)
}

// ListCourseAttendance — отметки курса с необязательными фильтрами.
func (s *Store) ListCourseAttendance(ctx context.Context, courseID int64, f models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	where := []string{"s.course_id = $1"}
	args := []any{courseID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.From != nil {
		add("s.date >= $%d::date", dateArg(*f.From))
	}
	if f.To != nil {
		add("s.date <= $%d::date", dateArg(*f.To))
	}
	if f.Status != "" {
		add("a.status = $%d", string(f.Status))
	}
	if f.StudentID != nil {
		add("a.student_id = $%d", *f.StudentID)
	}
	if q := strings.TrimSpace(f.Student); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(u.first_name ILIKE $%d OR u.last_name ILIKE $%d OR u.email ILIKE $%d)", n, n, n))
	}
	return s.queryRecords(ctx, recordSelect+` WHERE `+strings.Join(where, " AND ")+
		` ORDER BY s.date DESC, s.start_time DESC, a.check_in_time DESC`, args...)
}
