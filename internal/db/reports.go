package db

import (
	"context"

	"github.com/Spok95/attendance-tracker/internal/models"
)

// StudentCourseStats — по каждому активному курсу ученика: всего занятий и посещённых (кроме ABSENT).
func (s *Store) StudentCourseStats(ctx context.Context, studentID int64) ([]models.CourseAttendanceStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.code, c.description, c.teacher_id, c.is_active, c.created_at, c.updated_at,
		       (SELECT count(*) FROM course_enrollments x WHERE x.course_id = c.id AND x.is_active),
		       (SELECT count(*) FROM sessions s WHERE s.course_id = c.id),
		       (SELECT count(*) FROM attendances a JOIN sessions s ON s.id = a.session_id
		         WHERE s.course_id = c.id AND a.student_id = $1 AND a.status <> 'ABSENT')
		FROM courses c
		JOIN course_enrollments e ON e.course_id = c.id AND e.student_id = $1 AND e.is_active
		ORDER BY c.name, c.id`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.CourseAttendanceStats{}
	for rows.Next() {
		var st models.CourseAttendanceStats
		c := &st.Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.Description, &c.TeacherID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
			&c.StudentCount, &st.TotalSessions, &st.AttendedSessions); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// SessionStats — занятия курса с числом отметок (кроме ABSENT) и числом записанных учеников.
func (s *Store) SessionStats(ctx context.Context, courseID int64) ([]models.SessionStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`,
		       (SELECT count(*) FROM attendances a WHERE a.session_id = s.id AND a.status <> 'ABSENT'),
		       (SELECT count(*) FROM course_enrollments e WHERE e.course_id = s.course_id AND e.is_active)
		FROM sessions s
		WHERE s.course_id = $1
		ORDER BY s.date, s.start_time`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.SessionStats{}
	for rows.Next() {
		var (
			st                 models.SessionStats
			attended, enrolled int
		)
		x, err := scanSession(scanTail{rows, []any{&attended, &enrolled}})
		if err != nil {
			return nil, err
		}
		st.Session = x
		st.AttendanceCount, st.EnrolledCount = attended, enrolled
		out = append(out, st)
	}
	return out, rows.Err()
}

// scanTail дописывает к Scan дополнительные колонки после стандартного набора.
type scanTail struct {
	r    rowScanner
	tail []any
}

func (t scanTail) Scan(dest ...any) error {
	return t.r.Scan(append(dest, t.tail...)...)
}
