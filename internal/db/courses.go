package db

import (
	"context"
	"database/sql"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/models"
)

const courseSelect = `
	SELECT c.id, c.name, c.code, c.description, c.teacher_id, c.is_active, c.created_at, c.updated_at,
	       (SELECT count(*) FROM course_enrollments e WHERE e.course_id = c.id AND e.is_active) AS student_count
	FROM courses c`

func scanCourse(r rowScanner) (models.Course, error) {
	var c models.Course
	err := r.Scan(&c.ID, &c.Name, &c.Code, &c.Description, &c.TeacherID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt, &c.StudentCount)
	return c, err
}

func (s *Store) queryCourses(ctx context.Context, query string, args ...any) ([]models.Course, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateCourse(ctx context.Context, c models.Course) (models.Course, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO courses (name, code, description, teacher_id, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		c.Name, c.Code, c.Description, c.TeacherID, c.IsActive).Scan(&id)
	if err != nil {
		return models.Course{}, mapErr(err, "курс")
	}
	created, err := s.GetCourse(ctx, id)
	if err != nil {
		return models.Course{}, err
	}
	return *created, nil
}

func (s *Store) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	c, err := scanCourse(s.db.QueryRowContext(ctx, courseSelect+` WHERE c.id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "курс")
	}
	return &c, nil
}

// GetCourseByCode ищет только среди активных курсов.
func (s *Store) GetCourseByCode(ctx context.Context, code string) (*models.Course, error) {
	c, err := scanCourse(s.db.QueryRowContext(ctx, courseSelect+` WHERE c.code = $1 AND c.is_active`, code))
	if err != nil {
		return nil, mapErr(err, "курс")
	}
	return &c, nil
}

func (s *Store) UpdateCourse(ctx context.Context, c models.Course) error {
	return execOne(ctx, s.db, "курс", `
		UPDATE courses SET name = $2, description = $3, is_active = $4, updated_at = now()
		WHERE id = $1`,
		c.ID, c.Name, c.Description, c.IsActive)
}

func (s *Store) ListCoursesByTeacher(ctx context.Context, teacherID int64) ([]models.Course, error) {
	return s.queryCourses(ctx, courseSelect+` WHERE c.teacher_id = $1 ORDER BY c.created_at DESC, c.id DESC`, teacherID)
}

func (s *Store) ListCoursesByStudent(ctx context.Context, studentID int64) ([]models.Course, error) {
	return s.queryCourses(ctx, courseSelect+`
		JOIN course_enrollments ce ON ce.course_id = c.id AND ce.student_id = $1 AND ce.is_active
		ORDER BY c.name, c.id`, studentID)
}

func (s *Store) ListActiveCourses(ctx context.Context) ([]models.Course, error) {
	return s.queryCourses(ctx, courseSelect+` WHERE c.is_active ORDER BY c.id`)
}

// DeleteCourse — явное удаление курса со всеми занятиями, правилами и записями.
// Если по курсу есть отметки, нужен force.
func (s *Store) DeleteCourse(ctx context.Context, id int64, force bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var locked int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM courses WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
			return mapErr(err, "курс")
		}
		var history bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM attendances a JOIN sessions s ON s.id = a.session_id WHERE s.course_id = $1
			)`, id).Scan(&history); err != nil {
			return err
		}
		if history && !force {
			return apperr.New(apperr.ConstraintViolation, "по курсу есть отметки посещаемости")
		}
		for _, q := range []string{
			`DELETE FROM attendances WHERE session_id IN (SELECT id FROM sessions WHERE course_id = $1)`,
			`DELETE FROM sessions WHERE course_id = $1`,
			`DELETE FROM course_schedules WHERE course_id = $1`,
			`DELETE FROM course_enrollments WHERE course_id = $1`,
			`DELETE FROM courses WHERE id = $1`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return mapErr(err, "курс")
			}
		}
		return nil
	})
}

// Enroll — запись на курс; повторная запись реактивирует прежнюю.
func (s *Store) Enroll(ctx context.Context, courseID, studentID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO course_enrollments (course_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (course_id, student_id) DO UPDATE SET is_active = TRUE`,
		courseID, studentID)
	return mapErr(err, "курс")
}

func (s *Store) Unenroll(ctx context.Context, courseID, studentID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE course_enrollments SET is_active = FALSE
		WHERE course_id = $1 AND student_id = $2 AND is_active`,
		courseID, studentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotEnrolled, "вы не записаны на этот курс")
	}
	return nil
}

func (s *Store) IsEnrolled(ctx context.Context, courseID, studentID int64) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM course_enrollments WHERE course_id = $1 AND student_id = $2 AND is_active
		)`, courseID, studentID).Scan(&ok)
	return ok, err
}

func (s *Store) ListEnrolledStudents(ctx context.Context, courseID int64) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name, u.role, u.created_at
		FROM course_enrollments e
		JOIN users u ON u.id = e.student_id
		WHERE e.course_id = $1 AND e.is_active
		ORDER BY u.last_name, u.id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
