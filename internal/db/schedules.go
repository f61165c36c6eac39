package db

import (
	"context"
	"time"

	"github.com/Spok95/attendance-tracker/internal/models"
)

// UpsertSchedule — правило на (курс, день, начало) существует в одном экземпляре;
// повторная форма реактивирует его и обновляет время окончания.
func (s *Store) UpsertSchedule(ctx context.Context, r models.CourseSchedule) (models.CourseSchedule, error) {
	out := models.CourseSchedule{CourseID: r.CourseID, DayOfWeek: r.DayOfWeek}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO course_schedules (course_id, day_of_week, start_time, end_time, is_active)
		VALUES ($1, $2, $3::time, $4::time, TRUE)
		ON CONFLICT (course_id, day_of_week, start_time)
		DO UPDATE SET end_time = EXCLUDED.end_time, is_active = TRUE
		RETURNING id, start_time, end_time, is_active, created_at`,
		r.CourseID, int(r.DayOfWeek), r.StartTime, r.EndTime,
	).Scan(&out.ID, &out.StartTime, &out.EndTime, &out.IsActive, &out.CreatedAt)
	if err != nil {
		return models.CourseSchedule{}, mapErr(err, "правило расписания")
	}
	return out, nil
}

func (s *Store) ListActiveSchedules(ctx context.Context, courseID int64) ([]models.CourseSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, course_id, day_of_week, start_time, end_time, is_active, created_at
		FROM course_schedules
		WHERE course_id = $1 AND is_active
		ORDER BY day_of_week, start_time`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.CourseSchedule{}
	for rows.Next() {
		var (
			r   models.CourseSchedule
			day int
		)
		if err := rows.Scan(&r.ID, &r.CourseID, &day, &r.StartTime, &r.EndTime, &r.IsActive, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.DayOfWeek = models.DayOfWeek(day)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeactivateSchedule(ctx context.Context, courseID, scheduleID int64) error {
	return execOne(ctx, s.db, "правило расписания", `
		UPDATE course_schedules SET is_active = FALSE
		WHERE id = $1 AND course_id = $2`, scheduleID, courseID)
}

func (s *Store) SessionStartsAt(ctx context.Context, courseID int64, date time.Time, start models.Clock) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE course_id = $1 AND date = $2::date AND start_time = $3::time
		)`, courseID, dateArg(date), start).Scan(&ok)
	return ok, err
}

// RetimeScheduleSessions — занятия правила с датой >= from получают его время окончания.
// Занятия с отметками и занятия, чей новый слот уже занят, не трогаются.
func (s *Store) RetimeScheduleSessions(ctx context.Context, rule models.CourseSchedule, from time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions x SET end_time = $4::time, updated_at = now()
		WHERE x.schedule_id = $1 AND x.date >= $2::date AND x.start_time = $3::time AND x.end_time <> $4::time
		  AND NOT EXISTS (SELECT 1 FROM attendances a WHERE a.session_id = x.id)
		  AND NOT EXISTS (
			SELECT 1 FROM sessions o
			WHERE o.course_id = x.course_id AND o.date = x.date AND o.start_time = x.start_time AND o.end_time = $4::time
		  )`,
		rule.ID, dateArg(from), rule.StartTime, rule.EndTime)
	if err != nil {
		return 0, mapErr(err, "занятие")
	}
	return res.RowsAffected()
}
