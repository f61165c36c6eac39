package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/course"
	"github.com/Spok95/attendance-tracker/internal/metrics"
	"github.com/Spok95/attendance-tracker/internal/models"
	"github.com/Spok95/attendance-tracker/internal/session"
)

type Store interface {
	course.Getter
	course.EnrollmentChecker
	// UpsertSchedule создаёт правило или реактивирует существующее с тем же (course, day, start).
	UpsertSchedule(ctx context.Context, s models.CourseSchedule) (models.CourseSchedule, error)
	ListActiveSchedules(ctx context.Context, courseID int64) ([]models.CourseSchedule, error)
	DeactivateSchedule(ctx context.Context, courseID, scheduleID int64) error
	ListActiveCourses(ctx context.Context) ([]models.Course, error)
	// SessionStartsAt — у курса уже есть занятие в этот день с этим временем начала.
	SessionStartsAt(ctx context.Context, courseID int64, date time.Time, start models.Clock) (bool, error)
	// RetimeScheduleSessions переносит время окончания правила на его занятия начиная с from,
	// кроме занятий с отметками. Возвращает число изменённых занятий.
	RetimeScheduleSessions(ctx context.Context, rule models.CourseSchedule, from time.Time) (int64, error)
	CreateSession(ctx context.Context, s models.Session) (models.Session, error)
}

type Options struct {
	Location   *time.Location
	TokenTTL   time.Duration
	WeeksAhead int
	Now        func() time.Time
}

type Service struct {
	store Store
	opts  Options
	log   *zap.Logger
}

func NewService(store Store, opts Options, log *zap.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 10 * time.Second
	}
	if opts.WeeksAhead <= 0 {
		opts.WeeksAhead = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{store: store, opts: opts, log: log}
}

// RuleInput — форма с несколькими днями недели и общим временем.
type RuleInput struct {
	Days      []models.DayOfWeek `json:"days"`
	StartTime models.Clock       `json:"start_time"`
	EndTime   models.Clock       `json:"end_time"`
}

type ApplyResult struct {
	Schedules []models.CourseSchedule `json:"schedules"`
	Generated []models.Session        `json:"generated"`
}

// ApplyDays раскладывает форму на отдельные правила (по одному на день) и сразу
// генерирует ближайшие занятия курса.
func (s *Service) ApplyDays(ctx context.Context, actor models.User, courseID int64, in RuleInput) (ApplyResult, error) {
	c, err := course.Owned(ctx, s.store, courseID, actor)
	if err != nil {
		return ApplyResult{}, err
	}
	if len(in.Days) == 0 {
		return ApplyResult{}, apperr.New(apperr.ValidationError, "выберите хотя бы один день недели")
	}
	if !in.StartTime.Before(in.EndTime) {
		return ApplyResult{}, apperr.New(apperr.ValidationError, "время окончания должно быть позже начала")
	}
	days := make(map[models.DayOfWeek]struct{}, len(in.Days))
	for _, d := range in.Days {
		if !d.Valid() {
			return ApplyResult{}, apperr.Newf(apperr.ValidationError, "день недели %d вне диапазона 0..5 (пн..сб)", int(d))
		}
		days[d] = struct{}{}
	}
	ordered := make([]models.DayOfWeek, 0, len(days))
	for d := range days {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	today := models.DateOf(s.opts.Now(), s.opts.Location)
	res := ApplyResult{Schedules: make([]models.CourseSchedule, 0, len(ordered))}
	for _, d := range ordered {
		rule, err := s.store.UpsertSchedule(ctx, models.CourseSchedule{
			CourseID:  courseID,
			DayOfWeek: d,
			StartTime: in.StartTime,
			EndTime:   in.EndTime,
			IsActive:  true,
		})
		if err != nil {
			return ApplyResult{}, fmt.Errorf("upsert schedule %s: %w", d, err)
		}
		// новое время окончания действует и на уже созданные будущие занятия правила
		n, err := s.store.RetimeScheduleSessions(ctx, rule, today)
		if err != nil {
			return ApplyResult{}, fmt.Errorf("retime sessions of schedule %d: %w", rule.ID, err)
		}
		if n > 0 {
			s.log.Info("schedule sessions retimed", zap.Int64("schedule_id", rule.ID), zap.Int64("count", n),
				zap.Stringer("end_time", rule.EndTime))
		}
		res.Schedules = append(res.Schedules, rule)
	}
	res.Generated, err = s.Expand(ctx, *c, s.opts.WeeksAhead)
	if err != nil {
		return ApplyResult{}, err
	}
	return res, nil
}

func (s *Service) List(ctx context.Context, actor models.User, courseID int64) ([]models.CourseSchedule, error) {
	if _, err := course.Visible(ctx, s.store, courseID, actor); err != nil {
		return nil, err
	}
	return s.store.ListActiveSchedules(ctx, courseID)
}

// Deactivate — мягкое удаление правила; уже созданные занятия остаются.
func (s *Service) Deactivate(ctx context.Context, actor models.User, courseID, scheduleID int64) error {
	if _, err := course.Owned(ctx, s.store, courseID, actor); err != nil {
		return err
	}
	return s.store.DeactivateSchedule(ctx, courseID, scheduleID)
}

// Generate — ручной запуск развёртки преподавателем.
func (s *Service) Generate(ctx context.Context, actor models.User, courseID int64, weeksAhead int) ([]models.Session, error) {
	c, err := course.Owned(ctx, s.store, courseID, actor)
	if err != nil {
		return nil, err
	}
	if weeksAhead <= 0 {
		weeksAhead = s.opts.WeeksAhead
	}
	if weeksAhead > 52 {
		return nil, apperr.New(apperr.ValidationError, "не больше 52 недель вперёд")
	}
	return s.Expand(ctx, *c, weeksAhead)
}

// Expand создаёт недостающие занятия курса на weeksAhead недель. Слот (день, начало) занят любым
// занятием курса, поэтому повторный запуск ничего не дублирует.
func (s *Service) Expand(ctx context.Context, c models.Course, weeksAhead int) ([]models.Session, error) {
	rules, err := s.store.ListActiveSchedules(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list schedules of course %d: %w", c.ID, err)
	}
	return s.ExpandWith(ctx, c, rules, weeksAhead, s.opts.Now())
}

// ExpandWith — развёртка по переданным правилам на момент now.
func (s *Service) ExpandWith(ctx context.Context, c models.Course, rules []models.CourseSchedule, weeksAhead int, now time.Time) ([]models.Session, error) {
	planned := Plan(c, rules, weeksAhead, now, s.opts.Location)
	created := make([]models.Session, 0, len(planned))
	for _, p := range planned {
		exists, err := s.store.SessionStartsAt(ctx, c.ID, p.Date, p.StartTime)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		session.Ensure(&p, now, s.opts.TokenTTL)
		sess, err := s.store.CreateSession(ctx, p)
		if err != nil {
			// параллельная развёртка успела раньше — это не ошибка
			if apperr.KindOf(err) == apperr.ConstraintViolation {
				s.log.Debug("session already generated", zap.Int64("course_id", c.ID), zap.String("date", p.Date.Format(models.DateLayout)))
				continue
			}
			return created, err
		}
		created = append(created, sess)
	}
	if len(created) > 0 {
		metrics.SessionsGenerated.Add(float64(len(created)))
		s.log.Info("sessions generated", zap.Int64("course_id", c.ID), zap.Int("count", len(created)))
	}
	return created, nil
}

// ExpandAll — развёртка для всех активных курсов. Ошибка одного курса не останавливает остальные.
func (s *Service) ExpandAll(ctx context.Context, weeksAhead int) (int, error) {
	if weeksAhead <= 0 {
		weeksAhead = s.opts.WeeksAhead
	}
	courses, err := s.store.ListActiveCourses(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active courses: %w", err)
	}
	total := 0
	var errs []error
	for _, c := range courses {
		created, err := s.Expand(ctx, c, weeksAhead)
		total += len(created)
		if err != nil {
			errs = append(errs, fmt.Errorf("course %d: %w", c.ID, err))
		}
	}
	return total, errors.Join(errs...)
}
