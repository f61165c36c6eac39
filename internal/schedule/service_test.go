package schedule_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/models"
	"github.com/Spok95/attendance-tracker/internal/schedule"
	"github.com/Spok95/attendance-tracker/internal/testutil/memstore"
)

func setup(t *testing.T, now time.Time, weeks int) (*memstore.Store, *schedule.Service, models.User, models.Course) {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	teacher, err := st.CreateUser(ctx, models.User{Email: "t@school.test", Role: models.Teacher})
	if err != nil {
		t.Fatal(err)
	}
	c, err := st.CreateCourse(ctx, models.Course{Name: "MATH101", Code: "MATH101AB12CD", TeacherID: teacher.ID, IsActive: true})
	if err != nil {
		t.Fatal(err)
	}
	svc := schedule.NewService(st, schedule.Options{
		Location:   time.UTC,
		WeeksAhead: weeks,
		Now:        func() time.Time { return now },
	}, zap.NewNop())
	return st, svc, teacher, c
}

func TestApplyDays_ExpandsAndIsIdempotent(t *testing.T) {
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	st, svc, teacher, c := setup(t, now, 2)
	ctx := context.Background()

	res, err := svc.ApplyDays(ctx, teacher, c.ID, schedule.RuleInput{
		Days:      []models.DayOfWeek{models.Monday},
		StartTime: models.NewClock(9, 0),
		EndTime:   models.NewClock(10, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Schedules) != 1 || len(res.Generated) != 2 {
		t.Fatalf("ожидали 1 правило и 2 занятия, получили %d и %d", len(res.Schedules), len(res.Generated))
	}
	for _, s := range res.Generated {
		if s.QRToken == "" || s.QRExpiry == nil {
			t.Fatalf("сгенерированное занятие без токена: %#v", s)
		}
	}

	again, err := svc.Expand(ctx, c, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Fatalf("повторная развёртка создала %d занятий", len(again))
	}
	all, _ := st.ListSessionsByCourse(ctx, c.ID)
	if len(all) != 2 {
		t.Fatalf("в хранилище %d занятий", len(all))
	}
}

func TestApplyDays_SameDayTwiceReusesRule(t *testing.T) {
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	_, svc, teacher, c := setup(t, now, 1)
	ctx := context.Background()
	in := schedule.RuleInput{
		Days:      []models.DayOfWeek{models.Wednesday, models.Monday, models.Wednesday},
		StartTime: models.NewClock(9, 0),
		EndTime:   models.NewClock(10, 0),
	}
	res, err := svc.ApplyDays(ctx, teacher, c.ID, in)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Schedules) != 2 || res.Schedules[0].DayOfWeek != models.Monday {
		t.Fatalf("ожидали пн и ср по порядку, получили %+v", res.Schedules)
	}
	res2, err := svc.ApplyDays(ctx, teacher, c.ID, in)
	if err != nil {
		t.Fatal(err)
	}
	if res2.Schedules[0].ID != res.Schedules[0].ID || len(res2.Generated) != 0 {
		t.Fatalf("повторная форма должна переиспользовать правила: %+v", res2)
	}
}

func TestApplyDays_NewEndTimeRetimesFutureSessions(t *testing.T) {
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	st, svc, teacher, c := setup(t, now, 2)
	ctx := context.Background()
	apply := func(end models.Clock) schedule.ApplyResult {
		t.Helper()
		res, err := svc.ApplyDays(ctx, teacher, c.ID, schedule.RuleInput{
			Days:      []models.DayOfWeek{models.Monday},
			StartTime: models.NewClock(9, 0),
			EndTime:   end,
		})
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	apply(models.NewClock(10, 0))
	res := apply(models.NewClock(11, 0))
	if len(res.Schedules) != 1 || len(res.Generated) != 0 {
		t.Fatalf("ожидали 1 правило и 0 новых занятий, получили %d и %d", len(res.Schedules), len(res.Generated))
	}
	all, _ := st.ListSessionsByCourse(ctx, c.ID)
	if len(all) != 2 {
		t.Fatalf("ожидали 2 занятия, получили %d", len(all))
	}
	for _, x := range all {
		if x.EndTime != models.NewClock(11, 0) {
			t.Fatalf("занятие %s: ожидали окончание 11:00, получили %s", x.Date.Format(models.DateLayout), x.EndTime)
		}
	}

	// занятие с отметками сохраняет прежнее время и не дублируется
	if _, err := st.InsertAttendance(ctx, models.Attendance{SessionID: all[0].ID, StudentID: teacher.ID + 100,
		CheckInTime: now, Status: models.Present}); err != nil {
		t.Fatal(err)
	}
	apply(models.NewClock(12, 0))
	all, _ = st.ListSessionsByCourse(ctx, c.ID)
	if len(all) != 2 {
		t.Fatalf("ожидали 2 занятия, получили %d", len(all))
	}
	if all[0].EndTime != models.NewClock(11, 0) || all[1].EndTime != models.NewClock(12, 0) {
		t.Fatalf("ожидали 11:00 и 12:00, получили %s и %s", all[0].EndTime, all[1].EndTime)
	}
}

func TestApplyDays_Validation(t *testing.T) {
	_, svc, teacher, c := setup(t, time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC), 1)
	ctx := context.Background()
	bad := []schedule.RuleInput{
		{StartTime: models.NewClock(9, 0), EndTime: models.NewClock(10, 0)},
		{Days: []models.DayOfWeek{6}, StartTime: models.NewClock(9, 0), EndTime: models.NewClock(10, 0)},
		{Days: []models.DayOfWeek{models.Monday}, StartTime: models.NewClock(10, 0), EndTime: models.NewClock(10, 0)},
	}
	for i, in := range bad {
		if _, err := svc.ApplyDays(ctx, teacher, c.ID, in); apperr.KindOf(err) != apperr.ValidationError {
			t.Errorf("случай %d: ожидали ValidationError, получили %v", i, err)
		}
	}
	student := models.User{ID: 500, Role: models.Student}
	if _, err := svc.ApplyDays(ctx, student, c.ID, bad[0]); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("ожидали Forbidden, получили %v", err)
	}
}

func TestDeactivateStopsGeneration(t *testing.T) {
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	st, svc, teacher, c := setup(t, now, 1)
	ctx := context.Background()
	res, err := svc.ApplyDays(ctx, teacher, c.ID, schedule.RuleInput{
		Days: []models.DayOfWeek{models.Monday}, StartTime: models.NewClock(9, 0), EndTime: models.NewClock(10, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Deactivate(ctx, teacher, c.ID, res.Schedules[0].ID); err != nil {
		t.Fatal(err)
	}
	created, err := svc.Expand(ctx, c, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 0 {
		t.Fatalf("неактивное правило дало %d занятий", len(created))
	}
	if all, _ := st.ListSessionsByCourse(ctx, c.ID); len(all) != 1 {
		t.Fatalf("уже созданные занятия должны остаться, получили %d", len(all))
	}
}

func TestExpandAll(t *testing.T) {
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	st, svc, teacher, c := setup(t, now, 1)
	ctx := context.Background()
	if _, err := st.UpsertSchedule(ctx, models.CourseSchedule{
		CourseID: c.ID, DayOfWeek: models.Tuesday, StartTime: models.NewClock(12, 0), EndTime: models.NewClock(13, 0), IsActive: true,
	}); err != nil {
		t.Fatal(err)
	}
	off, _ := st.CreateCourse(ctx, models.Course{Name: "Архив", Code: "OLD000001", TeacherID: teacher.ID, IsActive: false})
	if _, err := st.UpsertSchedule(ctx, models.CourseSchedule{
		CourseID: off.ID, DayOfWeek: models.Tuesday, StartTime: models.NewClock(12, 0), EndTime: models.NewClock(13, 0), IsActive: true,
	}); err != nil {
		t.Fatal(err)
	}
	n, err := svc.ExpandAll(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("ожидали 2 занятия активного курса, получили %d", n)
	}
	if n, _ := svc.ExpandAll(ctx, 2); n != 0 {
		t.Fatalf("повторный запуск создал %d", n)
	}
}
