package schedule

import (
	"testing"
	"time"

	"github.com/Spok95/attendance-tracker/internal/models"
)

var math = models.Course{ID: 1, Name: "MATH101", IsActive: true}

func mondayRule() models.CourseSchedule {
	return models.CourseSchedule{
		ID: 10, CourseID: 1, DayOfWeek: models.Monday,
		StartTime: models.NewClock(9, 0), EndTime: models.NewClock(10, 0), IsActive: true,
	}
}

func TestPlan_TwoWeeksFromMondayMorning(t *testing.T) {
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC) // понедельник
	got := Plan(math, []models.CourseSchedule{mondayRule()}, 2, now, time.UTC)
	if len(got) != 2 {
		t.Fatalf("ожидали 2 занятия, получили %d", len(got))
	}
	want := []string{"2025-09-01", "2025-09-08"}
	for i, s := range got {
		if d := s.Date.Format(models.DateLayout); d != want[i] {
			t.Errorf("занятие %d: дата %s, ожидали %s", i, d, want[i])
		}
		if s.StartTime != models.NewClock(9, 0) || s.EndTime != models.NewClock(10, 0) {
			t.Errorf("занятие %d: время %s-%s", i, s.StartTime, s.EndTime)
		}
		if s.ScheduleID == nil || *s.ScheduleID != 10 {
			t.Errorf("занятие %d: нет ссылки на правило", i)
		}
		if s.Title != "MATH101 - Monday" {
			t.Errorf("название %q", s.Title)
		}
	}
}

func TestPlan_TodayAlreadyOverMovesToNextWeek(t *testing.T) {
	now := time.Date(2025, 9, 1, 10, 30, 0, 0, time.UTC)
	got := Plan(math, []models.CourseSchedule{mondayRule()}, 2, now, time.UTC)
	if len(got) != 1 || got[0].Date.Format(models.DateLayout) != "2025-09-08" {
		t.Fatalf("ожидали одно занятие 2025-09-08, получили %+v", got)
	}
}

func TestPlan_LaterWeekday(t *testing.T) {
	now := time.Date(2025, 9, 3, 12, 0, 0, 0, time.UTC) // среда
	got := Plan(math, []models.CourseSchedule{mondayRule()}, 1, now, time.UTC)
	if len(got) != 1 || got[0].Date.Format(models.DateLayout) != "2025-09-08" {
		t.Fatalf("ожидали ближайший понедельник, получили %+v", got)
	}
}

func TestPlan_UsesLocation(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	// воскресенье 22:00 UTC = понедельник 01:00 MSK
	now := time.Date(2025, 8, 31, 22, 0, 0, 0, time.UTC)
	got := Plan(math, []models.CourseSchedule{mondayRule()}, 1, now, msk)
	if len(got) != 1 || got[0].Date.Format(models.DateLayout) != "2025-09-01" {
		t.Fatalf("в Москве уже понедельник, получили %+v", got)
	}
}

func TestPlan_SkipsInactiveAndEmpty(t *testing.T) {
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	r := mondayRule()
	r.IsActive = false
	if got := Plan(math, []models.CourseSchedule{r}, 4, now, time.UTC); len(got) != 0 {
		t.Fatalf("неактивное правило дало %d занятий", len(got))
	}
	if got := Plan(math, []models.CourseSchedule{mondayRule()}, 0, now, time.UTC); len(got) != 0 {
		t.Fatalf("weeksAhead=0 дал %d занятий", len(got))
	}
}
