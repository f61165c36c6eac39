package models

import (
	"fmt"
	"time"
)

// DayOfWeek — 0..5, понедельник..суббота. Воскресенья в расписании нет.
type DayOfWeek int

const (
	Monday DayOfWeek = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

func (d DayOfWeek) Valid() bool { return d >= Monday && d <= Saturday }

// Weekday переводит в нумерацию пакета time (воскресенье = 0).
func (d DayOfWeek) Weekday() time.Weekday {
	return time.Weekday((int(d) + 1) % 7)
}

func (d DayOfWeek) String() string {
	if !d.Valid() {
		return fmt.Sprintf("DayOfWeek(%d)", int(d))
	}
	return d.Weekday().String()
}

// DayOfWeekFrom — обратное преобразование; для воскресенья ok=false.
func DayOfWeekFrom(wd time.Weekday) (DayOfWeek, bool) {
	if wd == time.Sunday {
		return 0, false
	}
	return DayOfWeek(int(wd) - 1), true
}

// CourseSchedule — еженедельное правило, по которому генерируются занятия.
type CourseSchedule struct {
	ID        int64     `json:"id"`
	CourseID  int64     `json:"course_id"`
	DayOfWeek DayOfWeek `json:"day_of_week"`
	StartTime Clock     `json:"start_time"`
	EndTime   Clock     `json:"end_time"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
