// Package schedule — еженедельные правила курса и развёртка их в конкретные занятия.
package schedule

import (
	"fmt"
	"time"

	"github.com/Spok95/attendance-tracker/internal/models"
)

// Plan — занятия, которые правила rules дают на weeksAhead недель вперёд от now.
// Чистая функция: ни токенов, ни проверки существующих занятий.
//
// Для каждого правила берётся ближайшая дата с нужным днём недели начиная с сегодняшней;
// если день сегодняшний, но занятие уже закончилось — через неделю. Дальше шаг 7 дней,
// пока дата < сегодня + weeksAhead*7.
func Plan(c models.Course, rules []models.CourseSchedule, weeksAhead int, now time.Time, loc *time.Location) []models.Session {
	if weeksAhead <= 0 || len(rules) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	today := models.DateOf(local, loc)
	limit := today.AddDate(0, 0, weeksAhead*7)
	nowClock := models.ClockOf(local)

	var out []models.Session
	for _, r := range rules {
		if !r.IsActive || !r.DayOfWeek.Valid() {
			continue
		}
		ahead := (int(r.DayOfWeek.Weekday()) - int(today.Weekday()) + 7) % 7
		if ahead == 0 && nowClock > r.EndTime {
			ahead = 7
		}
		scheduleID := r.ID
		for d := today.AddDate(0, 0, ahead); d.Before(limit); d = d.AddDate(0, 0, 7) {
			out = append(out, models.Session{
				CourseID:   c.ID,
				ScheduleID: &scheduleID,
				Title:      Title(c, r.DayOfWeek),
				Date:       d,
				StartTime:  r.StartTime,
				EndTime:    r.EndTime,
			})
		}
	}
	return out
}

func Title(c models.Course, d models.DayOfWeek) string {
	return fmt.Sprintf("%s - %s", c.Name, d)
}
