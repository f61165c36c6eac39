package export

import (
	"fmt"

	"github.com/Spok95/attendance-tracker/internal/attendance"
	"github.com/Spok95/attendance-tracker/internal/models"
)

// SummaryXLSX — сводный отчёт по курсу: лист "Курс" с итогами, "Занятия" со статистикой
// каждого занятия и "Ученики" — матрица занятие × ученик со статусами.
func SummaryXLSX(s attendance.Summary) ([]byte, error) {
	course := SheetSpec{
		Title:  "Курс",
		Header: []string{"Параметр", "Значение"},
		Rows: [][]any{
			{"Курс", s.Course.Name},
			{"Код", s.Course.Code},
			{"Преподаватель", s.Teacher.FullName()},
			{"Всего занятий", len(s.Sessions)},
			{"Всего учеников", len(s.Students)},
		},
	}

	sessions := SheetSpec{
		Title:  "Занятия",
		Header: []string{"Занятие", "Дата", "Начало", "Конец", "Отметились", "Посещаемость"},
		Rows:   make([][]any, 0, len(s.Sessions)),
	}
	for _, st := range s.Sessions {
		sessions.Rows = append(sessions.Rows, []any{
			st.Title,
			st.Date.Format(dateLayout),
			st.StartTime.String(),
			st.EndTime.String(),
			st.AttendanceCount,
			fmt.Sprintf("%.1f%%", st.Rate()*100),
		})
	}

	// статус ученика на занятии; пусто — отметки нет
	marks := make(map[int64]map[int64]models.Status, len(s.Sessions))
	for _, r := range s.Records {
		if marks[r.SessionID] == nil {
			marks[r.SessionID] = make(map[int64]models.Status)
		}
		marks[r.SessionID][r.StudentID] = r.Status
	}
	matrix := SheetSpec{
		Title:  "Ученики",
		Header: []string{"Занятие", "Дата"},
		Rows:   make([][]any, 0, len(s.Sessions)),
	}
	for _, u := range s.Students {
		matrix.Header = append(matrix.Header, u.FullName())
	}
	for _, st := range s.Sessions {
		row := []any{st.Title, st.Date.Format(dateLayout)}
		for _, u := range s.Students {
			label := ""
			if status, ok := marks[st.ID][u.ID]; ok {
				label = status.Label()
			}
			row = append(row, label)
		}
		matrix.Rows = append(matrix.Rows, row)
	}

	wb, err := NewWorkbook([]SheetSpec{course, sessions, matrix})
	if err != nil {
		return nil, err
	}
	return wb.Bytes()
}
