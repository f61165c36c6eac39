// Package export — выгрузки посещаемости: CSV, XLSX и PDF.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/Spok95/attendance-tracker/internal/models"
)

const (
	dateLayout    = "02.01.2006"
	checkInLayout = "02.01.2006 15:04:05"
)

// AttendanceHeader — колонки выгрузки отметок.
var AttendanceHeader = []string{"Ученик", "Email", "Занятие", "Дата", "Время отметки", "Статус", "Заметки"}

// AttendanceRow — одна отметка в порядке AttendanceHeader; время отметки в часовом поясе loc.
func AttendanceRow(r models.AttendanceRecord, loc *time.Location) []string {
	if loc == nil {
		loc = time.Local
	}
	return []string{
		r.StudentName,
		r.StudentEmail,
		r.SessionTitle,
		r.SessionDate.Format(dateLayout),
		r.CheckInTime.In(loc).Format(checkInLayout),
		r.Status.Label(),
		r.Notes,
	}
}

// WriteAttendanceCSV пишет CSV с BOM, чтобы Excel открывал кириллицу без перекодировки.
func WriteAttendanceCSV(w io.Writer, records []models.AttendanceRecord, loc *time.Location) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(AttendanceHeader); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(AttendanceRow(r, loc)); err != nil {
			return fmt.Errorf("csv row %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// AttendanceXLSX — книга с одним листом "Посещаемость".
func AttendanceXLSX(records []models.AttendanceRecord, loc *time.Location) ([]byte, error) {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		cells := AttendanceRow(r, loc)
		row := make([]any, len(cells))
		for i, v := range cells {
			row[i] = v
		}
		rows = append(rows, row)
	}
	wb, err := NewWorkbook([]SheetSpec{{Title: "Посещаемость", Header: AttendanceHeader, Rows: rows}})
	if err != nil {
		return nil, err
	}
	return wb.Bytes()
}
