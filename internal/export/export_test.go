package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/attendance-tracker/internal/attendance"
	"github.com/Spok95/attendance-tracker/internal/models"
)

var msk = time.FixedZone("MSK", 3*3600)

func sampleRecords() []models.AttendanceRecord {
	day := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	return []models.AttendanceRecord{
		{
			Attendance: models.Attendance{
				ID: 1, SessionID: 10, StudentID: 100,
				CheckInTime: time.Date(2025, 9, 1, 6, 5, 3, 0, time.UTC),
				Status:      models.Present,
			},
			StudentName: "Иван Петров", StudentEmail: "ivan@example.com",
			SessionTitle: "MATH101 - Monday", SessionDate: day,
		},
		{
			Attendance: models.Attendance{
				ID: 2, SessionID: 10, StudentID: 101,
				CheckInTime: time.Date(2025, 9, 1, 6, 30, 0, 0, time.UTC),
				Status:      models.Late,
				Notes:       `автобус, "пробки"`,
			},
			StudentName: "Анна Смирнова", StudentEmail: "anna@example.com",
			SessionTitle: "MATH101 - Monday", SessionDate: day,
		},
	}
}

func TestColumnName(t *testing.T) {
	cases := map[int]string{1: "A", 26: "Z", 27: "AA", 52: "AZ", 703: "AAA"}
	for n, want := range cases {
		if got := columnName(n); got != want {
			t.Fatalf("columnName(%d): ожидали %s, получили %s", n, want, got)
		}
	}
}

func TestFilenames(t *testing.T) {
	at := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	if got := AttendanceFilename("Алгебра 7/А", at, "csv"); got != "attendance_Алгебра_7_А_20250901.csv" {
		t.Fatalf("неожиданное имя файла: %s", got)
	}
	if got := AttendanceFilename("  ", at, "pdf"); got != "attendance_course_20250901.pdf" {
		t.Fatalf("пустое название курса: %s", got)
	}
	if got := SummaryFilename("MATH1A2B3C", at); got != "course_report_MATH1A2B3C_20250901.xlsx" {
		t.Fatalf("неожиданное имя сводки: %s", got)
	}
}

func TestWriteAttendanceCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAttendanceCSV(&buf, sampleRecords(), msk); err != nil {
		t.Fatal(err)
	}
	body := buf.String()
	if !strings.HasPrefix(body, "\ufeff") {
		t.Fatal("ожидали BOM в начале CSV")
	}
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(body, "\ufeff"))).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("ожидали заголовок и 2 строки, получили %d", len(rows))
	}
	if strings.Join(rows[0], "|") != strings.Join(AttendanceHeader, "|") {
		t.Fatalf("неверный заголовок: %v", rows[0])
	}
	want := []string{"Иван Петров", "ivan@example.com", "MATH101 - Monday", "01.09.2025", "01.09.2025 09:05:03", "Присутствовал", ""}
	if strings.Join(rows[1], "|") != strings.Join(want, "|") {
		t.Fatalf("ожидали %v, получили %v", want, rows[1])
	}
	if rows[2][6] != `автобус, "пробки"` || rows[2][5] != "Опоздал" {
		t.Fatalf("заметки и статус должны пережить экранирование: %v", rows[2])
	}
}

func TestAttendanceXLSX(t *testing.T) {
	b, err := AttendanceXLSX(sampleRecords(), msk)
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows("Посещаемость")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("ожидали 3 строки, получили %d", len(rows))
	}
	if rows[0][0] != "Ученик" || rows[2][0] != "Анна Смирнова" || rows[2][5] != "Опоздал" {
		t.Fatalf("неожиданное содержимое: %v", rows)
	}
	if rows[1][4] != "01.09.2025 09:05:03" {
		t.Fatalf("время отметки должно быть в поясе курса: %s", rows[1][4])
	}
}

func TestSummaryXLSX(t *testing.T) {
	day := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	s1 := models.SessionStats{
		Session:         models.Session{ID: 10, Title: "MATH101 - Monday", Date: day, StartTime: models.NewClock(9, 0), EndTime: models.NewClock(10, 0)},
		AttendanceCount: 2, EnrolledCount: 3,
	}
	s2 := models.SessionStats{
		Session:       models.Session{ID: 11, Title: "MATH101 - Monday", Date: day.AddDate(0, 0, 7), StartTime: models.NewClock(9, 0), EndTime: models.NewClock(10, 0)},
		EnrolledCount: 3,
	}
	sum := attendance.Summary{
		Course:   models.Course{ID: 1, Name: "Математика", Code: "MATHAB12CD"},
		Teacher:  models.User{ID: 5, FirstName: "Мария", LastName: "Иванова", Role: models.Teacher},
		Sessions: []models.SessionStats{s1, s2},
		Students: []models.User{
			{ID: 100, FirstName: "Иван", LastName: "Петров"},
			{ID: 101, FirstName: "Анна", LastName: "Смирнова"},
			{ID: 102, Email: "no-name@example.com"},
		},
		Records: sampleRecords(),
	}
	b, err := SummaryXLSX(sum)
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if got := f.GetSheetList(); strings.Join(got, ",") != "Курс,Занятия,Ученики" {
		t.Fatalf("неожиданные листы: %v", got)
	}

	course, _ := f.GetRows("Курс")
	if course[3][1] != "Мария Иванова" || course[4][1] != "2" || course[5][1] != "3" {
		t.Fatalf("неверная сводка курса: %v", course)
	}

	sessions, _ := f.GetRows("Занятия")
	if sessions[1][2] != "09:00" || sessions[1][4] != "2" || sessions[1][5] != "66.7%" {
		t.Fatalf("неверная строка занятия: %v", sessions[1])
	}
	if sessions[2][5] != "0.0%" {
		t.Fatalf("занятие без отметок: ожидали 0.0%%, получили %s", sessions[2][5])
	}

	matrix, _ := f.GetRows("Ученики")
	if matrix[0][4] != "no-name@example.com" {
		t.Fatalf("ученик без имени подписывается email: %v", matrix[0])
	}
	if matrix[1][2] != "Присутствовал" || matrix[1][3] != "Опоздал" {
		t.Fatalf("неверные статусы первого занятия: %v", matrix[1])
	}
	if len(matrix[2]) > 2 && strings.Join(matrix[2][2:], "") != "" {
		t.Fatalf("на втором занятии отметок нет: %v", matrix[2])
	}
}

func TestWriteAttendancePDF(t *testing.T) {
	recs := make([]models.AttendanceRecord, 0, 80)
	for i := 0; i < 80; i++ {
		recs = append(recs, models.AttendanceRecord{
			Attendance: models.Attendance{
				ID: int64(i + 1), CheckInTime: time.Date(2025, 9, 1, 6, 0, 0, 0, time.UTC), Status: models.Present,
				Notes: strings.Repeat("long note ", 10),
			},
			StudentName: "Student", StudentEmail: "student@example.com",
			SessionTitle: "MATH101 - Monday", SessionDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	var buf bytes.Buffer
	c := models.Course{Name: "Math", Code: "MATHAB12CD"}
	if err := WriteAttendancePDF(&buf, c, recs, time.Now(), PDFOptions{Location: msk}); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatal("ожидали PDF-документ")
	}

	buf.Reset()
	if err := WriteAttendancePDF(&buf, c, nil, time.Now(), PDFOptions{}); err != nil {
		t.Fatalf("пустой список тоже выгружается: %v", err)
	}
}

// utf16be — так fpdf пишет текст ячеек для UTF-8 шрифтов.
func utf16be(s string) []byte {
	var out []byte
	for _, u := range utf16.Encode([]rune(s)) {
		out = append(out, byte(u>>8), byte(u))
	}
	return out
}

func TestAttendancePDF_DefaultFontKeepsCyrillic(t *testing.T) {
	c := models.Course{Name: "Математика", Code: "MATHAB12CD"}
	pdf, err := buildAttendancePDF(c, sampleRecords(), time.Now(), PDFOptions{Location: msk})
	if err != nil {
		t.Fatal(err)
	}
	pdf.SetCompression(false)
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.Bytes()
	if !bytes.Contains(out, []byte("/BaseFont /utf8")) {
		t.Fatal("ожидали встроенный UTF-8 шрифт")
	}
	if bytes.Contains(out, []byte("/Helvetica")) {
		t.Fatal("ожидали, что Helvetica не используется")
	}
	for _, want := range []string{"Ученик", "Иван Петров", "Опоздал", "Посещаемость: Математика"} {
		if !bytes.Contains(out, utf16be(want)) {
			t.Fatalf("ожидали текст %q в PDF", want)
		}
	}
}
