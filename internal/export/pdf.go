package export

import (
	_ "embed"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/Spok95/attendance-tracker/internal/models"
)

var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	dejaVuRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	dejaVuBold []byte
)

// PDFOptions — FontPath заменяет встроенный DejaVu Sans другим TTF-шрифтом
// (тот же файл используется и для жирного начертания).
type PDFOptions struct {
	FontPath string
	Location *time.Location
}

// ширины колонок AttendanceHeader, мм; в сумме — ширина A4 альбомной без полей
var pdfColumns = []float64{45, 55, 50, 22, 35, 35, 35}

const pdfRowHeight = 7.0

// WriteAttendancePDF — таблица отметок курса на альбомных страницах A4 с повтором шапки.
func WriteAttendancePDF(w io.Writer, c models.Course, records []models.AttendanceRecord, at time.Time, opts PDFOptions) error {
	pdf, err := buildAttendancePDF(c, records, at, opts)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

func buildAttendancePDF(c models.Course, records []models.AttendanceRecord, at time.Time, opts PDFOptions) (*fpdf.Fpdf, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.SetTitle("Посещаемость: "+c.Name, true)
	pdf.SetCreator("attendance-tracker", true)

	family := "dejavu"
	if opts.FontPath != "" {
		family = "custom"
		pdf.AddUTF8Font(family, "", opts.FontPath)
		pdf.AddUTF8Font(family, "B", opts.FontPath)
	} else {
		pdf.AddUTF8FontFromBytes(family, "", dejaVuRegular)
		pdf.AddUTF8FontFromBytes(family, "B", dejaVuBold)
	}

	header := func() {
		pdf.SetFont(family, "B", 10)
		pdf.SetFillColor(225, 232, 240)
		for i, h := range AttendanceHeader {
			pdf.CellFormat(pdfColumns[i], pdfRowHeight, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(family, "", 9)
	}

	pdf.AddPage()
	pdf.SetFont(family, "B", 14)
	pdf.CellFormat(0, 9, fmt.Sprintf("Посещаемость: %s (%s)", c.Name, c.Code), "", 1, "L", false, 0, "")
	pdf.SetFont(family, "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Сформировано %s, записей: %d", at.In(loc).Format(checkInLayout), len(records)), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, r := range records {
		if pdf.GetY()+pdfRowHeight > pageHeight-bottom-2 {
			pdf.AddPage()
			header()
		}
		for i, v := range AttendanceRow(r, loc) {
			pdf.CellFormat(pdfColumns[i], pdfRowHeight, fitText(pdf, v, pdfColumns[i]-2), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(records) == 0 {
		pdf.CellFormat(0, pdfRowHeight, "Отметок нет", "1", 1, "C", false, 0, "")
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("build pdf: %w", err)
	}
	return pdf, nil
}

// fitText обрезает строку по ширине ячейки.
func fitText(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
