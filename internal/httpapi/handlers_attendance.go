package httpapi

import (
	"bytes"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/attendance"
	"github.com/Spok95/attendance-tracker/internal/export"
	"github.com/Spok95/attendance-tracker/internal/models"
)

const (
	mimeCSV  = "text/csv; charset=utf-8"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimePDF  = "application/pdf"
)

func (h *handler) checkIn(c *gin.Context) {
	sessionID, err := idParam(c, "sessionID")
	if err != nil {
		h.fail(c, err)
		return
	}
	a, err := h.Attendance.Record(c.Request.Context(), h.checkInFrom(c, sessionID, c.Param("token")))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.checkedIn(c, a)
}

func (h *handler) checkInByCode(c *gin.Context) {
	var in struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, badRequest(err))
		return
	}
	a, err := h.Attendance.RecordByCode(c.Request.Context(), in.Code, h.checkInFrom(c, 0, ""))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.checkedIn(c, a)
}

func (h *handler) checkInFrom(c *gin.Context, sessionID int64, token string) attendance.CheckIn {
	return attendance.CheckIn{
		SessionID: sessionID,
		Token:     token,
		Student:   actor(c),
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func (h *handler) checkedIn(c *gin.Context, a models.Attendance) {
	c.JSON(http.StatusCreated, checkInView{
		Attendance: a,
		Message:    checkInMessage(a, a.CheckInTime.In(h.Location)),
	})
}

func (h *handler) studentReport(c *gin.Context) {
	stats, err := h.Attendance.StudentReport(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]courseStatsView, 0, len(stats))
	for _, s := range stats {
		out = append(out, courseStatsView{
			Course:           s.Course,
			TotalSessions:    s.TotalSessions,
			AttendedSessions: s.AttendedSessions,
			Rate:             s.Rate(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"courses": out})
}

func filterFromQuery(c *gin.Context) (models.AttendanceFilter, error) {
	var f models.AttendanceFilter
	if v := c.Query("from"); v != "" {
		d, err := models.ParseDate(v)
		if err != nil {
			return f, apperr.New(apperr.ValidationError, "from: дата в формате ГГГГ-ММ-ДД")
		}
		f.From = &d
	}
	if v := c.Query("to"); v != "" {
		d, err := models.ParseDate(v)
		if err != nil {
			return f, apperr.New(apperr.ValidationError, "to: дата в формате ГГГГ-ММ-ДД")
		}
		f.To = &d
	}
	f.Status = models.Status(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
	f.Student = strings.TrimSpace(c.Query("student"))
	return f, nil
}

// courseAttendance — список отметок курса с фильтрами; ?format=csv|xlsx|pdf отдаёт файл.
func (h *handler) courseAttendance(c *gin.Context) {
	id, err := idParam(c, "courseID")
	if err != nil {
		h.fail(c, err)
		return
	}
	f, err := filterFromQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	format := strings.ToLower(c.Query("format"))
	switch format {
	case "", "json", "csv", "xlsx", "pdf":
	default:
		h.fail(c, apperr.Newf(apperr.ValidationError, "неизвестный формат %q: csv, xlsx или pdf", format))
		return
	}
	crs, records, err := h.Attendance.List(c.Request.Context(), actor(c), id, f)
	if err != nil {
		h.fail(c, err)
		return
	}

	now := h.Now()
	switch format {
	case "csv":
		var buf bytes.Buffer
		if err := export.WriteAttendanceCSV(&buf, records, h.Location); err != nil {
			h.fail(c, err)
			return
		}
		attachment(c, export.AttendanceFilename(crs.Name, now, "csv"), mimeCSV, buf.Bytes())
	case "xlsx":
		b, err := export.AttendanceXLSX(records, h.Location)
		if err != nil {
			h.fail(c, err)
			return
		}
		attachment(c, export.AttendanceFilename(crs.Name, now, "xlsx"), mimeXLSX, b)
	case "pdf":
		var buf bytes.Buffer
		if err := export.WriteAttendancePDF(&buf, *crs, records, now, h.PDF); err != nil {
			h.fail(c, err)
			return
		}
		attachment(c, export.AttendanceFilename(crs.Name, now, "pdf"), mimePDF, buf.Bytes())
	default:
		c.JSON(http.StatusOK, gin.H{"course": crs, "records": recordViews(records)})
	}
}

func (h *handler) exportSummary(c *gin.Context) {
	id, err := idParam(c, "courseID")
	if err != nil {
		h.fail(c, err)
		return
	}
	sum, err := h.Attendance.Summary(c.Request.Context(), actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	b, err := export.SummaryXLSX(sum)
	if err != nil {
		h.fail(c, err)
		return
	}
	attachment(c, export.SummaryFilename(sum.Course.Code, sum.At), mimeXLSX, b)
}

func attachment(c *gin.Context, filename, contentType string, body []byte) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, contentType, body)
}

func (h *handler) sessionRoster(c *gin.Context) {
	courseID, sessionID, err := courseSessionIDs(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	roster, err := h.Attendance.Roster(c.Request.Context(), actor(c), courseID, sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roster": roster})
}

func clientInfo(c *gin.Context) attendance.ClientInfo {
	return attendance.ClientInfo{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func (h *handler) markAttendance(c *gin.Context) {
	courseID, sessionID, err := courseSessionIDs(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var in attendance.MarkInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, badRequest(err))
		return
	}
	a, err := h.Attendance.Mark(c.Request.Context(), actor(c), courseID, sessionID, in, clientInfo(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *handler) markBulk(c *gin.Context) {
	courseID, sessionID, err := courseSessionIDs(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var in attendance.BulkInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, badRequest(err))
		return
	}
	n, err := h.Attendance.MarkBulk(c.Request.Context(), actor(c), courseID, sessionID, in, clientInfo(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *handler) deleteAttendance(c *gin.Context) {
	courseID, sessionID, err := courseSessionIDs(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	attendanceID, err := idParam(c, "attendanceID")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Attendance.Delete(c.Request.Context(), actor(c), courseID, sessionID, attendanceID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
