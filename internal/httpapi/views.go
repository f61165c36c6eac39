package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Spok95/attendance-tracker/internal/models"
	"github.com/Spok95/attendance-tracker/internal/qr"
	"github.com/Spok95/attendance-tracker/internal/session"
)

// sessionView — занятие с вычисляемыми полями. Код отметки и ссылка видны только преподавателю.
type sessionView struct {
	models.Session
	Date           string        `json:"date"`
	Phase          session.Phase `json:"phase"`
	QRValid        bool          `json:"qr_valid"`
	AttendanceCode string        `json:"attendance_code,omitempty"`
	QRURL          string        `json:"qr_url,omitempty"`
}

func (h *handler) sessionView(viewer models.User, s models.Session) sessionView {
	now := h.Now()
	v := sessionView{
		Session: s,
		Date:    s.Date.Format(models.DateLayout),
		Phase:   h.Sessions.Policy().Phase(s, now),
		QRValid: session.QRIsValid(s, now),
	}
	if viewer.IsTeacher() && s.QRToken != "" {
		v.AttendanceCode = session.Code(s)
		v.QRURL = qr.URL(h.BaseURL, s.ID, s.QRToken)
	}
	return v
}

func (h *handler) sessionViews(viewer models.User, list []models.Session) []sessionView {
	out := make([]sessionView, 0, len(list))
	for _, s := range list {
		out = append(out, h.sessionView(viewer, s))
	}
	return out
}

// qrPayload — картинка и код для показа на экране аудитории.
func (h *handler) qrPayload(viewer models.User, s models.Session) (gin.H, error) {
	url := qr.URL(h.BaseURL, s.ID, s.QRToken)
	png, err := qr.PNG(url, qr.DefaultSize)
	if err != nil {
		return nil, err
	}
	return gin.H{
		"session":         h.sessionView(viewer, s),
		"qr_url":          url,
		"qr_image":        qr.DataURL(png),
		"attendance_code": session.Code(s),
		"expires_at":      s.QRExpiry,
	}, nil
}

type recordView struct {
	models.AttendanceRecord
	SessionDate string `json:"session_date"`
}

func recordViews(list []models.AttendanceRecord) []recordView {
	out := make([]recordView, 0, len(list))
	for _, r := range list {
		out = append(out, recordView{AttendanceRecord: r, SessionDate: r.SessionDate.Format(models.DateLayout)})
	}
	return out
}

type courseStatsView struct {
	Course           models.Course `json:"course"`
	TotalSessions    int           `json:"total_sessions"`
	AttendedSessions int           `json:"attended_sessions"`
	Rate             float64       `json:"rate"`
}

type checkInView struct {
	Attendance models.Attendance `json:"attendance"`
	Message    string            `json:"message"`
}

func checkInMessage(a models.Attendance, at time.Time) string {
	if a.Status == models.Late {
		return "вы отмечены с опозданием в " + at.Format("15:04")
	}
	return "вы отмечены на занятии"
}
