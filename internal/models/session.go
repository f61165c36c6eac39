package models

import "time"

// Session — одно занятие курса со своим окном времени и QR-токеном.
type Session struct {
	ID          int64      `json:"id"`
	CourseID    int64      `json:"course_id"`
	ScheduleID  *int64     `json:"schedule_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Date        time.Time  `json:"-"`
	StartTime   Clock      `json:"start_time"`
	EndTime     Clock      `json:"end_time"`
	QRToken     string     `json:"-"`
	QRExpiry    *time.Time `json:"qr_expiry,omitempty"`
	IsClosed    bool       `json:"is_closed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// SessionStats — занятие с количеством отметок (для сводного отчёта).
type SessionStats struct {
	Session
	AttendanceCount int `json:"attendance_count"`
	EnrolledCount   int `json:"enrolled_count"`
}

// Rate — доля отметившихся от числа записанных, 0..1.
func (s SessionStats) Rate() float64 {
	if s.EnrolledCount == 0 {
		return 0
	}
	return float64(s.AttendanceCount) / float64(s.EnrolledCount)
}
