package models

import "time"

type Status string

const (
	Present Status = "PRESENT"
	Late    Status = "LATE"
	Excused Status = "EXCUSED"
	Absent  Status = "ABSENT"
)

func (s Status) Valid() bool {
	switch s {
	case Present, Late, Excused, Absent:
		return true
	}
	return false
}

var statusLabels = map[Status]string{
	Present: "Присутствовал",
	Late:    "Опоздал",
	Excused: "Уважительная причина",
	Absent:  "Отсутствовал",
}

// Label — подпись статуса для выгрузок.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

type Attendance struct {
	ID          int64     `json:"id"`
	SessionID   int64     `json:"session_id"`
	StudentID   int64     `json:"student_id"`
	CheckInTime time.Time `json:"check_in_time"`
	Status      Status    `json:"status"`
	Notes       string    `json:"notes"`
	IPAddress   string    `json:"ip_address,omitempty"`
	DeviceInfo  string    `json:"device_info,omitempty"`
}

// AttendanceRecord — отметка вместе с данными ученика и занятия (списки, выгрузки).
type AttendanceRecord struct {
	Attendance
	StudentName  string    `json:"student_name"`
	StudentEmail string    `json:"student_email"`
	SessionTitle string    `json:"session_title"`
	SessionDate  time.Time `json:"-"`
}

// AttendanceFilter — фильтры списка отметок курса; пустые поля не применяются.
type AttendanceFilter struct {
	From      *time.Time
	To        *time.Time
	Status    Status
	Student   string
	StudentID *int64
}

// RosterEntry — строка журнала занятия: ученик и его статус (ABSENT, если отметки нет).
type RosterEntry struct {
	Student    User        `json:"student"`
	Attendance *Attendance `json:"attendance,omitempty"`
	Status     Status      `json:"status"`
}

// CourseAttendanceStats — посещаемость ученика по одному курсу.
type CourseAttendanceStats struct {
	Course           Course `json:"course"`
	TotalSessions    int    `json:"total_sessions"`
	AttendedSessions int    `json:"attended_sessions"`
}

// Rate — процент посещённых занятий.
func (s CourseAttendanceStats) Rate() float64 {
	if s.TotalSessions == 0 {
		return 0
	}
	return float64(s.AttendedSessions) / float64(s.TotalSessions) * 100
}
