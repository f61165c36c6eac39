// Package memstore — хранилище в памяти для тестов сервисов и HTTP-слоя.
// Повторяет ограничения уникальности схемы БД, все операции под одним мьютексом.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/models"
)

type sessionKey struct {
	courseID   int64
	date       string
	start, end models.Clock
}

type scheduleKey struct {
	courseID int64
	day      models.DayOfWeek
	start    models.Clock
}

type pair struct{ a, b int64 }

type Store struct {
	mu     sync.Mutex
	nextID int64

	users       map[int64]models.User
	courses     map[int64]models.Course
	enrollments map[pair]models.Enrollment // (course, student)
	schedules   map[int64]models.CourseSchedule
	sessions    map[int64]models.Session
	attendance  map[int64]models.Attendance

	// Now — время для CreatedAt/UpdatedAt; по умолчанию time.Now.
	Now func() time.Time
}

func New() *Store {
	return &Store{
		users:       map[int64]models.User{},
		courses:     map[int64]models.Course{},
		enrollments: map[pair]models.Enrollment{},
		schedules:   map[int64]models.CourseSchedule{},
		sessions:    map[int64]models.Session{},
		attendance:  map[int64]models.Attendance{},
		Now:         time.Now,
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func notFound(what string) error { return apperr.Newf(apperr.NotFound, "%s не найден(о)", what) }

func conflict(msg string) error { return apperr.New(apperr.ConstraintViolation, msg) }

// ---- users

func (s *Store) CreateUser(_ context.Context, u models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	for _, x := range s.users {
		if strings.ToLower(x.Email) == email {
			return models.User{}, conflict("users_email_key")
		}
	}
	u.ID = s.id()
	u.CreatedAt = s.Now()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("пользователь")
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, notFound("пользователь")
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return notFound("пользователь")
	}
	for _, a := range s.attendance {
		if a.StudentID == id {
			return conflict("attendances_student_id_fkey")
		}
	}
	for _, c := range s.courses {
		if c.TeacherID == id {
			return conflict("courses_teacher_id_fkey")
		}
	}
	for k := range s.enrollments {
		if k.b == id {
			delete(s.enrollments, k)
		}
	}
	delete(s.users, id)
	return nil
}

// ---- courses

func (s *Store) studentCount(courseID int64) int {
	n := 0
	for k, e := range s.enrollments {
		if k.a == courseID && e.IsActive {
			n++
		}
	}
	return n
}

func (s *Store) CreateCourse(_ context.Context, c models.Course) (models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.courses {
		if x.Code == c.Code {
			return models.Course{}, conflict("courses_code_key")
		}
	}
	c.ID = s.id()
	c.CreatedAt = s.Now()
	c.UpdatedAt = c.CreatedAt
	s.courses[c.ID] = c
	return c, nil
}

func (s *Store) GetCourse(_ context.Context, id int64) (*models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, notFound("курс")
	}
	c.StudentCount = s.studentCount(id)
	return &c, nil
}

func (s *Store) GetCourseByCode(_ context.Context, code string) (*models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.courses {
		if c.Code == code && c.IsActive {
			c.StudentCount = s.studentCount(c.ID)
			return &c, nil
		}
	}
	return nil, notFound("курс")
}

func (s *Store) UpdateCourse(_ context.Context, c models.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.courses[c.ID]
	if !ok {
		return notFound("курс")
	}
	old.Name, old.Description, old.IsActive = c.Name, c.Description, c.IsActive
	old.UpdatedAt = s.Now()
	s.courses[c.ID] = old
	return nil
}

func (s *Store) listCourses(keep func(models.Course) bool) []models.Course {
	out := []models.Course{}
	for _, c := range s.courses {
		if keep(c) {
			c.StudentCount = s.studentCount(c.ID)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListCoursesByTeacher(_ context.Context, teacherID int64) ([]models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCourses(func(c models.Course) bool { return c.TeacherID == teacherID }), nil
}

func (s *Store) ListCoursesByStudent(_ context.Context, studentID int64) ([]models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCourses(func(c models.Course) bool {
		e, ok := s.enrollments[pair{c.ID, studentID}]
		return ok && e.IsActive
	}), nil
}

func (s *Store) ListActiveCourses(_ context.Context) ([]models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCourses(func(c models.Course) bool { return c.IsActive }), nil
}

func (s *Store) DeleteCourse(_ context.Context, id int64, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[id]; !ok {
		return notFound("курс")
	}
	var sessions []int64
	for _, sess := range s.sessions {
		if sess.CourseID == id {
			sessions = append(sessions, sess.ID)
		}
	}
	if !force && s.hasAttendance(sessions...) {
		return apperr.New(apperr.ConstraintViolation, "по курсу есть отметки посещаемости")
	}
	for _, sid := range sessions {
		s.dropSession(sid)
	}
	for k, r := range s.schedules {
		if r.CourseID == id {
			delete(s.schedules, k)
		}
	}
	for k := range s.enrollments {
		if k.a == id {
			delete(s.enrollments, k)
		}
	}
	delete(s.courses, id)
	return nil
}

// ---- enrollments

func (s *Store) Enroll(_ context.Context, courseID, studentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[courseID]; !ok {
		return notFound("курс")
	}
	k := pair{courseID, studentID}
	e, ok := s.enrollments[k]
	if !ok {
		e = models.Enrollment{CourseID: courseID, StudentID: studentID, EnrolledAt: s.Now()}
	}
	e.IsActive = true
	s.enrollments[k] = e
	return nil
}

func (s *Store) Unenroll(_ context.Context, courseID, studentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pair{courseID, studentID}
	e, ok := s.enrollments[k]
	if !ok || !e.IsActive {
		return apperr.New(apperr.NotEnrolled, "вы не записаны на этот курс")
	}
	e.IsActive = false
	s.enrollments[k] = e
	return nil
}

func (s *Store) IsEnrolled(_ context.Context, courseID, studentID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[pair{courseID, studentID}]
	return ok && e.IsActive, nil
}

func (s *Store) enrolledStudents(courseID int64) []models.User {
	out := []models.User{}
	for k, e := range s.enrollments {
		if k.a == courseID && e.IsActive {
			if u, ok := s.users[k.b]; ok {
				out = append(out, u)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) ListEnrolledStudents(_ context.Context, courseID int64) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enrolledStudents(courseID), nil
}

// ---- schedules

func (s *Store) UpsertSchedule(_ context.Context, r models.CourseSchedule) (models.CourseSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scheduleKey{r.CourseID, r.DayOfWeek, r.StartTime}
	for id, x := range s.schedules {
		if (scheduleKey{x.CourseID, x.DayOfWeek, x.StartTime}) == key {
			x.EndTime = r.EndTime
			x.IsActive = true
			s.schedules[id] = x
			return x, nil
		}
	}
	r.ID = s.id()
	r.IsActive = true
	r.CreatedAt = s.Now()
	s.schedules[r.ID] = r
	return r, nil
}

func (s *Store) ListActiveSchedules(_ context.Context, courseID int64) ([]models.CourseSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.CourseSchedule{}
	for _, r := range s.schedules {
		if r.CourseID == courseID && r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (s *Store) DeactivateSchedule(_ context.Context, courseID, scheduleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.schedules[scheduleID]
	if !ok || r.CourseID != courseID {
		return notFound("правило расписания")
	}
	r.IsActive = false
	s.schedules[scheduleID] = r
	return nil
}

// ---- sessions

func keyOf(x models.Session) sessionKey {
	return sessionKey{x.CourseID, x.Date.Format(models.DateLayout), x.StartTime, x.EndTime}
}

func (s *Store) CreateSession(_ context.Context, x models.Session) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(x)
	for _, o := range s.sessions {
		if keyOf(o) == k {
			return models.Session{}, conflict("sessions_course_slot_key")
		}
	}
	x.ID = s.id()
	x.CreatedAt = s.Now()
	x.UpdatedAt = x.CreatedAt
	s.sessions[x.ID] = x
	return x, nil
}

func (s *Store) SessionStartsAt(_ context.Context, courseID int64, date time.Time, start models.Clock) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := date.Format(models.DateLayout)
	for _, o := range s.sessions {
		if o.CourseID == courseID && o.Date.Format(models.DateLayout) == day && o.StartTime == start {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) RetimeScheduleSessions(_ context.Context, rule models.CourseSchedule, from time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, x := range s.sessions {
		if x.ScheduleID == nil || *x.ScheduleID != rule.ID || x.Date.Before(from) ||
			x.StartTime != rule.StartTime || x.EndTime == rule.EndTime || s.hasAttendance(id) {
			continue
		}
		moved := x
		moved.EndTime = rule.EndTime
		if s.slotTaken(moved) {
			continue
		}
		x.EndTime = rule.EndTime
		x.UpdatedAt = s.Now()
		s.sessions[id] = x
		n++
	}
	return n, nil
}

func (s *Store) slotTaken(x models.Session) bool {
	k := keyOf(x)
	for _, o := range s.sessions {
		if o.ID != x.ID && keyOf(o) == k {
			return true
		}
	}
	return false
}

func (s *Store) GetSession(_ context.Context, id int64) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, ok := s.sessions[id]
	if !ok {
		return nil, notFound("занятие")
	}
	return &x, nil
}

func sortSessions(list []models.Session) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Date.Equal(list[j].Date) {
			return list[i].Date.Before(list[j].Date)
		}
		return list[i].StartTime < list[j].StartTime
	})
}

func (s *Store) ListSessionsByCourse(_ context.Context, courseID int64) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Session{}
	for _, x := range s.sessions {
		if x.CourseID == courseID {
			out = append(out, x)
		}
	}
	sortSessions(out)
	return out, nil
}

func (s *Store) ListSessionsByTeacher(_ context.Context, teacherID int64) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Session{}
	for _, x := range s.sessions {
		if c, ok := s.courses[x.CourseID]; ok && c.TeacherID == teacherID {
			out = append(out, x)
		}
	}
	sortSessions(out)
	return out, nil
}

func (s *Store) modifySession(id int64, fn func(*models.Session)) error {
	x, ok := s.sessions[id]
	if !ok {
		return notFound("занятие")
	}
	fn(&x)
	x.UpdatedAt = s.Now()
	s.sessions[id] = x
	return nil
}

func (s *Store) UpdateSession(_ context.Context, x models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(x)
	for _, o := range s.sessions {
		if o.ID != x.ID && keyOf(o) == k {
			return conflict("sessions_course_slot_key")
		}
	}
	return s.modifySession(x.ID, func(o *models.Session) {
		o.Title, o.Description = x.Title, x.Description
		o.Date, o.StartTime, o.EndTime = x.Date, x.StartTime, x.EndTime
	})
}

func (s *Store) UpdateSessionToken(_ context.Context, id int64, tok string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modifySession(id, func(o *models.Session) {
		o.QRToken = tok
		o.QRExpiry = &expiry
	})
}

func (s *Store) SetSessionClosed(_ context.Context, id int64, closed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modifySession(id, func(o *models.Session) { o.IsClosed = closed })
}

func (s *Store) ReopenSession(_ context.Context, id int64, tok string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modifySession(id, func(o *models.Session) {
		o.IsClosed = false
		o.QRToken = tok
		o.QRExpiry = &expiry
	})
}

func (s *Store) hasAttendance(sessionIDs ...int64) bool {
	set := make(map[int64]struct{}, len(sessionIDs))
	for _, id := range sessionIDs {
		set[id] = struct{}{}
	}
	for _, a := range s.attendance {
		if _, ok := set[a.SessionID]; ok {
			return true
		}
	}
	return false
}

func (s *Store) dropSession(id int64) {
	for k, a := range s.attendance {
		if a.SessionID == id {
			delete(s.attendance, k)
		}
	}
	delete(s.sessions, id)
}

func (s *Store) DeleteSession(_ context.Context, id int64, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return notFound("занятие")
	}
	if !force && s.hasAttendance(id) {
		return apperr.New(apperr.ConstraintViolation, "по занятию есть отметки посещаемости")
	}
	s.dropSession(id)
	return nil
}

// CloseEndedSessions сравнивает "настенное" время: now должен быть в таймзоне занятий.
func (s *Store) CloseEndedSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wall := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second(), 0, time.UTC)
	var n int64
	for id, x := range s.sessions {
		if x.IsClosed {
			continue
		}
		if x.EndTime.On(x.Date, time.UTC).Before(wall) {
			x.IsClosed = true
			x.UpdatedAt = s.Now()
			s.sessions[id] = x
			n++
		}
	}
	return n, nil
}

// ---- attendance

func (s *Store) findAttendance(sessionID, studentID int64) (models.Attendance, bool) {
	for _, a := range s.attendance {
		if a.SessionID == sessionID && a.StudentID == studentID {
			return a, true
		}
	}
	return models.Attendance{}, false
}

func (s *Store) InsertAttendance(_ context.Context, a models.Attendance) (models.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[a.SessionID]; !ok {
		return models.Attendance{}, notFound("занятие")
	}
	if _, dup := s.findAttendance(a.SessionID, a.StudentID); dup {
		return models.Attendance{}, apperr.ErrAlreadyRecorded
	}
	a.ID = s.id()
	s.attendance[a.ID] = a
	return a, nil
}

func (s *Store) UpsertAttendance(_ context.Context, a models.Attendance, insertStatus models.Status) (models.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[a.SessionID]; !ok {
		return models.Attendance{}, notFound("занятие")
	}
	if old, ok := s.findAttendance(a.SessionID, a.StudentID); ok {
		old.Status = a.Status
		old.Notes = a.Notes
		s.attendance[old.ID] = old
		return old, nil
	}
	a.ID = s.id()
	a.Status = insertStatus
	s.attendance[a.ID] = a
	return a, nil
}

func (s *Store) DeleteAttendance(_ context.Context, sessionID, attendanceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attendance[attendanceID]
	if !ok || a.SessionID != sessionID {
		return notFound("отметка")
	}
	delete(s.attendance, attendanceID)
	return nil
}

func (s *Store) record(a models.Attendance) models.AttendanceRecord {
	r := models.AttendanceRecord{Attendance: a}
	if u, ok := s.users[a.StudentID]; ok {
		r.StudentName = u.FullName()
		r.StudentEmail = u.Email
	}
	if x, ok := s.sessions[a.SessionID]; ok {
		r.SessionTitle = x.Title
		r.SessionDate = x.Date
	}
	return r
}

func sortRecords(list []models.AttendanceRecord) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CheckInTime.Equal(list[j].CheckInTime) {
			return list[i].CheckInTime.After(list[j].CheckInTime)
		}
		return list[i].ID > list[j].ID
	})
}

func (s *Store) ListSessionAttendance(_ context.Context, sessionID int64) ([]models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.AttendanceRecord{}
	for _, a := range s.attendance {
		if a.SessionID == sessionID {
			out = append(out, s.record(a))
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *Store) ListCourseAttendance(_ context.Context, courseID int64, f models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.AttendanceRecord{}
	needle := strings.ToLower(strings.TrimSpace(f.Student))
	for _, a := range s.attendance {
		x, ok := s.sessions[a.SessionID]
		if !ok || x.CourseID != courseID {
			continue
		}
		if f.From != nil && x.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && x.Date.After(*f.To) {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.StudentID != nil && a.StudentID != *f.StudentID {
			continue
		}
		r := s.record(a)
		if needle != "" &&
			!strings.Contains(strings.ToLower(r.StudentName), needle) &&
			!strings.Contains(strings.ToLower(r.StudentEmail), needle) {
			continue
		}
		out = append(out, r)
	}
	sortRecords(out)
	return out, nil
}

func (s *Store) StudentCourseStats(_ context.Context, studentID int64) ([]models.CourseAttendanceStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	courses := s.listCourses(func(c models.Course) bool {
		e, ok := s.enrollments[pair{c.ID, studentID}]
		return ok && e.IsActive
	})
	out := make([]models.CourseAttendanceStats, 0, len(courses))
	for _, c := range courses {
		st := models.CourseAttendanceStats{Course: c}
		for _, x := range s.sessions {
			if x.CourseID != c.ID {
				continue
			}
			st.TotalSessions++
			if a, ok := s.findAttendance(x.ID, studentID); ok && a.Status != models.Absent {
				st.AttendedSessions++
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Store) SessionStats(_ context.Context, courseID int64) ([]models.SessionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enrolled := s.studentCount(courseID)
	list := []models.Session{}
	for _, x := range s.sessions {
		if x.CourseID == courseID {
			list = append(list, x)
		}
	}
	sortSessions(list)
	out := make([]models.SessionStats, 0, len(list))
	for _, x := range list {
		st := models.SessionStats{Session: x, EnrolledCount: enrolled}
		for _, a := range s.attendance {
			if a.SessionID == x.ID && a.Status != models.Absent {
				st.AttendanceCount++
			}
		}
		out = append(out, st)
	}
	return out, nil
}
