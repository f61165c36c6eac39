package attendance

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/course"
	"github.com/Spok95/attendance-tracker/internal/models"
)

// ClientInfo — откуда пришёл запрос (сохраняется в новых отметках).
type ClientInfo struct {
	IP        string
	UserAgent string
}

type MarkInput struct {
	StudentID int64         `json:"student_id"`
	Status    models.Status `json:"status"`
	Notes     string        `json:"notes"`
}

type BulkInput struct {
	StudentIDs []int64       `json:"student_ids"`
	Status     models.Status `json:"status"`
	Notes      string        `json:"notes"`
}

func (r *Recorder) ownedSession(ctx context.Context, actor models.User, courseID, sessionID int64) (*models.Session, error) {
	if _, err := course.Owned(ctx, r.store, courseID, actor); err != nil {
		return nil, err
	}
	sess, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.CourseID != courseID {
		return nil, apperr.New(apperr.NotFound, "занятие не найдено")
	}
	return sess, nil
}

// Mark — ручная отметка преподавателем. Токен, срок и закрытие не проверяются,
// уникальность (session, student) сохраняется через upsert.
func (r *Recorder) Mark(ctx context.Context, actor models.User, courseID, sessionID int64, in MarkInput, client ClientInfo) (models.Attendance, error) {
	sess, err := r.ownedSession(ctx, actor, courseID, sessionID)
	if err != nil {
		return models.Attendance{}, err
	}
	return r.mark(ctx, *sess, in.StudentID, in.Status, in.Notes, client)
}

// MarkBulk — один статус сразу нескольким ученикам. Возвращает число обработанных.
func (r *Recorder) MarkBulk(ctx context.Context, actor models.User, courseID, sessionID int64, in BulkInput, client ClientInfo) (int, error) {
	sess, err := r.ownedSession(ctx, actor, courseID, sessionID)
	if err != nil {
		return 0, err
	}
	if len(in.StudentIDs) == 0 {
		return 0, apperr.New(apperr.ValidationError, "выберите учеников")
	}
	seen := make(map[int64]struct{}, len(in.StudentIDs))
	n := 0
	for _, id := range in.StudentIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, err := r.mark(ctx, *sess, id, in.Status, in.Notes, client); err != nil {
			return n, err
		}
		n++
	}
	r.log.Info("bulk attendance", zap.Int64("session_id", sess.ID), zap.Int("count", n), zap.String("status", string(in.Status)))
	return n, nil
}

func (r *Recorder) mark(ctx context.Context, sess models.Session, studentID int64, status models.Status, notes string, client ClientInfo) (models.Attendance, error) {
	if !status.Valid() {
		return models.Attendance{}, apperr.Newf(apperr.ValidationError, "неизвестный статус %q", status)
	}
	enrolled, err := r.store.IsEnrolled(ctx, sess.CourseID, studentID)
	if err != nil {
		return models.Attendance{}, err
	}
	if !enrolled {
		return models.Attendance{}, apperr.Newf(apperr.NotEnrolled, "ученик %d не записан на курс", studentID)
	}
	now := r.now()
	insertStatus := status
	if status == models.Present {
		insertStatus = r.policy.Classify(sess, now)
	}
	return r.store.UpsertAttendance(ctx, models.Attendance{
		SessionID:   sess.ID,
		StudentID:   studentID,
		CheckInTime: now,
		Status:      status,
		Notes:       strings.TrimSpace(notes),
		IPAddress:   client.IP,
		DeviceInfo:  truncate(client.UserAgent, maxDeviceInfo),
	}, insertStatus)
}

func (r *Recorder) Delete(ctx context.Context, actor models.User, courseID, sessionID, attendanceID int64) error {
	if _, err := r.ownedSession(ctx, actor, courseID, sessionID); err != nil {
		return err
	}
	if err := r.store.DeleteAttendance(ctx, sessionID, attendanceID); err != nil {
		return err
	}
	r.log.Info("attendance deleted", zap.Int64("session_id", sessionID), zap.Int64("attendance_id", attendanceID))
	return nil
}

// Roster — журнал занятия: все записанные ученики, у кого нет отметки — ABSENT.
func (r *Recorder) Roster(ctx context.Context, actor models.User, courseID, sessionID int64) ([]models.RosterEntry, error) {
	sess, err := r.ownedSession(ctx, actor, courseID, sessionID)
	if err != nil {
		return nil, err
	}
	students, err := r.store.ListEnrolledStudents(ctx, courseID)
	if err != nil {
		return nil, err
	}
	records, err := r.store.ListSessionAttendance(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	byStudent := make(map[int64]models.Attendance, len(records))
	for _, rec := range records {
		byStudent[rec.StudentID] = rec.Attendance
	}
	out := make([]models.RosterEntry, 0, len(students))
	for _, st := range students {
		e := models.RosterEntry{Student: st, Status: models.Absent}
		if a, ok := byStudent[st.ID]; ok {
			a := a
			e.Attendance = &a
			e.Status = a.Status
		}
		out = append(out, e)
	}
	return out, nil
}

// List — отметки курса с фильтрами; ученик видит только свои.
func (r *Recorder) List(ctx context.Context, actor models.User, courseID int64, f models.AttendanceFilter) (*models.Course, []models.AttendanceRecord, error) {
	c, err := course.Visible(ctx, r.store, courseID, actor)
	if err != nil {
		return nil, nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, nil, apperr.Newf(apperr.ValidationError, "неизвестный статус %q", f.Status)
	}
	if actor.IsStudent() {
		id := actor.ID
		f.StudentID = &id
	}
	list, err := r.store.ListCourseAttendance(ctx, courseID, f)
	if err != nil {
		return nil, nil, err
	}
	return c, list, nil
}

// StudentReport — посещаемость ученика по всем его курсам.
func (r *Recorder) StudentReport(ctx context.Context, actor models.User) ([]models.CourseAttendanceStats, error) {
	if !actor.IsStudent() {
		return nil, apperr.New(apperr.Forbidden, "отчёт доступен только ученикам")
	}
	return r.store.StudentCourseStats(ctx, actor.ID)
}

// Summary — данные для сводной выгрузки по курсу.
type Summary struct {
	Course   models.Course
	Teacher  models.User
	Sessions []models.SessionStats
	Students []models.User
	Records  []models.AttendanceRecord
	At       time.Time
}

func (r *Recorder) Summary(ctx context.Context, actor models.User, courseID int64) (Summary, error) {
	c, err := course.Owned(ctx, r.store, courseID, actor)
	if err != nil {
		return Summary{}, err
	}
	stats, err := r.store.SessionStats(ctx, courseID)
	if err != nil {
		return Summary{}, err
	}
	students, err := r.store.ListEnrolledStudents(ctx, courseID)
	if err != nil {
		return Summary{}, err
	}
	records, err := r.store.ListCourseAttendance(ctx, courseID, models.AttendanceFilter{})
	if err != nil {
		return Summary{}, err
	}
	return Summary{Course: *c, Teacher: actor, Sessions: stats, Students: students, Records: records, At: r.now()}, nil
}
