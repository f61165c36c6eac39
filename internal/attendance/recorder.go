// Package attendance — отметки посещаемости: по QR-токену, по ручному коду и вручную преподавателем.
package attendance

import (
	"context"
	"crypto/subtle"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/course"
	"github.com/Spok95/attendance-tracker/internal/metrics"
	"github.com/Spok95/attendance-tracker/internal/models"
	"github.com/Spok95/attendance-tracker/internal/session"
)

const maxDeviceInfo = 255

type Store interface {
	course.Getter
	course.EnrollmentChecker
	GetSession(ctx context.Context, id int64) (*models.Session, error)
	// InsertAttendance — вставка или отказ: при существующей паре (session, student)
	// возвращает apperr.AlreadyRecorded, атомарно на уровне хранилища.
	InsertAttendance(ctx context.Context, a models.Attendance) (models.Attendance, error)
	// UpsertAttendance обновляет статус и заметку существующей отметки или вставляет новую
	// со статусом insertStatus.
	UpsertAttendance(ctx context.Context, a models.Attendance, insertStatus models.Status) (models.Attendance, error)
	DeleteAttendance(ctx context.Context, sessionID, attendanceID int64) error
	ListSessionAttendance(ctx context.Context, sessionID int64) ([]models.AttendanceRecord, error)
	ListCourseAttendance(ctx context.Context, courseID int64, f models.AttendanceFilter) ([]models.AttendanceRecord, error)
	ListEnrolledStudents(ctx context.Context, courseID int64) ([]models.User, error)
	StudentCourseStats(ctx context.Context, studentID int64) ([]models.CourseAttendanceStats, error)
	SessionStats(ctx context.Context, courseID int64) ([]models.SessionStats, error)
}

type Recorder struct {
	store  Store
	policy session.Policy
	now    func() time.Time
	log    *zap.Logger
}

func NewRecorder(store Store, policy session.Policy, now func() time.Time, log *zap.Logger) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{store: store, policy: policy, now: now, log: log}
}

// CheckIn — попытка ученика отметиться.
type CheckIn struct {
	SessionID int64
	Token     string
	Student   models.User
	ClientIP  string
	UserAgent string
	// At — момент отметки; нулевое значение — текущее время.
	At time.Time
}

// Record проверяет токен и записывает отметку. Порядок проверок фиксирован,
// первая неудачная определяет причину отказа:
// занятие → токен → срок → закрыто → запись на курс → повторная отметка.
func (r *Recorder) Record(ctx context.Context, in CheckIn) (models.Attendance, error) {
	a, err := r.record(ctx, in)
	metrics.ObserveCheckIn(string(apperr.KindOf(err)), err)
	return a, err
}

func (r *Recorder) record(ctx context.Context, in CheckIn) (models.Attendance, error) {
	at := in.At
	if at.IsZero() {
		at = r.now()
	}

	sess, err := r.store.GetSession(ctx, in.SessionID)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return models.Attendance{}, apperr.New(apperr.NotFound, "занятие не найдено")
		}
		return models.Attendance{}, err
	}
	if subtle.ConstantTimeCompare([]byte(sess.QRToken), []byte(in.Token)) != 1 {
		return models.Attendance{}, apperr.ErrInvalidToken
	}
	// срок проверяется отдельно от флага закрытия, чтобы закрытое занятие
	// с действующим токеном давало SessionClosed, а не Expired
	if sess.QRExpiry == nil || at.After(*sess.QRExpiry) {
		return models.Attendance{}, apperr.ErrExpired
	}
	if sess.IsClosed {
		return models.Attendance{}, apperr.ErrSessionClosed
	}
	if !in.Student.IsStudent() {
		return models.Attendance{}, apperr.New(apperr.Forbidden, "отмечаться могут только ученики")
	}
	enrolled, err := r.store.IsEnrolled(ctx, sess.CourseID, in.Student.ID)
	if err != nil {
		return models.Attendance{}, err
	}
	if !enrolled {
		return models.Attendance{}, apperr.ErrNotEnrolled
	}

	rec, err := r.store.InsertAttendance(ctx, models.Attendance{
		SessionID:   sess.ID,
		StudentID:   in.Student.ID,
		CheckInTime: at,
		Status:      r.policy.Classify(*sess, at),
		IPAddress:   in.ClientIP,
		DeviceInfo:  truncate(in.UserAgent, maxDeviceInfo),
	})
	if err != nil {
		return models.Attendance{}, err
	}
	r.log.Info("attendance recorded",
		zap.Int64("session_id", sess.ID),
		zap.Int64("student_id", in.Student.ID),
		zap.String("status", string(rec.Status)))
	return rec, nil
}

// RecordByCode — отметка по ручному коду "<id>-<token>".
func (r *Recorder) RecordByCode(ctx context.Context, code string, in CheckIn) (models.Attendance, error) {
	id, tok, err := session.ParseCode(code)
	if err != nil {
		metrics.ObserveCheckIn(string(apperr.KindOf(err)), err)
		return models.Attendance{}, err
	}
	in.SessionID = id
	in.Token = tok
	return r.Record(ctx, in)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// не режем посреди UTF-8 символа
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
