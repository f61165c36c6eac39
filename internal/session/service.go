package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/course"
	"github.com/Spok95/attendance-tracker/internal/metrics"
	"github.com/Spok95/attendance-tracker/internal/models"
)

type Store interface {
	course.Getter
	course.EnrollmentChecker
	CreateSession(ctx context.Context, s models.Session) (models.Session, error)
	GetSession(ctx context.Context, id int64) (*models.Session, error)
	ListSessionsByCourse(ctx context.Context, courseID int64) ([]models.Session, error)
	ListSessionsByTeacher(ctx context.Context, teacherID int64) ([]models.Session, error)
	UpdateSession(ctx context.Context, s models.Session) error
	UpdateSessionToken(ctx context.Context, id int64, token string, expiry time.Time) error
	SetSessionClosed(ctx context.Context, id int64, closed bool) error
	ReopenSession(ctx context.Context, id int64, token string, expiry time.Time) error
	DeleteSession(ctx context.Context, id int64, force bool) error
	// CloseEndedSessions закрывает незакрытые занятия с date+end_time < now.
	// now передаётся в таймзоне занятий.
	CloseEndedSessions(ctx context.Context, now time.Time) (int64, error)
}

type Options struct {
	Policy     Policy
	DefaultTTL time.Duration
	MinTTL     time.Duration
	MaxTTL     time.Duration
	Now        func() time.Time
}

func (o *Options) setDefaults() {
	if o.DefaultTTL <= 0 {
		o.DefaultTTL = 10 * time.Second
	}
	if o.MinTTL <= 0 {
		o.MinTTL = 5 * time.Second
	}
	if o.MaxTTL <= 0 {
		o.MaxTTL = 60 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Policy.Location == nil {
		o.Policy.Location = time.Local
	}
}

type Service struct {
	store Store
	opts  Options
	log   *zap.Logger
}

func NewService(store Store, opts Options, log *zap.Logger) *Service {
	opts.setDefaults()
	return &Service{store: store, opts: opts, log: log}
}

func (s *Service) Policy() Policy { return s.opts.Policy }

type Input struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Date        string       `json:"date"`
	StartTime   models.Clock `json:"start_time"`
	EndTime     models.Clock `json:"end_time"`
}

func (s *Service) parseInput(in Input, checkPast bool) (time.Time, error) {
	if strings.TrimSpace(in.Title) == "" {
		return time.Time{}, apperr.New(apperr.ValidationError, "название занятия обязательно")
	}
	date, err := models.ParseDate(in.Date)
	if err != nil {
		return time.Time{}, apperr.New(apperr.ValidationError, "дата в формате ГГГГ-ММ-ДД")
	}
	if !in.StartTime.Before(in.EndTime) {
		return time.Time{}, apperr.New(apperr.ValidationError, "время окончания должно быть позже начала")
	}
	if checkPast && date.Before(models.DateOf(s.opts.Now(), s.opts.Policy.Location)) {
		return time.Time{}, apperr.New(apperr.ValidationError, "дата занятия не может быть в прошлом")
	}
	return date, nil
}

func (s *Service) Create(ctx context.Context, actor models.User, courseID int64, in Input) (models.Session, error) {
	if _, err := course.Owned(ctx, s.store, courseID, actor); err != nil {
		return models.Session{}, err
	}
	date, err := s.parseInput(in, true)
	if err != nil {
		return models.Session{}, err
	}
	sess := models.Session{
		CourseID:    courseID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Date:        date,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
	}
	Ensure(&sess, s.opts.Now(), s.opts.DefaultTTL)
	created, err := s.store.CreateSession(ctx, sess)
	if err != nil {
		if apperr.KindOf(err) == apperr.ConstraintViolation {
			return models.Session{}, apperr.New(apperr.ConstraintViolation, "занятие на это время уже существует")
		}
		return models.Session{}, err
	}
	s.log.Info("session created", zap.Int64("session_id", created.ID), zap.Int64("course_id", courseID))
	return created, nil
}

// owned — занятие курса courseID, которым управляет actor.
func (s *Service) owned(ctx context.Context, actor models.User, courseID, sessionID int64) (*models.Session, error) {
	if _, err := course.Owned(ctx, s.store, courseID, actor); err != nil {
		return nil, err
	}
	return s.inCourse(ctx, courseID, sessionID)
}

func (s *Service) inCourse(ctx context.Context, courseID, sessionID int64) (*models.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.CourseID != courseID {
		return nil, apperr.New(apperr.NotFound, "занятие не найдено")
	}
	return sess, nil
}

// Owned — занятие для операций преподавателя (журнал, выгрузки).
func (s *Service) Owned(ctx context.Context, actor models.User, courseID, sessionID int64) (*models.Session, error) {
	return s.owned(ctx, actor, courseID, sessionID)
}

func (s *Service) Get(ctx context.Context, actor models.User, courseID, sessionID int64) (*models.Session, error) {
	if _, err := course.Visible(ctx, s.store, courseID, actor); err != nil {
		return nil, err
	}
	return s.inCourse(ctx, courseID, sessionID)
}

func (s *Service) ListByCourse(ctx context.Context, actor models.User, courseID int64) ([]models.Session, error) {
	if _, err := course.Visible(ctx, s.store, courseID, actor); err != nil {
		return nil, err
	}
	return s.store.ListSessionsByCourse(ctx, courseID)
}

// Overview — все занятия преподавателя, разложенные по фазам на текущий момент.
func (s *Service) Overview(ctx context.Context, actor models.User) (map[Phase][]models.Session, error) {
	if !actor.IsTeacher() {
		return nil, apperr.New(apperr.Forbidden, "страница доступна только преподавателям")
	}
	list, err := s.store.ListSessionsByTeacher(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	out := map[Phase][]models.Session{
		PhaseUpcoming: {}, PhaseActive: {}, PhasePast: {}, PhaseClosed: {},
	}
	for _, sess := range list {
		ph := s.opts.Policy.Phase(sess, now)
		out[ph] = append(out[ph], sess)
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, actor models.User, courseID, sessionID int64, in Input) (models.Session, error) {
	sess, err := s.owned(ctx, actor, courseID, sessionID)
	if err != nil {
		return models.Session{}, err
	}
	newDate := strings.TrimSpace(in.Date) != sess.Date.Format(models.DateLayout)
	date, err := s.parseInput(in, newDate)
	if err != nil {
		return models.Session{}, err
	}
	sess.Title = strings.TrimSpace(in.Title)
	sess.Description = in.Description
	sess.Date = date
	sess.StartTime = in.StartTime
	sess.EndTime = in.EndTime
	if err := s.store.UpdateSession(ctx, *sess); err != nil {
		return models.Session{}, err
	}
	return *sess, nil
}

// RefreshToken — новый токен на ttl; ttl=0 — значение по умолчанию.
func (s *Service) RefreshToken(ctx context.Context, actor models.User, courseID, sessionID int64, ttl time.Duration) (models.Session, error) {
	if ttl == 0 {
		ttl = s.opts.DefaultTTL
	}
	if ttl < s.opts.MinTTL || ttl > s.opts.MaxTTL {
		return models.Session{}, apperr.Newf(apperr.ValidationError,
			"срок действия QR-кода от %d до %d секунд", int(s.opts.MinTTL.Seconds()), int(s.opts.MaxTTL.Seconds()))
	}
	sess, err := s.owned(ctx, actor, courseID, sessionID)
	if err != nil {
		return models.Session{}, err
	}
	Refresh(sess, s.opts.Now(), ttl)
	if err := s.store.UpdateSessionToken(ctx, sess.ID, sess.QRToken, *sess.QRExpiry); err != nil {
		return models.Session{}, err
	}
	return *sess, nil
}

func (s *Service) Close(ctx context.Context, actor models.User, courseID, sessionID int64) (models.Session, error) {
	sess, err := s.owned(ctx, actor, courseID, sessionID)
	if err != nil {
		return models.Session{}, err
	}
	Close(sess)
	if err := s.store.SetSessionClosed(ctx, sess.ID, true); err != nil {
		return models.Session{}, err
	}
	s.log.Info("session closed", zap.Int64("session_id", sess.ID))
	return *sess, nil
}

func (s *Service) Reopen(ctx context.Context, actor models.User, courseID, sessionID int64) (models.Session, error) {
	sess, err := s.owned(ctx, actor, courseID, sessionID)
	if err != nil {
		return models.Session{}, err
	}
	Reopen(sess, s.opts.Now(), s.opts.DefaultTTL)
	if err := s.store.ReopenSession(ctx, sess.ID, sess.QRToken, *sess.QRExpiry); err != nil {
		return models.Session{}, err
	}
	s.log.Info("session reopened", zap.Int64("session_id", sess.ID))
	return *sess, nil
}

// Delete — явное удаление; занятие с отметками удаляется только с force.
func (s *Service) Delete(ctx context.Context, actor models.User, courseID, sessionID int64, force bool) error {
	if _, err := s.owned(ctx, actor, courseID, sessionID); err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, sessionID, force); err != nil {
		return err
	}
	s.log.Info("session deleted", zap.Int64("session_id", sessionID), zap.Bool("force", force))
	return nil
}

// AutoClose закрывает все закончившиеся, но не закрытые занятия. Повторный запуск ничего не меняет.
func (s *Service) AutoClose(ctx context.Context) (int64, error) {
	now := s.opts.Now().In(s.opts.Policy.Location)
	n, err := s.store.CloseEndedSessions(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("auto-close sessions: %w", err)
	}
	if n > 0 {
		metrics.SessionsClosed.Add(float64(n))
		s.log.Info("sessions auto-closed", zap.Int64("count", n))
	}
	return n, nil
}
