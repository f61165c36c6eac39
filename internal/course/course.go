// Package course — курсы, запись учеников и проверки прав доступа к курсу.
package course

import (
	"context"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/models"
)

type Getter interface {
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
}

type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, courseID, studentID int64) (bool, error)
}

type Store interface {
	Getter
	EnrollmentChecker
	CreateCourse(ctx context.Context, c models.Course) (models.Course, error)
	GetCourseByCode(ctx context.Context, code string) (*models.Course, error)
	UpdateCourse(ctx context.Context, c models.Course) error
	ListCoursesByTeacher(ctx context.Context, teacherID int64) ([]models.Course, error)
	ListCoursesByStudent(ctx context.Context, studentID int64) ([]models.Course, error)
	DeleteCourse(ctx context.Context, id int64, force bool) error
	Enroll(ctx context.Context, courseID, studentID int64) error
	Unenroll(ctx context.Context, courseID, studentID int64) error
	ListEnrolledStudents(ctx context.Context, courseID int64) ([]models.User, error)
}

// Owned — курс, которым может управлять actor (только его преподаватель).
func Owned(ctx context.Context, g Getter, courseID int64, actor models.User) (*models.Course, error) {
	c, err := g.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !actor.IsTeacher() || c.TeacherID != actor.ID {
		return nil, apperr.New(apperr.Forbidden, "управлять курсом может только его преподаватель")
	}
	return c, nil
}

type VisibilityStore interface {
	Getter
	EnrollmentChecker
}

// Visible — курс доступен преподавателю-владельцу и записанным ученикам.
func Visible(ctx context.Context, s VisibilityStore, courseID int64, actor models.User) (*models.Course, error) {
	c, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if actor.IsTeacher() {
		if c.TeacherID != actor.ID {
			return nil, apperr.New(apperr.Forbidden, "это не ваш курс")
		}
		return c, nil
	}
	ok, err := s.IsEnrolled(ctx, courseID, actor.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.NotEnrolled, "вы не записаны на этот курс")
	}
	return c, nil
}

type Input struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

func (in Input) validate() error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperr.New(apperr.ValidationError, "название курса обязательно")
	}
	if len([]rune(name)) > 100 {
		return apperr.New(apperr.ValidationError, "название курса длиннее 100 символов")
	}
	return nil
}

type Service struct {
	store Store
	log   *zap.Logger
}

func NewService(store Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

func (s *Service) Create(ctx context.Context, actor models.User, in Input) (models.Course, error) {
	if !actor.IsTeacher() {
		return models.Course{}, apperr.New(apperr.Forbidden, "создавать курсы могут только преподаватели")
	}
	if err := in.validate(); err != nil {
		return models.Course{}, err
	}
	c, err := s.store.CreateCourse(ctx, models.Course{
		Name:        strings.TrimSpace(in.Name),
		Code:        GenerateCode(in.Name),
		Description: in.Description,
		TeacherID:   actor.ID,
		IsActive:    true,
	})
	if err != nil {
		return models.Course{}, err
	}
	s.log.Info("course created", zap.Int64("course_id", c.ID), zap.String("code", c.Code), zap.Int64("teacher_id", actor.ID))
	return c, nil
}

func (s *Service) Update(ctx context.Context, actor models.User, id int64, in Input) (models.Course, error) {
	c, err := Owned(ctx, s.store, id, actor)
	if err != nil {
		return models.Course{}, err
	}
	if err := in.validate(); err != nil {
		return models.Course{}, err
	}
	c.Name = strings.TrimSpace(in.Name)
	c.Description = in.Description
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	if err := s.store.UpdateCourse(ctx, *c); err != nil {
		return models.Course{}, err
	}
	return *c, nil
}

func (s *Service) Get(ctx context.Context, actor models.User, id int64) (*models.Course, error) {
	return Visible(ctx, s.store, id, actor)
}

func (s *Service) List(ctx context.Context, actor models.User) ([]models.Course, error) {
	if actor.IsTeacher() {
		return s.store.ListCoursesByTeacher(ctx, actor.ID)
	}
	return s.store.ListCoursesByStudent(ctx, actor.ID)
}

// Delete удаляет курс явно: при наличии истории посещаемости — только с force.
func (s *Service) Delete(ctx context.Context, actor models.User, id int64, force bool) error {
	if _, err := Owned(ctx, s.store, id, actor); err != nil {
		return err
	}
	if err := s.store.DeleteCourse(ctx, id, force); err != nil {
		return err
	}
	s.log.Info("course deleted", zap.Int64("course_id", id), zap.Bool("force", force))
	return nil
}

// Join — запись ученика по коду курса. Принимает и QR-вариант "КОД-что угодно".
func (s *Service) Join(ctx context.Context, actor models.User, code string) (*models.Course, error) {
	if !actor.IsStudent() {
		return nil, apperr.New(apperr.Forbidden, "записываться на курсы могут только ученики")
	}
	code = strings.TrimSpace(code)
	if i := strings.Index(code, "-"); i >= 0 {
		code = code[:i]
	}
	if code == "" {
		return nil, apperr.New(apperr.ValidationError, "укажите код курса")
	}
	c, err := s.store.GetCourseByCode(ctx, strings.ToUpper(code))
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return nil, apperr.New(apperr.NotFound, "курс с таким кодом не найден")
		}
		return nil, err
	}
	if err := s.store.Enroll(ctx, c.ID, actor.ID); err != nil {
		return nil, err
	}
	s.log.Info("student enrolled", zap.Int64("course_id", c.ID), zap.Int64("student_id", actor.ID))
	return c, nil
}

// Leave — мягкий выход: запись деактивируется, история посещаемости остаётся.
func (s *Service) Leave(ctx context.Context, actor models.User, courseID int64) error {
	if !actor.IsStudent() {
		return apperr.New(apperr.Forbidden, "покинуть курс может только ученик")
	}
	return s.store.Unenroll(ctx, courseID, actor.ID)
}

func (s *Service) Students(ctx context.Context, actor models.User, courseID int64) ([]models.User, error) {
	if _, err := Owned(ctx, s.store, courseID, actor); err != nil {
		return nil, err
	}
	return s.store.ListEnrolledStudents(ctx, courseID)
}

// GenerateCode — "СЛАГ" (до 10 букв/цифр) + 6 hex-символов. Без дефисов: дефис отделяет хвост QR-кода.
func GenerateCode(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if b.Len() >= 10 {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	u := uuid.New()
	return b.String() + strings.ToUpper(hex.EncodeToString(u[:3]))
}
