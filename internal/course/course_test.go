package course_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/course"
	"github.com/Spok95/attendance-tracker/internal/models"
	"github.com/Spok95/attendance-tracker/internal/testutil/memstore"
)

func TestGenerateCode(t *testing.T) {
	code := course.GenerateCode("Math 101: алгебра")
	if !strings.HasPrefix(code, "MATH101") {
		t.Fatalf("ожидали префикс MATH101, получили %q", code)
	}
	if len(code) != len("MATH101")+6 || strings.Contains(code, "-") {
		t.Fatalf("код %q", code)
	}
	if course.GenerateCode("Math 101") == course.GenerateCode("Math 101") {
		t.Fatal("коды одинаковых курсов должны различаться")
	}
	if c := course.GenerateCode("Физика"); len(c) != 6 {
		t.Fatalf("без латиницы остаётся только хвост, получили %q", c)
	}
}

type env struct {
	svc     *course.Service
	store   *memstore.Store
	teacher models.User
	student models.User
}

func newEnv(t *testing.T) env {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	teacher, err := st.CreateUser(ctx, models.User{Email: "t@school.test", Role: models.Teacher})
	if err != nil {
		t.Fatal(err)
	}
	student, err := st.CreateUser(ctx, models.User{Email: "s@school.test", Role: models.Student})
	if err != nil {
		t.Fatal(err)
	}
	return env{svc: course.NewService(st, zap.NewNop()), store: st, teacher: teacher, student: student}
}

func TestCreateAndJoin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.svc.Create(ctx, e.student, course.Input{Name: "Химия"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("ученик: ожидали Forbidden, получили %v", err)
	}
	if _, err := e.svc.Create(ctx, e.teacher, course.Input{Name: "  "}); apperr.KindOf(err) != apperr.ValidationError {
		t.Fatalf("пустое название: ожидали ValidationError, получили %v", err)
	}
	c, err := e.svc.Create(ctx, e.teacher, course.Input{Name: " Chemistry "})
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "Chemistry" || !c.IsActive || c.TeacherID != e.teacher.ID {
		t.Fatalf("курс: %+v", c)
	}

	if _, err := e.svc.Get(ctx, e.student, c.ID); !errors.Is(err, apperr.ErrNotEnrolled) {
		t.Fatalf("до записи: ожидали NotEnrolled, получили %v", err)
	}
	joined, err := e.svc.Join(ctx, e.student, strings.ToLower(c.Code)+"-qr")
	if err != nil {
		t.Fatal(err)
	}
	if joined.ID != c.ID {
		t.Fatalf("записались не на тот курс: %d", joined.ID)
	}
	if _, err := e.svc.Get(ctx, e.student, c.ID); err != nil {
		t.Fatalf("после записи курс виден: %v", err)
	}
	list, err := e.svc.List(ctx, e.student)
	if err != nil || len(list) != 1 {
		t.Fatalf("курсы ученика: %d err=%v", len(list), err)
	}
	students, err := e.svc.Students(ctx, e.teacher, c.ID)
	if err != nil || len(students) != 1 || students[0].ID != e.student.ID {
		t.Fatalf("ученики курса: %+v err=%v", students, err)
	}

	if _, err := e.svc.Join(ctx, e.student, "NOSUCH"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("неизвестный код: ожидали NotFound, получили %v", err)
	}
	if _, err := e.svc.Join(ctx, e.teacher, c.Code); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("преподаватель: ожидали Forbidden, получили %v", err)
	}
}

func TestLeaveAndRejoin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c, err := e.svc.Create(ctx, e.teacher, course.Input{Name: "Biology"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Join(ctx, e.student, c.Code); err != nil {
		t.Fatal(err)
	}
	if err := e.svc.Leave(ctx, e.student, c.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.svc.Leave(ctx, e.student, c.ID); !errors.Is(err, apperr.ErrNotEnrolled) {
		t.Fatalf("повторный выход: ожидали NotEnrolled, получили %v", err)
	}
	if ok, _ := e.store.IsEnrolled(ctx, c.ID, e.student.ID); ok {
		t.Fatal("запись должна быть неактивной")
	}
	if _, err := e.svc.Join(ctx, e.student, c.Code); err != nil {
		t.Fatal(err)
	}
	if ok, _ := e.store.IsEnrolled(ctx, c.ID, e.student.ID); !ok {
		t.Fatal("повторная запись должна реактивировать прежнюю")
	}
}

func TestOwnershipAndUpdate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	other, _ := e.store.CreateUser(ctx, models.User{Email: "t2@school.test", Role: models.Teacher})
	c, err := e.svc.Create(ctx, e.teacher, course.Input{Name: "History"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Update(ctx, other, c.ID, course.Input{Name: "X"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("чужой преподаватель: ожидали Forbidden, получили %v", err)
	}
	off := false
	upd, err := e.svc.Update(ctx, e.teacher, c.ID, course.Input{Name: "World History", IsActive: &off})
	if err != nil {
		t.Fatal(err)
	}
	if upd.Name != "World History" || upd.IsActive {
		t.Fatalf("обновление: %+v", upd)
	}
	if _, err := e.svc.Join(ctx, e.student, c.Code); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("неактивный курс: ожидали NotFound, получили %v", err)
	}
	if err := e.svc.Delete(ctx, other, c.ID, false); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("удаление чужим: ожидали Forbidden, получили %v", err)
	}
	if err := e.svc.Delete(ctx, e.teacher, c.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Get(ctx, e.teacher, c.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("после удаления: ожидали NotFound, получили %v", err)
	}
}
