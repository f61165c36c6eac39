package attendance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/attendance"
	"github.com/Spok95/attendance-tracker/internal/models"
)

func TestMark_InsertPromotesLateThenUpdateKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.now = time.Date(2025, 9, 1, 9, 40, 0, 0, time.UTC)
	a, err := f.rec.Mark(ctx, f.teacher, f.course.ID, f.sess.ID,
		attendance.MarkInput{StudentID: f.student.ID, Status: models.Present}, attendance.ClientInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != models.Late {
		t.Fatalf("новая отметка PRESENT после порога — LATE, получили %s", a.Status)
	}
	b, err := f.rec.Mark(ctx, f.teacher, f.course.ID, f.sess.ID,
		attendance.MarkInput{StudentID: f.student.ID, Status: models.Present, Notes: " справка "}, attendance.ClientInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if b.ID != a.ID || b.Status != models.Present || b.Notes != "справка" {
		t.Fatalf("исправление должно обновить ту же отметку: %#v", b)
	}
}

func TestMark_IgnoresClosedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.SetSessionClosed(ctx, f.sess.ID, true); err != nil {
		t.Fatal(err)
	}
	f.now = f.now.Add(3 * time.Hour)
	if _, err := f.rec.Mark(ctx, f.teacher, f.course.ID, f.sess.ID,
		attendance.MarkInput{StudentID: f.student.ID, Status: models.Excused}, attendance.ClientInfo{}); err != nil {
		t.Fatalf("ручная отметка в закрытом занятии: %v", err)
	}
}

func TestMark_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.rec.Mark(ctx, f.student, f.course.ID, f.sess.ID,
		attendance.MarkInput{StudentID: f.student.ID, Status: models.Present}, attendance.ClientInfo{}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("ученик: ожидали Forbidden, получили %v", err)
	}
	if _, err := f.rec.Mark(ctx, f.teacher, f.course.ID, f.sess.ID,
		attendance.MarkInput{StudentID: f.outsider.ID, Status: models.Present}, attendance.ClientInfo{}); !errors.Is(err, apperr.ErrNotEnrolled) {
		t.Fatalf("не записан: ожидали NotEnrolled, получили %v", err)
	}
	if _, err := f.rec.Mark(ctx, f.teacher, f.course.ID, f.sess.ID,
		attendance.MarkInput{StudentID: f.student.ID, Status: "HERE"}, attendance.ClientInfo{}); apperr.KindOf(err) != apperr.ValidationError {
		t.Fatalf("статус: ожидали ValidationError, получили %v", err)
	}
	if _, err := f.rec.Mark(ctx, f.teacher, f.course.ID+100, f.sess.ID,
		attendance.MarkInput{StudentID: f.student.ID, Status: models.Present}, attendance.ClientInfo{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("чужой курс: ожидали NotFound, получили %v", err)
	}
}

func TestMarkBulkAndRoster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	second, _ := f.store.CreateUser(ctx, models.User{Email: "s3@school.test", LastName: "Яковлев", Role: models.Student})
	third, _ := f.store.CreateUser(ctx, models.User{Email: "s4@school.test", LastName: "Абрамов", Role: models.Student})
	for _, id := range []int64{second.ID, third.ID} {
		if err := f.store.Enroll(ctx, f.course.ID, id); err != nil {
			t.Fatal(err)
		}
	}
	n, err := f.rec.MarkBulk(ctx, f.teacher, f.course.ID, f.sess.ID, attendance.BulkInput{
		StudentIDs: []int64{second.ID, second.ID, third.ID}, Status: models.Excused,
	}, attendance.ClientInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("ожидали 2 обработанных, получили %d", n)
	}

	roster, err := f.rec.Roster(ctx, f.teacher, f.course.ID, f.sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(roster) != 3 {
		t.Fatalf("в журнале %d строк", len(roster))
	}
	statuses := map[int64]models.Status{}
	for _, e := range roster {
		statuses[e.Student.ID] = e.Status
	}
	if statuses[f.student.ID] != models.Absent || statuses[second.ID] != models.Excused || statuses[third.ID] != models.Excused {
		t.Fatalf("статусы: %v", statuses)
	}
	if _, err := f.rec.MarkBulk(ctx, f.teacher, f.course.ID, f.sess.ID, attendance.BulkInput{Status: models.Present}, attendance.ClientInfo{}); apperr.KindOf(err) != apperr.ValidationError {
		t.Fatalf("пустой список: ожидали ValidationError, получили %v", err)
	}
}

func TestListFiltersAndStudentScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, _ := f.store.CreateUser(ctx, models.User{Email: "s5@school.test", FirstName: "Олег", LastName: "Смирнов", Role: models.Student})
	_ = f.store.Enroll(ctx, f.course.ID, other.ID)
	if _, err := f.rec.Record(ctx, f.checkIn(f.student, f.sess.QRToken, f.now)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.rec.Mark(ctx, f.teacher, f.course.ID, f.sess.ID,
		attendance.MarkInput{StudentID: other.ID, Status: models.Excused}, attendance.ClientInfo{}); err != nil {
		t.Fatal(err)
	}

	_, all, err := f.rec.List(ctx, f.teacher, f.course.ID, models.AttendanceFilter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("преподаватель: %d записей, err=%v", len(all), err)
	}
	_, excused, _ := f.rec.List(ctx, f.teacher, f.course.ID, models.AttendanceFilter{Status: models.Excused})
	if len(excused) != 1 || excused[0].StudentID != other.ID {
		t.Fatalf("фильтр по статусу: %+v", excused)
	}
	_, byName, _ := f.rec.List(ctx, f.teacher, f.course.ID, models.AttendanceFilter{Student: "смирн"})
	if len(byName) != 1 {
		t.Fatalf("поиск по имени: %d", len(byName))
	}
	_, own, err := f.rec.List(ctx, f.student, f.course.ID, models.AttendanceFilter{})
	if err != nil || len(own) != 1 || own[0].StudentID != f.student.ID {
		t.Fatalf("ученик видит только свои: %+v err=%v", own, err)
	}
	if _, _, err := f.rec.List(ctx, f.outsider, f.course.ID, models.AttendanceFilter{}); !errors.Is(err, apperr.ErrNotEnrolled) {
		t.Fatalf("чужой ученик: ожидали NotEnrolled, получили %v", err)
	}
}

func TestStudentReportAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.rec.Record(ctx, f.checkIn(f.student, f.sess.QRToken, f.now))
	if err != nil {
		t.Fatal(err)
	}
	rep, err := f.rec.StudentReport(ctx, f.student)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep) != 1 || rep[0].TotalSessions != 1 || rep[0].AttendedSessions != 1 || rep[0].Rate() != 100 {
		t.Fatalf("отчёт: %+v", rep)
	}
	if _, err := f.rec.StudentReport(ctx, f.teacher); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("ожидали Forbidden, получили %v", err)
	}
	if err := f.rec.Delete(ctx, f.teacher, f.course.ID, f.sess.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.rec.Delete(ctx, f.teacher, f.course.ID, f.sess.ID, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("повторное удаление: ожидали NotFound, получили %v", err)
	}
	// после удаления ученик снова может отметиться
	if _, err := f.rec.Record(ctx, f.checkIn(f.student, f.sess.QRToken, f.now)); err != nil {
		t.Fatal(err)
	}
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.rec.Record(ctx, f.checkIn(f.student, f.sess.QRToken, f.now)); err != nil {
		t.Fatal(err)
	}
	sum, err := f.rec.Summary(ctx, f.teacher, f.course.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Sessions) != 1 || sum.Sessions[0].AttendanceCount != 1 || sum.Sessions[0].EnrolledCount != 1 {
		t.Fatalf("сводка: %+v", sum.Sessions)
	}
	if len(sum.Students) != 1 {
		t.Fatalf("учеников: %d", len(sum.Students))
	}
}
