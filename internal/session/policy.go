// Package session — жизненный цикл занятия: окно времени, QR-токен, закрытие/открытие.
package session

import (
	"time"

	"github.com/Spok95/attendance-tracker/internal/models"
	"github.com/Spok95/attendance-tracker/internal/token"
)

// Policy — параметры, от которых зависят вычисляемые состояния занятия.
// Все предикаты — чистые функции от (занятие, now), часы не читаются.
type Policy struct {
	// Grace — за сколько до начала занятие уже считается активным.
	Grace time.Duration
	// LateAfter — после скольких минут от начала отметка становится LATE.
	LateAfter time.Duration
	Location  *time.Location
}

func DefaultPolicy(loc *time.Location) Policy {
	if loc == nil {
		loc = time.Local
	}
	return Policy{Grace: 15 * time.Minute, LateAfter: 15 * time.Minute, Location: loc}
}

func (p Policy) loc() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

// Window — начало и конец занятия в таймзоне политики.
func (p Policy) Window(s models.Session) (start, end time.Time) {
	return s.StartTime.On(s.Date, p.loc()), s.EndTime.On(s.Date, p.loc())
}

func (p Policy) IsUpcoming(s models.Session, now time.Time) bool {
	start, _ := p.Window(s)
	return now.Before(start.Add(-p.Grace))
}

func (p Policy) IsActive(s models.Session, now time.Time) bool {
	if s.IsClosed {
		return false
	}
	start, end := p.Window(s)
	return !now.Before(start.Add(-p.Grace)) && !now.After(end)
}

// IsPast не зависит от флага закрытия.
func (p Policy) IsPast(s models.Session, now time.Time) bool {
	_, end := p.Window(s)
	return now.After(end)
}

// QRIsValid — токен ещё принимается: занятие не закрыто и срок не истёк.
func QRIsValid(s models.Session, now time.Time) bool {
	if s.IsClosed || s.QRExpiry == nil {
		return false
	}
	return !now.After(*s.QRExpiry)
}

type Phase string

const (
	PhaseUpcoming Phase = "upcoming"
	PhaseActive   Phase = "active"
	PhasePast     Phase = "past"
	// PhaseClosed — закрыто вручную, но время занятия ещё идёт.
	PhaseClosed Phase = "closed"
)

func (p Policy) Phase(s models.Session, now time.Time) Phase {
	switch {
	case p.IsPast(s, now):
		return PhasePast
	case p.IsUpcoming(s, now):
		return PhaseUpcoming
	case p.IsActive(s, now):
		return PhaseActive
	default:
		return PhaseClosed
	}
}

// Classify — статус новой отметки в момент checkIn.
func (p Policy) Classify(s models.Session, checkIn time.Time) models.Status {
	start, _ := p.Window(s)
	if checkIn.After(start.Add(p.LateAfter)) {
		return models.Late
	}
	return models.Present
}

// Ensure заполняет токен и срок, если их нет (новое занятие).
func Ensure(s *models.Session, now time.Time, ttl time.Duration) {
	if s.QRToken == "" {
		s.QRToken = token.Generate()
	}
	if s.QRExpiry == nil {
		exp := token.Expiry(now, ttl)
		s.QRExpiry = &exp
	}
}

// Refresh всегда выдаёт новый токен, даже при повторном вызове в тот же момент.
func Refresh(s *models.Session, now time.Time, ttl time.Duration) {
	s.QRToken = token.Generate()
	exp := token.Expiry(now, ttl)
	s.QRExpiry = &exp
}

func Close(s *models.Session) {
	s.IsClosed = true
}

// Reopen выдаёт свежий токен: токен, показанный до закрытия, больше не принимается.
func Reopen(s *models.Session, now time.Time, ttl time.Duration) {
	s.IsClosed = false
	Refresh(s, now, ttl)
}
