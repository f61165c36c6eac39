package session

import (
	"testing"
	"time"

	"github.com/Spok95/attendance-tracker/internal/models"
)

// понедельник, 1 сентября 2025
var monday = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return time.Date(2025, 9, 1, h, m, 0, 0, time.UTC)
}

func lesson() models.Session {
	return models.Session{
		ID:        7,
		Date:      monday,
		StartTime: models.NewClock(9, 0),
		EndTime:   models.NewClock(10, 0),
	}
}

func TestPhases(t *testing.T) {
	p := DefaultPolicy(time.UTC)
	s := lesson()

	cases := []struct {
		now                    time.Time
		upcoming, active, past bool
		phase                  Phase
	}{
		{at(8, 44), true, false, false, PhaseUpcoming},
		{at(8, 45), false, true, false, PhaseActive},
		{at(9, 30), false, true, false, PhaseActive},
		{at(10, 0), false, true, false, PhaseActive},
		{at(10, 1), false, false, true, PhasePast},
	}
	for _, c := range cases {
		if got := p.IsUpcoming(s, c.now); got != c.upcoming {
			t.Errorf("%s: IsUpcoming=%v, ожидали %v", c.now.Format("15:04"), got, c.upcoming)
		}
		if got := p.IsActive(s, c.now); got != c.active {
			t.Errorf("%s: IsActive=%v, ожидали %v", c.now.Format("15:04"), got, c.active)
		}
		if got := p.IsPast(s, c.now); got != c.past {
			t.Errorf("%s: IsPast=%v, ожидали %v", c.now.Format("15:04"), got, c.past)
		}
		if got := p.Phase(s, c.now); got != c.phase {
			t.Errorf("%s: Phase=%s, ожидали %s", c.now.Format("15:04"), got, c.phase)
		}
	}
}

func TestClosedSessionIsNeverActive(t *testing.T) {
	p := DefaultPolicy(time.UTC)
	s := lesson()
	Close(&s)
	if p.IsActive(s, at(9, 30)) {
		t.Fatal("закрытое занятие не может быть активным")
	}
	if got := p.Phase(s, at(9, 30)); got != PhaseClosed {
		t.Fatalf("ожидали closed, получили %s", got)
	}
	if got := p.Phase(s, at(11, 0)); got != PhasePast {
		t.Fatalf("после окончания фаза past, получили %s", got)
	}
}

func TestWindowUsesPolicyLocation(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	p := DefaultPolicy(msk)
	start, end := p.Window(lesson())
	if !start.Equal(time.Date(2025, 9, 1, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("начало 09:00 MSK = 06:00 UTC, получили %v", start.UTC())
	}
	if end.Sub(start) != time.Hour {
		t.Fatalf("длительность: %v", end.Sub(start))
	}
}

func TestClassify(t *testing.T) {
	p := DefaultPolicy(time.UTC)
	s := lesson()
	if got := p.Classify(s, at(9, 15)); got != models.Present {
		t.Fatalf("ровно 15 минут — ещё PRESENT, получили %s", got)
	}
	if got := p.Classify(s, at(9, 16)); got != models.Late {
		t.Fatalf("после 15 минут — LATE, получили %s", got)
	}
	if got := p.Classify(s, at(8, 50)); got != models.Present {
		t.Fatalf("до начала — PRESENT, получили %s", got)
	}
}

func TestQRIsValid(t *testing.T) {
	s := lesson()
	if QRIsValid(s, at(9, 0)) {
		t.Fatal("без срока токен недействителен")
	}
	Ensure(&s, at(9, 0), 10*time.Second)
	if !QRIsValid(s, at(9, 0).Add(10*time.Second)) {
		t.Fatal("в момент истечения токен ещё действует")
	}
	if QRIsValid(s, at(9, 0).Add(11*time.Second)) {
		t.Fatal("после истечения токен недействителен")
	}
	Close(&s)
	if QRIsValid(s, at(9, 0)) {
		t.Fatal("у закрытого занятия токен недействителен")
	}
}

func TestEnsureKeepsExisting(t *testing.T) {
	s := lesson()
	Ensure(&s, at(9, 0), 10*time.Second)
	tok, exp := s.QRToken, *s.QRExpiry
	Ensure(&s, at(9, 5), 10*time.Second)
	if s.QRToken != tok || !s.QRExpiry.Equal(exp) {
		t.Fatal("Ensure не должен менять существующий токен")
	}
}

func TestRefreshAlwaysNewToken(t *testing.T) {
	s := lesson()
	Refresh(&s, at(9, 0), 10*time.Second)
	first := s.QRToken
	Refresh(&s, at(9, 0), 10*time.Second)
	if s.QRToken == first {
		t.Fatal("два обновления в один момент дали одинаковый токен")
	}
	if !s.QRExpiry.Equal(at(9, 0).Add(10 * time.Second)) {
		t.Fatalf("срок: %v", s.QRExpiry)
	}
}

func TestReopenRotatesToken(t *testing.T) {
	s := lesson()
	Ensure(&s, at(9, 0), 60*time.Second)
	old := s.QRToken
	Close(&s)
	Reopen(&s, at(9, 10), 60*time.Second)
	if s.IsClosed {
		t.Fatal("после Reopen занятие открыто")
	}
	if s.QRToken == old {
		t.Fatal("после Reopen нужен новый токен")
	}
	if !QRIsValid(s, at(9, 10)) {
		t.Fatal("новый токен должен действовать")
	}
}
