package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("mark: %w", New(Expired, "истёк"))
	if !errors.Is(err, ErrExpired) {
		t.Fatal("ожидали errors.Is(err, ErrExpired)")
	}
	if errors.Is(err, ErrInvalidToken) {
		t.Fatal("Expired не должен совпадать с InvalidToken")
	}
	if KindOf(err) != Expired {
		t.Fatalf("KindOf: получили %q", KindOf(err))
	}
}

func TestKindOfUnexpected(t *testing.T) {
	if k := KindOf(errors.New("boom")); k != "" {
		t.Fatalf("ожидали пустой Kind, получили %q", k)
	}
	if Message(errors.New("boom")) != "внутренняя ошибка" {
		t.Fatal("для непредвиденной ошибки нужен общий текст")
	}
}

func TestMessageFallsBackToDefault(t *testing.T) {
	if got := Message(ErrSessionClosed); got != defaultMessages[SessionClosed] {
		t.Fatalf("получили %q", got)
	}
	if got := Message(New(NotFound, "занятие не найдено")); got != "занятие не найдено" {
		t.Fatalf("получили %q", got)
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(ConstraintViolation, "дубль", cause)
	if !errors.Is(err, cause) {
		t.Fatal("ожидали доступ к исходной ошибке через Unwrap")
	}
}
