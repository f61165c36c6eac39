// Package apperr — ожидаемые, пользовательские исходы операций.
// Всё, что не *Error, считается непредвиденным сбоем.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	NotFound            Kind = "not_found"
	InvalidToken        Kind = "invalid_token"
	Expired             Kind = "expired"
	SessionClosed       Kind = "session_closed"
	NotEnrolled         Kind = "not_enrolled"
	AlreadyRecorded     Kind = "already_recorded"
	MalformedCode       Kind = "malformed_code"
	ValidationError     Kind = "validation_error"
	ConstraintViolation Kind = "constraint_violation"
	Forbidden           Kind = "forbidden"
	Unauthorized        Kind = "unauthorized"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is — сравнение только по Kind, чтобы errors.Is(err, ErrNotFound) работал для любых сообщений.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound            = &Error{Kind: NotFound}
	ErrInvalidToken        = &Error{Kind: InvalidToken}
	ErrExpired             = &Error{Kind: Expired}
	ErrSessionClosed       = &Error{Kind: SessionClosed}
	ErrNotEnrolled         = &Error{Kind: NotEnrolled}
	ErrAlreadyRecorded     = &Error{Kind: AlreadyRecorded}
	ErrMalformedCode       = &Error{Kind: MalformedCode}
	ErrValidation          = &Error{Kind: ValidationError}
	ErrConstraintViolation = &Error{Kind: ConstraintViolation}
	ErrForbidden           = &Error{Kind: Forbidden}
	ErrUnauthorized        = &Error{Kind: Unauthorized}
)

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf — вид ожидаемой ошибки; "" для непредвиденных.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message — текст для пользователя.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	if e != nil {
		return defaultMessages[e.Kind]
	}
	return "внутренняя ошибка"
}

var defaultMessages = map[Kind]string{
	NotFound:            "не найдено",
	InvalidToken:        "неверный QR-код, попробуйте ещё раз",
	Expired:             "срок действия QR-кода истёк, попросите преподавателя обновить его",
	SessionClosed:       "занятие закрыто преподавателем, отметиться больше нельзя",
	NotEnrolled:         "вы не записаны на этот курс",
	AlreadyRecorded:     "вы уже отметились на этом занятии",
	MalformedCode:       "неверный код посещаемости",
	ValidationError:     "некорректные данные",
	ConstraintViolation: "запись уже существует",
	Forbidden:           "недостаточно прав",
	Unauthorized:        "требуется авторизация",
}
