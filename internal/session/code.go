package session

import (
	"strconv"
	"strings"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/models"
)

const codeSep = "-"

// Code — код для ручного ввода: "<id>-<token>".
func Code(s models.Session) string {
	return strconv.FormatInt(s.ID, 10) + codeSep + s.QRToken
}

// ParseCode разбирает "<id>-<token>" по первому дефису.
func ParseCode(code string) (int64, string, error) {
	parts := strings.SplitN(strings.TrimSpace(code), codeSep, 2)
	if len(parts) != 2 || parts[1] == "" {
		return 0, "", apperr.New(apperr.MalformedCode, "код должен иметь вид <номер занятия>-<токен>")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", apperr.New(apperr.MalformedCode, "номер занятия должен быть числом")
	}
	return id, parts[1], nil
}
