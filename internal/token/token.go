// Package token — одноразовые непрозрачные токены занятий для QR-кодов.
package token

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Len — длина токена: 128 бит в hex.
const Len = 32

// Generate — случайный токен из UUIDv4 без дефисов: дефис зарезервирован под разделитель
// в ручном коде "<id>-<token>".
func Generate() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Expiry — момент, до которого токен действителен.
func Expiry(now time.Time, d time.Duration) time.Time {
	return now.Add(d)
}

// Valid — строка похожа на сгенерированный токен (только [0-9a-f], нужная длина).
func Valid(tok string) bool {
	if len(tok) != Len {
		return false
	}
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
