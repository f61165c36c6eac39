// Package qr — ссылка для отметки и её QR-картинка.
package qr

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
)

const DefaultSize = 256

// MarkPath — путь отметки по QR относительно корня API.
func MarkPath(sessionID int64, token string) string {
	return "/v1/attendance/mark/" + strconv.FormatInt(sessionID, 10) + "/" + token
}

// URL — полная ссылка для отметки. Базовый адрес без схемы получает https://.
func URL(base string, sessionID int64, token string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return base + MarkPath(sessionID, token)
}

// PNG кодирует content в QR (средняя коррекция ошибок).
func PNG(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}

// DataURL — PNG в виде data:image/png;base64,... для встраивания в JSON.
func DataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
