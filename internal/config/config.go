package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	HTTPAddr    string
	LogLevel    string
	Env         string // dev|prod
	SentryDSN   string
	Location    *time.Location
	// BaseURL — внешний адрес сервиса, из него собираются ссылки в QR-кодах.
	BaseURL string

	JWTSigningKey string
	JWTIssuer     string
	AccessTTL     time.Duration

	// RedisAddr пустой — лимитер в памяти процесса.
	RedisAddr       string
	RateLimitPerMin int
	QRTTL           time.Duration
	QRMinTTL        time.Duration
	QRMaxTTL        time.Duration
	SessionGrace    time.Duration
	LateAfter       time.Duration
	WeeksAhead      int
	JobsInterval    time.Duration

	// PDFFont — TTF-шрифт вместо встроенного DejaVu Sans для PDF-выгрузок; пусто — встроенный.
	PDFFont string

	// BotToken и AdminIDs — сводки фоновых задач в Telegram; без токена не шлём.
	BotToken string
	AdminIDs []int64
}

// Load читает окружение; .env подхватывается, если он есть.
func Load() (*Config, error) {
	_ = godotenv.Load()

	tz := getenv("TZ", "Europe/Moscow")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}

	adminIDs, err := parseIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS: %w", err)
	}

	cfg := &Config{
		DatabaseURL:   mustEnv("DATABASE_URL"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		Env:           getenv("ENV", "dev"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Location:      loc,
		BaseURL:       getenv("BASE_URL", "http://localhost:8080"),
		JWTSigningKey: mustEnv("JWT_SIGNING_KEY"),
		JWTIssuer:     getenv("JWT_ISSUER", "attendance-tracker"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		PDFFont:       os.Getenv("PDF_FONT"),
		BotToken:      os.Getenv("BOT_TOKEN"),
		AdminIDs:      adminIDs,
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"ACCESS_TTL", 12 * time.Hour, &cfg.AccessTTL},
		{"QR_TTL", 10 * time.Second, &cfg.QRTTL},
		{"QR_MIN_TTL", 5 * time.Second, &cfg.QRMinTTL},
		{"QR_MAX_TTL", 60 * time.Second, &cfg.QRMaxTTL},
		{"SESSION_GRACE", 15 * time.Minute, &cfg.SessionGrace},
		{"LATE_AFTER", 15 * time.Minute, &cfg.LateAfter},
		{"JOBS_INTERVAL", 5 * time.Minute, &cfg.JobsInterval},
	}
	for _, d := range durations {
		if *d.dst, err = durationEnv(d.key, d.def); err != nil {
			return nil, err
		}
	}
	if cfg.RateLimitPerMin, err = intEnv("RATE_LIMIT_PER_MIN", 60); err != nil {
		return nil, err
	}
	if cfg.WeeksAhead, err = intEnv("WEEKS_AHEAD", 4); err != nil {
		return nil, err
	}
	if cfg.QRMinTTL > cfg.QRMaxTTL || cfg.QRTTL < cfg.QRMinTTL || cfg.QRTTL > cfg.QRMaxTTL {
		return nil, fmt.Errorf("QR_TTL %s вне диапазона [%s, %s]", cfg.QRTTL, cfg.QRMinTTL, cfg.QRMaxTTL)
	}
	return cfg, nil
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("required env " + k + " is empty")
	}
	return v
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", k)
	}
	return d, nil
}

func intEnv(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be positive", k)
	}
	return n, nil
}

func parseIDs(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
