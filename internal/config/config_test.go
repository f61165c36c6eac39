package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/attendance")
	t.Setenv("JWT_SIGNING_KEY", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("TZ", "UTC")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.WeeksAhead != 4 || cfg.RateLimitPerMin != 60 {
		t.Fatalf("значения по умолчанию: %+v", cfg)
	}
	if cfg.QRTTL != 10*time.Second || cfg.QRMinTTL != 5*time.Second || cfg.QRMaxTTL != time.Minute {
		t.Fatalf("QR: %v %v %v", cfg.QRTTL, cfg.QRMinTTL, cfg.QRMaxTTL)
	}
	if cfg.LateAfter != 15*time.Minute || cfg.SessionGrace != 15*time.Minute {
		t.Fatalf("пороги: %v %v", cfg.LateAfter, cfg.SessionGrace)
	}
	if cfg.Location.String() != "UTC" {
		t.Fatalf("таймзона: %v", cfg.Location)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("QR_TTL", "30s")
	t.Setenv("WEEKS_AHEAD", "8")
	t.Setenv("ADMIN_IDS", "1, 2,3")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.QRTTL != 30*time.Second || cfg.WeeksAhead != 8 {
		t.Fatalf("получили %v %d", cfg.QRTTL, cfg.WeeksAhead)
	}
	if len(cfg.AdminIDs) != 3 || cfg.AdminIDs[2] != 3 {
		t.Fatalf("ADMIN_IDS: %v", cfg.AdminIDs)
	}
}

func TestLoad_BadValues(t *testing.T) {
	for k, v := range map[string]string{
		"QR_TTL":      "2m",
		"LATE_AFTER":  "soon",
		"WEEKS_AHEAD": "-1",
		"ADMIN_IDS":   "1,x",
	} {
		t.Run(k, func(t *testing.T) {
			setRequired(t)
			t.Setenv(k, v)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s: ожидали ошибку", k, v)
			}
		})
	}
}

func TestLoad_PanicsWithoutRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SIGNING_KEY", "secret")
	defer func() {
		if recover() == nil {
			t.Fatal("ожидали панику без DATABASE_URL")
		}
	}()
	_, _ = Load()
}
