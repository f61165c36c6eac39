// Package app собирает сервисы из конфигурации и хранилища; общий код для cmd/server и cmd/manage.
package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/attendance-tracker/internal/attendance"
	"github.com/Spok95/attendance-tracker/internal/auth"
	"github.com/Spok95/attendance-tracker/internal/config"
	"github.com/Spok95/attendance-tracker/internal/course"
	"github.com/Spok95/attendance-tracker/internal/db"
	"github.com/Spok95/attendance-tracker/internal/export"
	"github.com/Spok95/attendance-tracker/internal/httpapi"
	"github.com/Spok95/attendance-tracker/internal/jobs"
	"github.com/Spok95/attendance-tracker/internal/notify"
	"github.com/Spok95/attendance-tracker/internal/ratelimit"
	"github.com/Spok95/attendance-tracker/internal/schedule"
	"github.com/Spok95/attendance-tracker/internal/session"
)

type Services struct {
	Auth       *auth.Service
	Courses    *course.Service
	Schedules  *schedule.Service
	Sessions   *session.Service
	Attendance *attendance.Recorder
	Policy     session.Policy
}

func NewServices(cfg *config.Config, store *db.Store, log *zap.Logger) *Services {
	policy := session.Policy{Grace: cfg.SessionGrace, LateAfter: cfg.LateAfter, Location: cfg.Location}
	return &Services{
		Auth: auth.NewService(store, auth.Options{
			SigningKey: cfg.JWTSigningKey,
			Issuer:     cfg.JWTIssuer,
			AccessTTL:  cfg.AccessTTL,
		}, log.Named("auth")),
		Courses: course.NewService(store, log.Named("course")),
		Schedules: schedule.NewService(store, schedule.Options{
			Location:   cfg.Location,
			TokenTTL:   cfg.QRTTL,
			WeeksAhead: cfg.WeeksAhead,
		}, log.Named("schedule")),
		Sessions: session.NewService(store, session.Options{
			Policy:     policy,
			DefaultTTL: cfg.QRTTL,
			MinTTL:     cfg.QRMinTTL,
			MaxTTL:     cfg.QRMaxTTL,
		}, log.Named("session")),
		Attendance: attendance.NewRecorder(store, policy, nil, log.Named("attendance")),
		Policy:     policy,
	}
}

// AutoManage — фоновая задача закрытия и генерации занятий.
func (s *Services) AutoManage(cfg *config.Config, n notify.Notifier, log *zap.Logger) *jobs.AutoManage {
	return &jobs.AutoManage{
		Sessions:   s.Sessions,
		Schedules:  s.Schedules,
		Notifier:   n,
		WeeksAhead: cfg.WeeksAhead,
		Log:        log.Named("jobs"),
	}
}

// Limiter — Redis, если задан REDIS_ADDR и отвечает; иначе лимитер в памяти.
func Limiter(ctx context.Context, cfg *config.Config, log *zap.Logger) (ratelimit.Limiter, func()) {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemory(cfg.RateLimitPerMin, cfg.RateLimitPerMin), func() {}
	}
	client := ratelimit.NewRedisClient(cfg.RedisAddr)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, using in-memory rate limiter", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = client.Close()
		return ratelimit.NewMemory(cfg.RateLimitPerMin, cfg.RateLimitPerMin), func() {}
	}
	return ratelimit.NewRedis(client, "attendance:checkin", cfg.RateLimitPerMin, time.Minute), func() { _ = client.Close() }
}

// HTTPDeps — зависимости HTTP API поверх собранных сервисов.
func (s *Services) HTTPDeps(cfg *config.Config, store *db.Store, limiter ratelimit.Limiter, log *zap.Logger) *httpapi.Deps {
	return &httpapi.Deps{
		Auth:       s.Auth,
		Courses:    s.Courses,
		Schedules:  s.Schedules,
		Sessions:   s.Sessions,
		Attendance: s.Attendance,
		Health:     store,
		Limiter:    limiter,
		BaseURL:    cfg.BaseURL,
		Location:   cfg.Location,
		PDF:        export.PDFOptions{FontPath: cfg.PDFFont},
		Log:        log.Named("http"),
	}
}
