// Package httpapi — JSON API сервиса посещаемости поверх gin.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/attendance"
	"github.com/Spok95/attendance-tracker/internal/auth"
	"github.com/Spok95/attendance-tracker/internal/course"
	"github.com/Spok95/attendance-tracker/internal/export"
	"github.com/Spok95/attendance-tracker/internal/metrics"
	"github.com/Spok95/attendance-tracker/internal/models"
	"github.com/Spok95/attendance-tracker/internal/ratelimit"
	"github.com/Spok95/attendance-tracker/internal/schedule"
	"github.com/Spok95/attendance-tracker/internal/session"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Auth       *auth.Service
	Courses    *course.Service
	Schedules  *schedule.Service
	Sessions   *session.Service
	Attendance *attendance.Recorder

	// Health nil — /healthz отвечает ok без проверки БД.
	Health Pinger
	// Limiter nil — отметки без ограничения частоты.
	Limiter ratelimit.Limiter

	// BaseURL — внешний адрес, из которого собираются ссылки в QR.
	BaseURL  string
	Location *time.Location
	PDF      export.PDFOptions
	Now      func() time.Time
	Log      *zap.Logger
}

type handler struct {
	Deps
	log *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	d.PDF.Location = d.Location
	h := &handler{Deps: d, log: d.Log}

	r := gin.New()
	r.Use(recovery(d.Log), requestID(), accessLog(d.Log), securityHeaders())
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": string(apperr.NotFound), "message": "маршрут не найден"})
	})

	r.GET("/healthz", h.healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/v1")
	v1.POST("/auth/register", h.register)
	v1.POST("/auth/login", h.login)

	api := v1.Group("", auth.Middleware(d.Auth))
	api.GET("/me", h.me)
	api.DELETE("/me", h.deleteMe)

	api.GET("/courses", h.listCourses)
	api.POST("/courses", h.createCourse)
	api.POST("/courses/join", h.joinCourse)
	api.GET("/courses/:courseID", h.getCourse)
	api.PUT("/courses/:courseID", h.updateCourse)
	api.DELETE("/courses/:courseID", h.deleteCourse)
	api.POST("/courses/:courseID/leave", h.leaveCourse)
	api.GET("/courses/:courseID/students", h.courseStudents)

	api.GET("/courses/:courseID/schedules", h.listSchedules)
	api.POST("/courses/:courseID/schedules", h.applySchedule)
	api.POST("/courses/:courseID/schedules/generate", h.generateSessions)
	api.DELETE("/courses/:courseID/schedules/:scheduleID", h.deactivateSchedule)

	api.GET("/sessions", h.sessionsOverview)
	api.GET("/courses/:courseID/sessions", h.listSessions)
	api.POST("/courses/:courseID/sessions", h.createSession)
	api.GET("/courses/:courseID/sessions/export", h.exportSummary)
	api.GET("/courses/:courseID/sessions/:sessionID", h.getSession)
	api.PUT("/courses/:courseID/sessions/:sessionID", h.updateSession)
	api.DELETE("/courses/:courseID/sessions/:sessionID", h.deleteSession)
	api.POST("/courses/:courseID/sessions/:sessionID/refresh", h.refreshToken)
	api.POST("/courses/:courseID/sessions/:sessionID/close", h.closeSession)
	api.POST("/courses/:courseID/sessions/:sessionID/reopen", h.reopenSession)
	api.GET("/courses/:courseID/sessions/:sessionID/qr", h.sessionQR)

	api.GET("/courses/:courseID/attendance", h.courseAttendance)
	api.GET("/courses/:courseID/sessions/:sessionID/attendance", h.sessionRoster)
	api.POST("/courses/:courseID/sessions/:sessionID/attendance", h.markAttendance)
	api.POST("/courses/:courseID/sessions/:sessionID/attendance/bulk", h.markBulk)
	api.DELETE("/courses/:courseID/sessions/:sessionID/attendance/:attendanceID", h.deleteAttendance)

	student := api.Group("/attendance", auth.RequireRole(models.Student))
	student.GET("/report", h.studentReport)
	checkIn := student.Group("")
	if d.Limiter != nil {
		checkIn.Use(ratelimit.Middleware(d.Limiter, byUser, d.Log))
	}
	checkIn.POST("/mark/:sessionID/:token", h.checkIn)
	checkIn.POST("/manual", h.checkInByCode)

	return r
}

func (h *handler) healthz(c *gin.Context) {
	if h.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 800*time.Millisecond)
		defer cancel()
		if err := h.Health.Ping(ctx); err != nil {
			h.log.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "db": "down"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// byUser — ключ лимита по пользователю; до авторизации — по IP.
func byUser(c *gin.Context) string {
	if u, ok := auth.CurrentUser(c); ok {
		return "user:" + strconv.FormatInt(u.ID, 10)
	}
	return ratelimit.ByClientIP(c)
}

func actor(c *gin.Context) models.User {
	u, _ := auth.CurrentUser(c)
	return u
}

func idParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Newf(apperr.NotFound, "некорректный идентификатор %s", name)
	}
	return id, nil
}

func forceParam(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.Query("force"))
	return v
}
