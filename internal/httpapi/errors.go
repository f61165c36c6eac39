package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/ctxutil"
	"github.com/Spok95/attendance-tracker/internal/observability"
)

var statusByKind = map[apperr.Kind]int{
	apperr.NotFound:            http.StatusNotFound,
	apperr.Forbidden:           http.StatusForbidden,
	apperr.Unauthorized:        http.StatusUnauthorized,
	apperr.InvalidToken:        http.StatusBadRequest,
	apperr.Expired:             http.StatusBadRequest,
	apperr.SessionClosed:       http.StatusBadRequest,
	apperr.MalformedCode:       http.StatusBadRequest,
	apperr.ValidationError:     http.StatusBadRequest,
	apperr.NotEnrolled:         http.StatusForbidden,
	apperr.AlreadyRecorded:     http.StatusConflict,
	apperr.ConstraintViolation: http.StatusConflict,
}

// StatusOf — HTTP-статус для ожидаемой ошибки; 500 для всего остального.
func StatusOf(err error) int {
	if code, ok := statusByKind[apperr.KindOf(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func (h *handler) fail(c *gin.Context, err error) {
	code := StatusOf(err)
	if code == http.StatusInternalServerError {
		rid, _ := ctxutil.RequestID(c.Request.Context())
		h.log.Error("request failed", zap.String("route", c.FullPath()), zap.String("request_id", rid), zap.Error(err))
		observability.CaptureCtx(c.Request.Context(), err)
		c.AbortWithStatusJSON(code, gin.H{"error": "internal", "message": apperr.Message(err)})
		return
	}
	c.AbortWithStatusJSON(code, gin.H{"error": string(apperr.KindOf(err)), "message": apperr.Message(err)})
}

func badRequest(err error) error {
	return apperr.Wrap(apperr.ValidationError, "некорректное тело запроса", err)
}
