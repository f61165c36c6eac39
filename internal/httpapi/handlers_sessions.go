package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/qr"
	"github.com/Spok95/attendance-tracker/internal/session"
)

func courseSessionIDs(c *gin.Context) (int64, int64, error) {
	courseID, err := idParam(c, "courseID")
	if err != nil {
		return 0, 0, err
	}
	sessionID, err := idParam(c, "sessionID")
	if err != nil {
		return 0, 0, err
	}
	return courseID, sessionID, nil
}

func (h *handler) sessionsOverview(c *gin.Context) {
	u := actor(c)
	byPhase, err := h.Sessions.Overview(c.Request.Context(), u)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make(map[session.Phase][]sessionView, len(byPhase))
	for ph, list := range byPhase {
		out[ph] = h.sessionViews(u, list)
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) listSessions(c *gin.Context) {
	id, err := idParam(c, "courseID")
	if err != nil {
		h.fail(c, err)
		return
	}
	u := actor(c)
	list, err := h.Sessions.ListByCourse(c.Request.Context(), u, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": h.sessionViews(u, list)})
}

func (h *handler) createSession(c *gin.Context) {
	id, err := idParam(c, "courseID")
	if err != nil {
		h.fail(c, err)
		return
	}
	var in session.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, badRequest(err))
		return
	}
	u := actor(c)
	created, err := h.Sessions.Create(c.Request.Context(), u, id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.sessionView(u, created))
}

func (h *handler) getSession(c *gin.Context) {
	courseID, sessionID, err := courseSessionIDs(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	u := actor(c)
	s, err := h.Sessions.Get(c.Request.Context(), u, courseID, sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionView(u, *s))
}

func (h *handler) updateSession(c *gin.Context) {
	courseID, sessionID, err := courseSessionIDs(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var in session.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, badRequest(err))
		return
	}
	u := actor(c)
	s, err := h.Sessions.Update(c.Request.Context(), u, courseID, sessionID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionView(u, s))
}

func (h *handler) deleteSession(c *gin.Context) {
	courseID, sessionID, err := courseSessionIDs(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Sessions.Delete(c.Request.Context(), actor(c), courseID, sessionID, forceParam(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) refreshToken(c *gin.Context) {
	courseID, sessionID, err := courseSessionIDs(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var in struct {
		TTLSeconds int `json:"ttl_seconds"`
	}
	// тело необязательно; chunked-запрос приходит с ContentLength = -1
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
			h.fail(c, badRequest(err))
			return
		}
	}
	u := actor(c)
	s, err := h.Sessions.RefreshToken(c.Request.Context(), u, courseID, sessionID, time.Duration(in.TTLSeconds)*time.Second)
	if err != nil {
		h.fail(c, err)
		return
	}
	payload, err := h.qrPayload(u, s)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (h *handler) closeSession(c *gin.Context) {
	courseID, sessionID, err := courseSessionIDs(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	u := actor(c)
	s, err := h.Sessions.Close(c.Request.Context(), u, courseID, sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionView(u, s))
}

func (h *handler) reopenSession(c *gin.Context) {
	courseID, sessionID, err := courseSessionIDs(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	u := actor(c)
	s, err := h.Sessions.Reopen(c.Request.Context(), u, courseID, sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionView(u, s))
}

// sessionQR — PNG текущего токена; ?format=json — data URL, код и срок действия.
func (h *handler) sessionQR(c *gin.Context) {
	courseID, sessionID, err := courseSessionIDs(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	u := actor(c)
	s, err := h.Sessions.Owned(c.Request.Context(), u, courseID, sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if c.Query("format") == "json" {
		payload, err := h.qrPayload(u, *s)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, payload)
		return
	}
	size := qr.DefaultSize
	if v := c.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 || n > 1024 {
			h.fail(c, apperr.New(apperr.ValidationError, "размер QR от 64 до 1024 пикселей"))
			return
		}
		size = n
	}
	png, err := qr.PNG(qr.URL(h.BaseURL, s.ID, s.QRToken), size)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}
