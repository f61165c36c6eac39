package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Spok95/attendance-tracker/internal/auth"
)

func (h *handler) register(c *gin.Context) {
	var in auth.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, badRequest(err))
		return
	}
	u, err := h.Auth.Register(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *handler) login(c *gin.Context) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, badRequest(err))
		return
	}
	tok, err := h.Auth.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

func (h *handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, actor(c))
}

func (h *handler) deleteMe(c *gin.Context) {
	var in struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, badRequest(err))
		return
	}
	if err := h.Auth.DeleteAccount(c.Request.Context(), actor(c), in.Password); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
