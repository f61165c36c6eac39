package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/ctxutil"
	"github.com/Spok95/attendance-tracker/internal/models"
)

const userKey = "auth.user"

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": string(apperr.KindOf(err)), "message": apperr.Message(err)})
}

// Middleware требует bearer-токен и кладёт пользователя в контекст запроса.
func Middleware(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 7 || !strings.EqualFold(authz[:7], "bearer ") {
			abort(c, http.StatusUnauthorized, apperr.New(apperr.Unauthorized, "нужен заголовок Authorization: Bearer <токен>"))
			return
		}
		u, err := s.Authenticate(c.Request.Context(), strings.TrimSpace(authz[7:]))
		if err != nil {
			if apperr.KindOf(err) == apperr.Unauthorized {
				abort(c, http.StatusUnauthorized, err)
				return
			}
			_ = c.Error(err)
			abort(c, http.StatusInternalServerError, err)
			return
		}
		c.Set(userKey, u)
		c.Request = c.Request.WithContext(ctxutil.WithUserID(c.Request.Context(), u.ID))
		c.Next()
	}
}

// CurrentUser — пользователь, установленный Middleware.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return models.User{}, false
	}
	u, ok := v.(models.User)
	return u, ok
}

// RequireRole пропускает только пользователей с ролью role.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			abort(c, http.StatusUnauthorized, apperr.ErrUnauthorized)
			return
		}
		if u.Role != role {
			abort(c, http.StatusForbidden, apperr.New(apperr.Forbidden, "недостаточно прав"))
			return
		}
		c.Next()
	}
}
