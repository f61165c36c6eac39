package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func TestMemory_BurstThenRefill(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	m := NewMemory(3, 60)
	m.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if ok, _ := m.Allow(ctx, "u:1"); !ok {
			t.Fatalf("попытка %d должна пройти", i+1)
		}
	}
	if ok, _ := m.Allow(ctx, "u:1"); ok {
		t.Fatal("четвёртая подряд попытка должна быть отклонена")
	}
	if ok, _ := m.Allow(ctx, "u:2"); !ok {
		t.Fatal("лимит считается отдельно для каждого ключа")
	}

	now = now.Add(time.Second)
	if ok, _ := m.Allow(ctx, "u:1"); !ok {
		t.Fatal("через секунду при 60/мин должен появиться один токен")
	}
	if ok, _ := m.Allow(ctx, "u:1"); ok {
		t.Fatal("второго токена ещё нет")
	}

	now = now.Add(time.Hour)
	for i := 0; i < 3; i++ {
		if ok, _ := m.Allow(ctx, "u:1"); !ok {
			t.Fatal("корзина пополняется не выше ёмкости, но до неё")
		}
	}
	if ok, _ := m.Allow(ctx, "u:1"); ok {
		t.Fatal("ёмкость не должна превышаться")
	}
}

type failing struct{}

func (failing) Allow(context.Context, string) (bool, error) { return false, errors.New("down") }

func newRouter(l Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/mark", Middleware(l, nil, zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestMiddleware(t *testing.T) {
	r := newRouter(NewMemory(1, 1))
	do := func() int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/mark", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		r.ServeHTTP(w, req)
		return w.Code
	}
	if code := do(); code != http.StatusNoContent {
		t.Fatalf("первая попытка: ожидали 204, получили %d", code)
	}
	if code := do(); code != http.StatusTooManyRequests {
		t.Fatalf("вторая попытка: ожидали 429, получили %d", code)
	}
}

func TestMiddleware_FailsOpen(t *testing.T) {
	r := newRouter(failing{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/mark", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("недоступный лимитер не должен блокировать отметку, получили %d", w.Code)
	}
}
