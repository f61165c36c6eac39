package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory — token bucket в памяти процесса: capacity попыток подряд, пополнение perMinute в минуту.
type Memory struct {
	capacity float64
	rate     float64 // токенов в секунду
	now      func() time.Time

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func NewMemory(capacity, perMinute int) *Memory {
	if perMinute <= 0 {
		perMinute = 60
	}
	if capacity <= 0 {
		capacity = perMinute
	}
	return &Memory{
		capacity: float64(capacity),
		rate:     float64(perMinute) / 60,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.state[key]
	if !ok {
		m.state[key] = &bucket{tokens: m.capacity - 1, last: now}
		m.gc(now)
		return true, nil
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * m.rate
		if b.tokens > m.capacity {
			b.tokens = m.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// gc выбрасывает полностью восстановившиеся корзины, чтобы карта не росла бесконечно.
func (m *Memory) gc(now time.Time) {
	if len(m.state) < 10000 {
		return
	}
	full := time.Duration(m.capacity / m.rate * float64(time.Second))
	for k, b := range m.state {
		if now.Sub(b.last) > full {
			delete(m.state, k)
		}
	}
}
