package jobs

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Spok95/attendance-tracker/internal/notify"
)

type SessionCloser interface {
	AutoClose(ctx context.Context) (int64, error)
}

type ScheduleExpander interface {
	ExpandAll(ctx context.Context, weeksAhead int) (int, error)
}

// AutoManage закрывает закончившиеся занятия и догенерирует занятия по расписаниям.
// Оба шага идемпотентны; сбой одного не отменяет другой.
type AutoManage struct {
	Sessions   SessionCloser
	Schedules  ScheduleExpander
	Notifier   notify.Notifier
	WeeksAhead int
	Log        *zap.Logger
}

type Result struct {
	Closed    int64
	Generated int
}

func (m *AutoManage) Run(ctx context.Context) (Result, error) {
	var (
		res  Result
		errs []error
		err  error
	)
	if res.Closed, err = m.Sessions.AutoClose(ctx); err != nil {
		errs = append(errs, err)
	}
	if res.Generated, err = m.Schedules.ExpandAll(ctx, m.WeeksAhead); err != nil {
		errs = append(errs, fmt.Errorf("expand schedules: %w", err))
	}
	m.Log.Info("auto manage done", zap.Int64("closed", res.Closed), zap.Int("generated", res.Generated), zap.Int("errors", len(errs)))

	if (res.Closed > 0 || res.Generated > 0) && m.Notifier != nil {
		text := fmt.Sprintf("Автоуправление занятиями: закрыто %d, создано %d.", res.Closed, res.Generated)
		if nerr := m.Notifier.Notify(ctx, text); nerr != nil {
			m.Log.Warn("auto manage notify failed", zap.Error(nerr))
		}
	}
	return res, errors.Join(errs...)
}

// Job — обёртка для Runner.Every.
func (m *AutoManage) Job() Job {
	return func(ctx context.Context) error {
		_, err := m.Run(ctx)
		return err
	}
}
