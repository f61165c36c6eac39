// Package notify — служебные сообщения администраторам (сводки фоновых задач).
package notify

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Spok95/attendance-tracker/internal/observability"
)

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Nop — уведомления выключены (нет BOT_TOKEN).
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram рассылает текст во все чаты администраторов.
type Telegram struct {
	bot   sender
	chats []int64
	log   *zap.Logger
}

func NewTelegram(token string, chats []int64, log *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: bot, chats: chats, log: log}, nil
}

// New — Telegram при заданном токене и чатах, иначе Nop.
func New(token string, chats []int64, log *zap.Logger) (Notifier, error) {
	if token == "" || len(chats) == 0 {
		return Nop{}, nil
	}
	return NewTelegram(token, chats, log)
}

func (t *Telegram) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, chat := range t.chats {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.bot.Send(tgbotapi.NewMessage(chat, text)); err != nil {
			if isSystemErr(err) {
				observability.CaptureCtx(ctx, err)
			}
			t.log.Warn("telegram send failed", zap.Int64("chat_id", chat), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Считаем системными: 5xx, 429, timeout. 400-ки и типичные телеграм-валидации в Sentry не шлём.
func isSystemErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(s, "502") ||
		strings.Contains(s, "503") || strings.Contains(s, "timeout")
}
