package notify

import (
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram шлёт оповещения о страйках в админ-чат.
// Необязательная часть: без токена ядро работает молча.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    *slog.Logger
}

func NewTelegram(token string, chatID int64, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{api: api, chatID: chatID, log: log}, nil
}

// StrikeIssued реализует strikes.Notifier.
func (t *Telegram) StrikeIssued(userID int64, strikeCount int, blacklistUntil *time.Time, reason string) {
	text := fmt.Sprintf("Strike %d/3 issued to user %d\n%s", strikeCount, userID, reason)
	if blacklistUntil != nil {
		text += fmt.Sprintf("\nBookings restricted until %s", blacklistUntil.Format("2006-01-02"))
	}
	t.send(text)
}

func (t *Telegram) send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.api.Send(msg); err != nil {
		t.log.Error("telegram send failed", "err", err)
	}
}
