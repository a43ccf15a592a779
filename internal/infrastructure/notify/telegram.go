package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lungmask/internal/domain/entity"
	"lungmask/internal/domain/port"
)

// Sender отправляет сообщения. *tgbotapi.BotAPI ему соответствует.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier отправляет итог запуска в чат Telegram.
type TelegramNotifier struct {
	api    Sender
	chatID int64
}

// NewTelegramNotifier авторизуется по токену бота.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return NewTelegramNotifierWithSender(api, chatID), nil
}

// NewTelegramNotifierWithSender создаёт уведомитель поверх готового отправителя.
func NewTelegramNotifierWithSender(api Sender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{api: api, chatID: chatID}
}

// Notify отправляет сообщение с итогом.
func (n *TelegramNotifier) Notify(ctx context.Context, input string, report entity.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, FormatReport(input, report))
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// FormatReport формирует текст уведомления.
func FormatReport(input string, report entity.RunReport) string {
	var b strings.Builder
	if report.Succeeded() {
		b.WriteString("✅ lungmask: обработка завершена\n")
	} else {
		b.WriteString("⚠️ lungmask: обработка прервана\n")
	}
	fmt.Fprintf(&b, "Вход: %s\n", input)
	fmt.Fprintf(&b, "Обработано: %d из %d\n", report.Processed, report.Total)
	if report.Skipped > 0 {
		fmt.Fprintf(&b, "Пропущено: %d\n", report.Skipped)
	}
	fmt.Fprintf(&b, "Время: %s", report.Duration.Round(time.Second))
	if report.Err != nil {
		fmt.Fprintf(&b, "\nОшибка: %v", report.Err)
	}
	return b.String()
}

var _ port.Notifier = (*TelegramNotifier)(nil)
