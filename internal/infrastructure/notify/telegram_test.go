package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"lungmask/internal/domain/entity"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, s.err
}

func TestTelegramNotifier_Notify(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifierWithSender(sender, 42)

	report := entity.RunReport{Total: 3, Processed: 3, Duration: 90 * time.Second}
	require.NoError(t, n.Notify(context.Background(), "/data/ct", report))

	require.Len(t, sender.sent, 1)
	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	require.Equal(t, int64(42), msg.ChatID)
	require.Contains(t, msg.Text, "/data/ct")
	require.Contains(t, msg.Text, "3 из 3")
}

func TestTelegramNotifier_SendError(t *testing.T) {
	n := NewTelegramNotifierWithSender(&fakeSender{err: errors.New("boom")}, 1)
	require.Error(t, n.Notify(context.Background(), "in", entity.RunReport{}))
}

func TestFormatReport_Failure(t *testing.T) {
	text := FormatReport("in", entity.RunReport{Total: 4, Processed: 1, Skipped: 3, Err: errors.New("broken file")})
	require.Contains(t, text, "прервана")
	require.Contains(t, text, "Пропущено: 3")
	require.Contains(t, text, "broken file")
}
