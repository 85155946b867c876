// Package notification содержит отправку уведомлений оператору в Telegram.
package notification

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const telegramAPIURL = "https://api.telegram.org"

// TelegramNotifier отправляет сообщения в чат оператора через Bot API.
// Отправка best-effort: ошибки логируются и не влияют на вызывающую операцию.
type TelegramNotifier struct {
	apiURL     string
	botToken   string
	chatID     string
	logger     *zap.Logger
	httpClient *http.Client
}

// NewTelegramNotifier создаёт нотификатор. При пустых token или chatID
// возвращается nil — nil-нотификатор молча игнорирует отправку.
func NewTelegramNotifier(botToken, chatID string, logger *zap.Logger) *TelegramNotifier {
	if botToken == "" || chatID == "" {
		return nil
	}
	return newTelegramNotifier(telegramAPIURL, botToken, chatID, logger)
}

func newTelegramNotifier(apiURL, botToken, chatID string, logger *zap.Logger) *TelegramNotifier {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.HTTPClient.Timeout = 10 * time.Second
	retryClient.Logger = nil

	return &TelegramNotifier{
		apiURL:     strings.TrimRight(apiURL, "/"),
		botToken:   botToken,
		chatID:     chatID,
		logger:     logger,
		httpClient: retryClient.StandardClient(),
	}
}

// Send отправляет текстовое сообщение в чат оператора.
func (n *TelegramNotifier) Send(ctx context.Context, message string) {
	if n == nil {
		return
	}

	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", message)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiURL, n.botToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		n.logger.Error("build telegram request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("send telegram message", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.logger.Error("send telegram message", zap.Int("status", resp.StatusCode))
		return
	}

	n.logger.Debug("telegram message sent", zap.String("chatID", n.chatID))
}
