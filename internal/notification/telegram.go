package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type TelegramConfig struct {
	BaseURL  string
	BotToken string
	Timeout  time.Duration
}

type TelegramSender struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewTelegramSender(cfg TelegramConfig, logger *slog.Logger) *TelegramSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &TelegramSender{
		endpoint:   fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(cfg.BaseURL, "/"), cfg.BotToken),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (s *TelegramSender) Send(ctx context.Context, recipientID, text string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id": recipientID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &DeliveryError{Recipient: recipientID, Err: err}
	}
	defer resp.Body.Close()

	var body telegramResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode != http.StatusOK || !body.OK {
		s.logger.Warn("telegram rejected message",
			"recipient", recipientID,
			"status", resp.StatusCode,
			"description", body.Description)
		return &DeliveryError{
			Recipient:  recipientID,
			StatusCode: resp.StatusCode,
			// 4xx other than rate limiting means a bad chat id or a blocked bot
			Permanent: resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests,
			Err:       errors.New(body.Description),
		}
	}
	return nil
}
