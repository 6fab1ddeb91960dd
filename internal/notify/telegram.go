package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier sends messages through the Telegram bot API.
type TelegramNotifier struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewTelegramNotifier(token string, timeout time.Duration) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &TelegramNotifier{
		token:   token,
		baseURL: telegramAPIBase,
		client:  &http.Client{Timeout: timeout},
	}
}

// Send posts a sendMessage call; recipient is the chat id.
func (t *TelegramNotifier) Send(ctx context.Context, recipient, text string) error {
	if t.token == "" {
		return fmt.Errorf("telegram bot token not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": recipient,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("telegram api returned %d: %s", resp.StatusCode, apiErr.Description)
	}

	return nil
}
