// Package telegram implements dispatch.TelegramSender against the
// Telegram Bot API's sendPhoto/sendMessage endpoints, reusing the
// resty client shape from internal/marketplace/client.go.
package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const apiBase = "https://api.telegram.org"

// sendTimeout bounds one Telegram API call, matching the 15-30s outbound
// call window spec §5 applies to every external HTTP dependency.
const sendTimeout = 15 * time.Second

type Sender struct {
	http  *resty.Client
	token string
}

func NewSender(botToken string) *Sender {
	c := resty.New()
	c.SetTimeout(sendTimeout)
	c.SetBaseURL(fmt.Sprintf("%s/bot%s", apiBase, botToken))
	return &Sender{http: c, token: botToken}
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type inlineButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

func replyMarkup(label, url string) *inlineKeyboard {
	if label == "" || url == "" {
		return nil
	}
	return &inlineKeyboard{InlineKeyboard: [][]inlineButton{{{Text: label, URL: url}}}}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendPhoto posts photo+caption with an optional inline "open listing"
// button, per spec §6's message format.
func (s *Sender) SendPhoto(ctx context.Context, chatID string, photoURL, caption, keyboardLabel, keyboardURL string) error {
	body := map[string]any{
		"chat_id":    chatID,
		"photo":      photoURL,
		"caption":    caption,
		"parse_mode": "HTML",
	}
	if kb := replyMarkup(keyboardLabel, keyboardURL); kb != nil {
		body["reply_markup"] = kb
	}
	return s.post(ctx, "/sendPhoto", body)
}

// SendText posts a text-only message, used as the photo-send fallback.
func (s *Sender) SendText(ctx context.Context, chatID string, text, keyboardLabel, keyboardURL string) error {
	body := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if kb := replyMarkup(keyboardLabel, keyboardURL); kb != nil {
		body["reply_markup"] = kb
	}
	return s.post(ctx, "/sendMessage", body)
}

func (s *Sender) post(ctx context.Context, path string, body map[string]any) error {
	var out apiResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(path)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", path, err)
	}
	if resp.IsError() || !out.OK {
		return fmt.Errorf("telegram %s failed: %s (status %d)", path, out.Description, resp.StatusCode())
	}
	return nil
}
