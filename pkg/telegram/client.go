// Package telegram is a minimal Bot API client covering what the shop
// needs: text messages with keyboards, locations and design documents.
package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		BaseURL: "https://api.telegram.org",
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

type sendMessageRequest struct {
	ChatID      int64       `json:"chat_id"`
	Text        string      `json:"text"`
	ParseMode   string      `json:"parse_mode,omitempty"`
	ReplyMarkup interface{} `json:"reply_markup,omitempty"`
}

// SendMessage delivers an HTML-formatted message to a chat.
func (c *Client) SendMessage(chatID int64, text string, markup *InlineKeyboardMarkup) error {
	req := sendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}
	if markup != nil {
		req.ReplyMarkup = markup
	}
	return c.call("sendMessage", req)
}

type sendLocationRequest struct {
	ChatID    int64   `json:"chat_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c *Client) SendLocation(chatID int64, lat, lon float64) error {
	return c.call("sendLocation", sendLocationRequest{ChatID: chatID, Latitude: lat, Longitude: lon})
}

type sendDocumentRequest struct {
	ChatID   int64  `json:"chat_id"`
	Document string `json:"document"`
}

// SendDocument re-sends a file already known to Telegram by its file id,
// which is how design assets travel from client to admins.
func (c *Client) SendDocument(chatID int64, fileID string) error {
	return c.call("sendDocument", sendDocumentRequest{ChatID: chatID, Document: fileID})
}

type answerCallbackRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
	ShowAlert       bool   `json:"show_alert,omitempty"`
}

func (c *Client) AnswerCallback(callbackID, text string, showAlert bool) error {
	return c.call("answerCallbackQuery", answerCallbackRequest{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       showAlert,
	})
}

func (c *Client) call(method string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.BaseURL, c.Token, method)
	resp, err := c.HTTPClient.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var result apiResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", method, err)
	}
	if !result.OK {
		return fmt.Errorf("%s rejected: %s", method, result.Description)
	}
	return nil
}
