package telegram

import (
	"encoding/json"
	"fmt"
)

// Update is one incoming Bot API update.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is an incoming or outgoing chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
	Voice     *Voice `json:"voice,omitempty"`
}

// User is a Telegram user or bot.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat is the conversation a message belongs to.
type Chat struct {
	ID int64 `json:"id"`
}

// Voice is a voice-note attachment.
type Voice struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration,omitempty"`
}

// InlineKeyboardMarkup is an inline keyboard attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is a single inline keyboard button. Only URL
// buttons are used here.
type InlineKeyboardButton struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// apiResponse is the Bot API envelope wrapping every method result.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// APIError represents a failure reported by or while reaching the Bot API.
type APIError struct {
	// Op is the Bot API method that failed (e.g., "sendMessage")
	Op string

	// Code is the Bot API error code, if the API answered at all
	Code int

	// Err is the underlying error
	Err error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("telegram %s: code %d: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("telegram %s: %v", e.Op, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *APIError) Unwrap() error {
	return e.Err
}
