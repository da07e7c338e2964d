// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

// TelegramBotAdapter is the outbound half of the chat transport.
type TelegramBotAdapter interface {
	// SendMessage delivers text to a chat and returns the id of the (first) message sent.
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
	// DeleteMessage retracts a previously sent message. Callers treat it as best-effort.
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}
