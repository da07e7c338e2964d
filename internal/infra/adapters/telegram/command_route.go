package telegram

import "context"

type commandHandler func(ctx context.Context, chatID int64) string

// commandRoutes maps bot commands (without the slash) to their handlers.
// Anything else that is a command gets the unknown-command reply.
func commandRoutes(h UpdateHandler) map[string]commandHandler {
	return map[string]commandHandler{
		"start":  h.HandleStart,
		"help":   h.HandleHelp,
		"status": h.HandleStatus,
	}
}
