package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"telegram-research-relay/internal/config"
	"telegram-research-relay/internal/domain/ports/adapter"
	"telegram-research-relay/internal/infra/logging"
	"telegram-research-relay/internal/infra/metrics"
	"telegram-research-relay/internal/infra/worker"
)

// MaxMessageLength is Telegram's limit for one text message, in characters.
const MaxMessageLength = 4096

// botAPI is the subset of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// UpdateHandler produces the reply for each kind of inbound message. An empty reply
// sends nothing.
type UpdateHandler interface {
	HandleStart(ctx context.Context, chatID int64) string
	HandleHelp(ctx context.Context, chatID int64) string
	HandleStatus(ctx context.Context, chatID int64) string
	HandleUnknownCommand(ctx context.Context, chatID int64) string
	HandleResearch(ctx context.Context, chatID int64, text string) string
}

// Compile-time check
var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// RealTelegramBotAdapter long-polls updates into a worker pool and sends replies
// through a global outbound rate limit.
type RealTelegramBotAdapter struct {
	bot     botAPI
	limiter *rate.Limiter
	workers int
	log     *zerolog.Logger
}

func NewRealTelegramBotAdapter(cfg config.BotConfig, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg.Token == "" {
		return nil, errors.New("bot token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	a := newAdapter(bot, cfg.SendRate, cfg.Workers, logger)
	a.log.Info().Str("username", bot.Self.UserName).Msg("authorized on telegram")
	return a, nil
}

func newAdapter(bot botAPI, sendRate float64, workers int, logger *zerolog.Logger) *RealTelegramBotAdapter {
	if workers <= 0 {
		workers = 5
	}
	burst := int(sendRate)
	if burst < 1 {
		burst = 1
	}
	compLog := logger.With().Str("component", "TelegramAdapter").Logger()
	return &RealTelegramBotAdapter{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(sendRate), burst),
		workers: workers,
		log:     &compLog,
	}
}

// StartPolling blocks until ctx is cancelled or the update channel closes.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context, handler UpdateHandler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)
	defer r.bot.StopReceivingUpdates()

	pool := worker.NewPool(r.workers, r.log)
	pool.Start(ctx)
	defer pool.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			task := func(ctx context.Context) error { return r.handleUpdate(ctx, handler, up) }
			if err := pool.SubmitWait(ctx, task); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.log.Error().Err(err).Int("update_id", up.UpdateID).Msg("dropping update")
			}
		}
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, handler UpdateHandler, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}
	chatID := msg.Chat.ID
	ctx = logging.WithTraceID(logging.WithChatID(ctx, chatID), logging.NewTraceID())

	var reply string
	switch {
	case msg.IsCommand():
		cmd := msg.Command()
		route, ok := commandRoutes(handler)[cmd]
		if !ok {
			metrics.IncTelegramCommand("unknown")
			reply = handler.HandleUnknownCommand(ctx, chatID)
			break
		}
		metrics.IncTelegramCommand(cmd)
		reply = route(ctx, chatID)
	case msg.Text != "":
		metrics.IncTelegramCommand("research")
		reply = handler.HandleResearch(ctx, chatID, msg.Text)
	default:
		return nil
	}

	if reply == "" {
		return nil
	}
	if _, err := r.SendMessage(ctx, chatID, reply); err != nil {
		return fmt.Errorf("reply to chat %d: %w", chatID, err)
	}
	return nil
}

// SendMessage delivers text, split into chunks Telegram accepts, and returns the
// id of the first message.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	firstID := 0
	for i, part := range splitMessage(text, MaxMessageLength) {
		if err := r.limiter.Wait(ctx); err != nil {
			return firstID, err
		}
		sent, err := r.bot.Send(tgbotapi.NewMessage(chatID, part))
		if err != nil {
			return firstID, err
		}
		if i == 0 {
			firstID = sent.MessageID
		}
	}
	return firstID, nil
}

func (r *RealTelegramBotAdapter) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := r.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

// splitMessage cuts text into pieces of at most limit runes, preferring to break
// after a newline in the second half of each window.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
