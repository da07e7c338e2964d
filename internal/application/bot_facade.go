package application

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-research-relay/internal/domain"
	"telegram-research-relay/internal/infra/logging"
	"telegram-research-relay/internal/infra/metrics"
	"telegram-research-relay/internal/usecase"
)

// ResearchSubmitter is the part of the research usecase the facade drives.
type ResearchSubmitter interface {
	Submit(ctx context.Context, chatID int64, query string) (string, error)
	InProgress(chatID int64) int
}

// RateLimiter bounds research submissions per chat. Optional.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BotFacade turns chat input into replies. Methods return the text to send back;
// an empty reply means nothing more needs to be said.
type BotFacade struct {
	research ResearchSubmitter
	limiter  RateLimiter
	keyFn    func(chatID int64) string
	tr       usecase.Translator
	limit    int
	window   time.Duration
	log      *zerolog.Logger
}

// NewBotFacade wires the facade. limiter may be nil to disable per-chat limits.
func NewBotFacade(
	research ResearchSubmitter,
	limiter RateLimiter,
	keyFn func(chatID int64) string,
	tr usecase.Translator,
	limit int,
	window time.Duration,
	logger *zerolog.Logger,
) *BotFacade {
	compLog := logger.With().Str("component", "BotFacade").Logger()
	return &BotFacade{
		research: research,
		limiter:  limiter,
		keyFn:    keyFn,
		tr:       tr,
		limit:    limit,
		window:   window,
		log:      &compLog,
	}
}

func (b *BotFacade) HandleStart(ctx context.Context, chatID int64) string {
	return b.tr.T("start")
}

func (b *BotFacade) HandleHelp(ctx context.Context, chatID int64) string {
	return b.tr.T("help")
}

func (b *BotFacade) HandleUnknownCommand(ctx context.Context, chatID int64) string {
	return b.tr.T("unknown_command")
}

// HandleStatus reports how many of the chat's jobs are still running.
func (b *BotFacade) HandleStatus(ctx context.Context, chatID int64) string {
	n := b.research.InProgress(chatID)
	if n == 0 {
		return b.tr.T("status_none")
	}
	return b.tr.T("status_some", n)
}

// HandleResearch submits text as a research query. On success the "processing"
// placeholder was already posted by the usecase, so the reply is empty.
func (b *BotFacade) HandleResearch(ctx context.Context, chatID int64, text string) string {
	query := strings.TrimSpace(text)
	if query == "" {
		return ""
	}

	ctx = logging.WithChatID(ctx, chatID)
	if logging.TraceIDFrom(ctx) == "" {
		ctx = logging.WithTraceID(ctx, logging.NewTraceID())
	}
	log := logging.With(ctx, b.log)

	if !b.allow(ctx, chatID) {
		metrics.IncRateLimitTriggered()
		metrics.IncJobSubmitted("rate_limited")
		log.Info().Err(domain.ErrRateLimited).Msg("research request rejected")
		return b.tr.T("rate_limited")
	}

	if _, err := b.research.Submit(ctx, chatID, query); err != nil {
		log.Error().Err(err).Msg("research submission failed")
		return b.tr.T("submit_error", err.Error())
	}
	return ""
}

// allow fails open: a broken limiter must not take the bot down.
func (b *BotFacade) allow(ctx context.Context, chatID int64) bool {
	if b.limiter == nil || b.limit <= 0 {
		return true
	}
	ok, err := b.limiter.Allow(ctx, b.keyFn(chatID), b.limit, b.window)
	if err != nil {
		logging.With(ctx, b.log).Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		return true
	}
	return ok
}
