package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-research-relay/internal/domain/model"
	"telegram-research-relay/internal/domain/ports/adapter"
	"telegram-research-relay/internal/domain/ports/repository"
	"telegram-research-relay/internal/infra/logging"
	"telegram-research-relay/internal/infra/metrics"
)

// Translator resolves user-facing message keys.
type Translator interface {
	T(key string, args ...interface{}) string
}

// Compile-time check
var _ ResearchUseCase = (*researchUC)(nil)

type ResearchUseCase interface {
	// Submit posts a placeholder, creates the cluster job and starts tracking it.
	// On error nothing is tracked and the placeholder has been retracted.
	Submit(ctx context.Context, chatID int64, query string) (string, error)
	// InProgress counts the chat's jobs that are still awaiting a result.
	InProgress(chatID int64) int
}

type researchUC struct {
	builder *JobBuilder
	cluster adapter.ClusterAdapter
	jobs    repository.TrackedJobRepository
	bot     adapter.TelegramBotAdapter
	tr      Translator
	log     *zerolog.Logger
	dev     bool
	now     func() time.Time
}

func NewResearchUseCase(
	builder *JobBuilder,
	cluster adapter.ClusterAdapter,
	jobs repository.TrackedJobRepository,
	bot adapter.TelegramBotAdapter,
	tr Translator,
	logger *zerolog.Logger,
	dev bool,
) *researchUC {
	compLog := logger.With().Str("component", "ResearchUC").Logger()
	return &researchUC{
		builder: builder,
		cluster: cluster,
		jobs:    jobs,
		bot:     bot,
		tr:      tr,
		log:     &compLog,
		dev:     dev,
		now:     time.Now,
	}
}

func (uc *researchUC) Submit(ctx context.Context, chatID int64, query string) (string, error) {
	log := logging.With(ctx, uc.log)

	placeholderID, err := uc.bot.SendMessage(ctx, chatID, uc.tr.T("processing"))
	if err != nil {
		// Not fatal: the job can still run, there is just nothing to retract later.
		metrics.IncDeliveryError("send")
		log.Warn().Err(err).Msg("could not send processing placeholder")
		placeholderID = 0
	}

	spec := uc.builder.Build(query, chatID)
	jobID, err := uc.cluster.CreateJob(ctx, spec)
	if err != nil {
		metrics.IncJobSubmitted("error")
		log.Error().Err(err).Str("job_name", spec.Name).Msg("failed to create research job")
		uc.retract(ctx, chatID, placeholderID)
		return "", fmt.Errorf("create job: %w", err)
	}

	tracked := model.TrackedJob{
		ID:                   jobID,
		ChatID:               chatID,
		Query:                query,
		TraceID:              logging.TraceIDFrom(ctx),
		SubmittedAt:          uc.now(),
		PlaceholderMessageID: placeholderID,
	}
	if err := uc.jobs.Insert(tracked); err != nil {
		metrics.IncJobSubmitted("error")
		log.Error().Err(err).Str("job_id", jobID).Msg("created job could not be tracked")
		uc.retract(ctx, chatID, placeholderID)
		return "", fmt.Errorf("track job %s: %w", jobID, err)
	}

	metrics.IncJobSubmitted("ok")
	metrics.SetJobsTracked(uc.jobs.Len())
	log.Info().
		Str("job_id", jobID).
		Str("query", logging.Redact(query, uc.dev)).
		Msg("research job submitted")
	return jobID, nil
}

func (uc *researchUC) InProgress(chatID int64) int {
	return uc.jobs.CountByChat(chatID)
}

func (uc *researchUC) retract(ctx context.Context, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if err := uc.bot.DeleteMessage(ctx, chatID, messageID); err != nil {
		metrics.IncDeliveryError("delete")
		logging.With(ctx, uc.log).Warn().Err(err).Int("message_id", messageID).Msg("could not delete placeholder")
	}
}
