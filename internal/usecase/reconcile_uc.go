package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-research-relay/internal/domain"
	"telegram-research-relay/internal/domain/model"
	"telegram-research-relay/internal/domain/ports/adapter"
	"telegram-research-relay/internal/domain/ports/repository"
	"telegram-research-relay/internal/infra/logging"
	"telegram-research-relay/internal/infra/metrics"
)

// Resolution outcomes, also used as metric labels.
const (
	OutcomeAnswered = "answered"
	OutcomeNoResult = "no_result"
	OutcomeFailed   = "failed"
	OutcomeLost     = "lost"
)

// CycleReport summarizes one reconcile pass.
type CycleReport struct {
	Checked      int
	Pending      int
	StatusErrors int
	Resolved     map[string]int // by outcome
}

func (r CycleReport) ResolvedTotal() int {
	n := 0
	for _, v := range r.Resolved {
		n += v
	}
	return n
}

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

type ReconcileUseCase interface {
	// RunCycle checks every job tracked at cycle start and resolves the terminal ones.
	// Cycles are serialized; a concurrent call waits for the running one.
	RunCycle(ctx context.Context) CycleReport
}

type reconcileUC struct {
	cluster adapter.ClusterAdapter
	jobs    repository.TrackedJobRepository
	bot     adapter.TelegramBotAdapter
	tr      Translator
	log     *zerolog.Logger
	now     func() time.Time

	maxStatusFailures int
	callTimeout       time.Duration

	cycleMu sync.Mutex
	// consecutive status-query failures per job id; touched only under cycleMu
	failures map[string]int
}

// NewReconcileUseCase builds the reconciler. maxStatusFailures <= 0 retries status
// errors forever.
func NewReconcileUseCase(
	cluster adapter.ClusterAdapter,
	jobs repository.TrackedJobRepository,
	bot adapter.TelegramBotAdapter,
	tr Translator,
	maxStatusFailures int,
	logger *zerolog.Logger,
) *reconcileUC {
	compLog := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		cluster:           cluster,
		jobs:              jobs,
		bot:               bot,
		tr:                tr,
		log:               &compLog,
		now:               time.Now,
		maxStatusFailures: maxStatusFailures,
		callTimeout:       30 * time.Second,
		failures:          map[string]int{},
	}
}

func (uc *reconcileUC) RunCycle(ctx context.Context) CycleReport {
	uc.cycleMu.Lock()
	defer uc.cycleMu.Unlock()
	defer logging.TraceDuration(uc.log, "ReconcileUC.RunCycle")()

	start := uc.now()
	report := CycleReport{Resolved: map[string]int{}}

	// Jobs inserted after this point are picked up next cycle.
	snapshot := uc.jobs.Snapshot()
	for _, job := range snapshot {
		if ctx.Err() != nil {
			uc.log.Warn().Int("skipped", len(snapshot)-report.Checked).Msg("cycle interrupted")
			break
		}
		report.Checked++
		uc.reconcileOne(ctx, job, &report)
	}

	metrics.SetJobsTracked(uc.jobs.Len())
	metrics.ObserveReconcileCycle(uc.now().Sub(start))
	if n := report.ResolvedTotal(); n > 0 || report.StatusErrors > 0 {
		uc.log.Info().
			Int("checked", report.Checked).
			Int("resolved", n).
			Int("status_errors", report.StatusErrors).
			Msg("reconcile cycle finished")
	}
	return report
}

func (uc *reconcileUC) reconcileOne(ctx context.Context, job model.TrackedJob, report *CycleReport) {
	ctx = logging.WithJobID(logging.WithChatID(logging.WithTraceID(ctx, job.TraceID), job.ChatID), job.ID)
	log := logging.With(ctx, uc.log)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Msg("recovered while reconciling job")
		}
	}()

	status, err := uc.jobStatus(ctx, job.ID)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		log.Warn().Msg("job vanished from cluster")
		uc.resolve(ctx, job, OutcomeLost, uc.tr.T("job_failed"), report)
		return
	case err != nil:
		report.StatusErrors++
		metrics.IncStatusError()
		uc.failures[job.ID]++
		n := uc.failures[job.ID]
		if uc.maxStatusFailures > 0 && n >= uc.maxStatusFailures {
			log.Error().Err(err).Int("attempts", n).Msg("giving up on job status")
			uc.resolve(ctx, job, OutcomeLost, uc.tr.T("job_failed"), report)
			return
		}
		log.Warn().Err(err).Int("attempts", n).Msg("job status check failed; will retry")
		return
	}
	delete(uc.failures, job.ID)

	switch status {
	case model.JobStatusSucceeded:
		text, outcome := uc.collectResult(ctx, job)
		uc.resolve(ctx, job, outcome, text, report)
	case model.JobStatusFailed:
		uc.resolve(ctx, job, OutcomeFailed, uc.tr.T("job_failed"), report)
	default:
		report.Pending++
	}
}

func (uc *reconcileUC) jobStatus(ctx context.Context, jobID string) (model.JobStatus, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.callTimeout)
	defer cancel()
	return uc.cluster.GetJobStatus(callCtx, jobID)
}

// collectResult fetches the log of the job's pod and renders the reply. Any failure
// degrades to the generic "could not retrieve" text.
func (uc *reconcileUC) collectResult(ctx context.Context, job model.TrackedJob) (string, string) {
	log := logging.With(ctx, uc.log)
	callCtx, cancel := context.WithTimeout(ctx, uc.callTimeout)
	defer cancel()

	pods, err := uc.cluster.ListPods(callCtx, "job-name="+job.ID)
	if err != nil {
		log.Error().Err(err).Msg("listing pods failed")
		return uc.tr.T("no_result"), OutcomeNoResult
	}
	if len(pods) == 0 {
		log.Warn().Err(domain.ErrNoPodForJob).Msg("succeeded job has no pod")
		return uc.tr.T("no_result"), OutcomeNoResult
	}

	logs, err := uc.cluster.GetPodLog(callCtx, pods[0])
	if err != nil {
		log.Error().Err(err).Str("pod", pods[0]).Msg("reading pod log failed")
		return uc.tr.T("no_result"), OutcomeNoResult
	}
	answer, err := ExtractAnswer(logs)
	if err != nil {
		log.Warn().Err(err).Str("pod", pods[0]).Msg("no answer in pod log")
		return uc.tr.T("no_result"), OutcomeNoResult
	}
	return uc.tr.T("result", answer), OutcomeAnswered
}

// resolve retracts the placeholder, sends the single terminal notification and drops
// the job. Delivery errors are logged only; removal happens even if delivery panics.
func (uc *reconcileUC) resolve(ctx context.Context, job model.TrackedJob, outcome, text string, report *CycleReport) {
	log := logging.With(ctx, uc.log)
	defer func() {
		uc.jobs.Remove(job.ID)
		delete(uc.failures, job.ID)
		report.Resolved[outcome]++
		metrics.ObserveJobResolved(outcome, job.Age(uc.now()))
		log.Info().Str("outcome", outcome).Dur("age", job.Age(uc.now())).Msg("research job resolved")
	}()

	if job.PlaceholderMessageID != 0 {
		if err := uc.bot.DeleteMessage(ctx, job.ChatID, job.PlaceholderMessageID); err != nil {
			metrics.IncDeliveryError("delete")
			log.Warn().Err(err).Msg("could not delete placeholder")
		}
	}
	if _, err := uc.bot.SendMessage(ctx, job.ChatID, text); err != nil {
		metrics.IncDeliveryError("send")
		log.Error().Err(err).Str("outcome", outcome).Msg("could not deliver result")
	}
}
