package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"telegram-research-relay/internal/domain"
	"telegram-research-relay/internal/domain/model"
	"telegram-research-relay/internal/infra/logging"
	"telegram-research-relay/internal/usecase"
)

func TestResearchUseCase_Submit(t *testing.T) {
	logger := newTestLogger()
	tr := newTestTranslator(t)

	t.Run("should post placeholder, create job and track it", func(t *testing.T) {
		// --- Arrange ---
		cluster := &MockCluster{}
		bot := &MockTelegramBot{}
		jobs := NewMockJobRegistry()
		uc := usecase.NewResearchUseCase(newTestBuilder(), cluster, jobs, bot, tr, logger, false)
		ctx := logging.WithTraceID(context.Background(), "trace-1")

		// --- Act ---
		jobID, err := uc.Submit(ctx, 555, "why is the sky blue")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(cluster.Created) != 1 {
			t.Fatalf("expected 1 job created, got %d", len(cluster.Created))
		}
		if cluster.Created[0].Name != jobID {
			t.Errorf("returned id %q does not match job name %q", jobID, cluster.Created[0].Name)
		}
		if got := bot.SentTexts(); len(got) != 1 || got[0] != tr.T("processing") {
			t.Errorf("expected only the processing placeholder, got %q", got)
		}

		snap := jobs.Snapshot()
		if len(snap) != 1 {
			t.Fatalf("expected 1 tracked job, got %d", len(snap))
		}
		tracked := snap[0]
		if tracked.ID != jobID || tracked.ChatID != 555 || tracked.Query != "why is the sky blue" {
			t.Errorf("unexpected tracked job: %+v", tracked)
		}
		if tracked.PlaceholderMessageID != 1 {
			t.Errorf("expected placeholder id 1, got %d", tracked.PlaceholderMessageID)
		}
		if tracked.TraceID != "trace-1" {
			t.Errorf("expected trace id to be carried, got %q", tracked.TraceID)
		}
		if uc.InProgress(555) != 1 {
			t.Error("expected chat to have 1 job in progress")
		}
	})

	t.Run("should retract placeholder and track nothing when creation fails", func(t *testing.T) {
		// --- Arrange ---
		createErr := errors.New("forbidden: quota exceeded")
		cluster := &MockCluster{
			CreateJobFunc: func(ctx context.Context, spec model.JobSpec) (string, error) {
				return "", createErr
			},
		}
		bot := &MockTelegramBot{}
		jobs := NewMockJobRegistry()
		uc := usecase.NewResearchUseCase(newTestBuilder(), cluster, jobs, bot, tr, logger, false)

		// --- Act ---
		_, err := uc.Submit(context.Background(), 7, "query")

		// --- Assert ---
		if !errors.Is(err, createErr) {
			t.Fatalf("expected wrapped create error, got %v", err)
		}
		if jobs.Len() != 0 {
			t.Errorf("expected registry to stay empty, got %d", jobs.Len())
		}
		if len(bot.Deleted) != 1 || bot.Deleted[0].MessageID != 1 || bot.Deleted[0].ChatID != 7 {
			t.Errorf("expected placeholder 1 to be deleted, got %+v", bot.Deleted)
		}
	})

	t.Run("should retract placeholder when tracking fails", func(t *testing.T) {
		// --- Arrange ---
		cluster := &MockCluster{}
		bot := &MockTelegramBot{}
		jobs := NewMockJobRegistry()
		jobs.InsertFunc = func(job model.TrackedJob) error { return domain.ErrAlreadyExists }
		uc := usecase.NewResearchUseCase(newTestBuilder(), cluster, jobs, bot, tr, logger, false)

		// --- Act ---
		_, err := uc.Submit(context.Background(), 7, "query")

		// --- Assert ---
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
		if len(bot.Deleted) != 1 {
			t.Errorf("expected placeholder to be deleted, got %+v", bot.Deleted)
		}
	})

	t.Run("should still submit when the placeholder cannot be sent", func(t *testing.T) {
		// --- Arrange ---
		cluster := &MockCluster{}
		bot := &MockTelegramBot{
			SendMessageFunc: func(ctx context.Context, chatID int64, text string) (int, error) {
				return 0, errors.New("telegram unavailable")
			},
		}
		jobs := NewMockJobRegistry()
		uc := usecase.NewResearchUseCase(newTestBuilder(), cluster, jobs, bot, tr, logger, false)

		// --- Act ---
		_, err := uc.Submit(context.Background(), 9, "query")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		snap := jobs.Snapshot()
		if len(snap) != 1 || snap[0].PlaceholderMessageID != 0 {
			t.Fatalf("expected one tracked job without placeholder, got %+v", snap)
		}
	})

	t.Run("should track every concurrent submission", func(t *testing.T) {
		// --- Arrange ---
		cluster := &MockCluster{}
		bot := &MockTelegramBot{}
		jobs := NewMockJobRegistry()
		uc := usecase.NewResearchUseCase(newTestBuilder(), cluster, jobs, bot, tr, logger, false)
		const n = 50

		// --- Act ---
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := uc.Submit(context.Background(), int64(i%5), fmt.Sprintf("q-%d", i)); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)

		// --- Assert ---
		for err := range errs {
			t.Errorf("unexpected submit error: %v", err)
		}
		if jobs.Len() != n {
			t.Errorf("expected %d tracked jobs, got %d", n, jobs.Len())
		}
		if uc.InProgress(0) != n/5 {
			t.Errorf("expected %d jobs for chat 0, got %d", n/5, uc.InProgress(0))
		}
	})
}
