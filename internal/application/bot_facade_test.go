package application_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-research-relay/internal/application"
	"telegram-research-relay/internal/infra/i18n"
	"telegram-research-relay/internal/infra/logging"
)

type mockResearchUC struct {
	submitted []string
	traceIDs  []string
	inFlight  map[int64]int

	submitErr error
}

func (m *mockResearchUC) Submit(ctx context.Context, chatID int64, query string) (string, error) {
	if m.submitErr != nil {
		return "", m.submitErr
	}
	m.submitted = append(m.submitted, query)
	m.traceIDs = append(m.traceIDs, logging.TraceIDFrom(ctx))
	return fmt.Sprintf("research-job-%d", len(m.submitted)), nil
}

func (m *mockResearchUC) InProgress(chatID int64) int { return m.inFlight[chatID] }

type mockLimiter struct {
	keys    []string
	allowed bool
	err     error
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.keys = append(m.keys, key)
	return m.allowed, m.err
}

func newFacade(t *testing.T, uc *mockResearchUC, limiter application.RateLimiter) *application.BotFacade {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	require.NoError(t, err)
	logger := zerolog.New(io.Discard)
	keyFn := func(chatID int64) string { return fmt.Sprintf("k:%d", chatID) }
	return application.NewBotFacade(uc, limiter, keyFn, tr, 5, time.Minute, &logger)
}

func TestBotFacade_StaticReplies(t *testing.T) {
	f := newFacade(t, &mockResearchUC{}, nil)
	ctx := context.Background()

	assert.Contains(t, f.HandleStart(ctx, 1), "research assistant")
	assert.Contains(t, f.HandleHelp(ctx, 1), "/status")
	assert.Contains(t, f.HandleUnknownCommand(ctx, 1), "/help")
}

func TestBotFacade_HandleStatus(t *testing.T) {
	uc := &mockResearchUC{inFlight: map[int64]int{7: 2}}
	f := newFacade(t, uc, nil)

	assert.Equal(t, "You have no research jobs in progress.", f.HandleStatus(context.Background(), 1))
	assert.Equal(t, "You have 2 research job(s) in progress.", f.HandleStatus(context.Background(), 7))
}

func TestBotFacade_HandleResearch(t *testing.T) {
	t.Run("submits trimmed query with a trace id", func(t *testing.T) {
		uc := &mockResearchUC{}
		f := newFacade(t, uc, nil)

		reply := f.HandleResearch(context.Background(), 1, "  why is the sky blue \n")

		assert.Empty(t, reply)
		require.Len(t, uc.submitted, 1)
		assert.Equal(t, "why is the sky blue", uc.submitted[0])
		assert.NotEmpty(t, uc.traceIDs[0])
	})

	t.Run("ignores blank text", func(t *testing.T) {
		uc := &mockResearchUC{}
		f := newFacade(t, uc, nil)

		assert.Empty(t, f.HandleResearch(context.Background(), 1, "   "))
		assert.Empty(t, uc.submitted)
	})

	t.Run("reports submission errors", func(t *testing.T) {
		uc := &mockResearchUC{submitErr: errors.New("create job: forbidden")}
		f := newFacade(t, uc, nil)

		reply := f.HandleResearch(context.Background(), 1, "q")

		assert.Equal(t, "Error: create job: forbidden", reply)
	})

	t.Run("rejects when the chat is over its limit", func(t *testing.T) {
		uc := &mockResearchUC{}
		limiter := &mockLimiter{allowed: false}
		f := newFacade(t, uc, limiter)

		reply := f.HandleResearch(context.Background(), 42, "q")

		assert.Contains(t, reply, "too many research requests")
		assert.Empty(t, uc.submitted)
		assert.Equal(t, []string{"k:42"}, limiter.keys)
	})

	t.Run("fails open when the limiter errors", func(t *testing.T) {
		uc := &mockResearchUC{}
		limiter := &mockLimiter{err: errors.New("redis down")}
		f := newFacade(t, uc, limiter)

		reply := f.HandleResearch(context.Background(), 42, "q")

		assert.Empty(t, reply)
		assert.Len(t, uc.submitted, 1)
	})
}
