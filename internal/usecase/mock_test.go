package usecase_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"telegram-research-relay/internal/domain/model"
	"telegram-research-relay/internal/domain/ports/adapter"
	"telegram-research-relay/internal/domain/ports/repository"
	"telegram-research-relay/internal/infra/i18n"
	"telegram-research-relay/internal/infra/registry"
)

// =============================
// Adapters
// =============================

// ---- Mock TelegramBotAdapter ----

type SentMessage struct {
	ChatID int64
	Text   string
}

type DeletedMessage struct {
	ChatID    int64
	MessageID int
}

type MockTelegramBot struct {
	mu      sync.Mutex
	nextID  int
	Sent    []SentMessage
	Deleted []DeletedMessage

	SendMessageFunc   func(ctx context.Context, chatID int64, text string) (int, error)
	DeleteMessageFunc func(ctx context.Context, chatID int64, messageID int) error
}

var _ adapter.TelegramBotAdapter = (*MockTelegramBot)(nil)

func (m *MockTelegramBot) SendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, chatID, text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.Sent = append(m.Sent, SentMessage{ChatID: chatID, Text: text})
	return m.nextID, nil
}

func (m *MockTelegramBot) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if m.DeleteMessageFunc != nil {
		return m.DeleteMessageFunc(ctx, chatID, messageID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, DeletedMessage{ChatID: chatID, MessageID: messageID})
	return nil
}

func (m *MockTelegramBot) SentTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Sent))
	for i, s := range m.Sent {
		out[i] = s.Text
	}
	return out
}

// ---- Mock ClusterAdapter ----

type MockCluster struct {
	mu      sync.Mutex
	Created []model.JobSpec

	// call counters
	StatusCalls int
	ListCalls   int
	LogCalls    int

	CreateJobFunc    func(ctx context.Context, spec model.JobSpec) (string, error)
	GetJobStatusFunc func(ctx context.Context, jobID string) (model.JobStatus, error)
	ListPodsFunc     func(ctx context.Context, labelSelector string) ([]string, error)
	GetPodLogFunc    func(ctx context.Context, podName string) (string, error)
}

var _ adapter.ClusterAdapter = (*MockCluster)(nil)

func (m *MockCluster) CreateJob(ctx context.Context, spec model.JobSpec) (string, error) {
	if m.CreateJobFunc != nil {
		return m.CreateJobFunc(ctx, spec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, spec)
	return spec.Name, nil
}

func (m *MockCluster) GetJobStatus(ctx context.Context, jobID string) (model.JobStatus, error) {
	m.mu.Lock()
	m.StatusCalls++
	m.mu.Unlock()
	if m.GetJobStatusFunc != nil {
		return m.GetJobStatusFunc(ctx, jobID)
	}
	return model.JobStatusPending, nil
}

func (m *MockCluster) ListPods(ctx context.Context, labelSelector string) ([]string, error) {
	m.mu.Lock()
	m.ListCalls++
	m.mu.Unlock()
	if m.ListPodsFunc != nil {
		return m.ListPodsFunc(ctx, labelSelector)
	}
	return nil, nil
}

func (m *MockCluster) GetPodLog(ctx context.Context, podName string) (string, error) {
	m.mu.Lock()
	m.LogCalls++
	m.mu.Unlock()
	if m.GetPodLogFunc != nil {
		return m.GetPodLogFunc(ctx, podName)
	}
	return "", nil
}

// =============================
// Repositories
// =============================

// MockJobRegistry delegates to the in-memory registry unless a Func overrides a call.
type MockJobRegistry struct {
	*registry.MemoryRegistry

	InsertFunc func(job model.TrackedJob) error
}

var _ repository.TrackedJobRepository = (*MockJobRegistry)(nil)

func NewMockJobRegistry() *MockJobRegistry {
	return &MockJobRegistry{MemoryRegistry: registry.NewMemoryRegistry()}
}

func (m *MockJobRegistry) Insert(job model.TrackedJob) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(job)
	}
	return m.MemoryRegistry.Insert(job)
}

// =============================
// Utilities
// =============================

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// newTestTranslator loads the embedded English catalog so tests assert real texts.
func newTestTranslator(t *testing.T) *i18n.Translator {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatalf("failed to load translator: %v", err)
	}
	return tr
}
