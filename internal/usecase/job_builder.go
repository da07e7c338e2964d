package usecase

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"telegram-research-relay/internal/domain/model"
)

const (
	// AppLabel tags every job and pod created by the relay.
	AppLabel = "open-deep-research"
	// CitationSuffix is appended to every query before it becomes the job argument.
	CitationSuffix = "\nAlways cite sources used to answer the question with links to sources."

	JobNamePrefix         = "research-job-"
	DefaultBackoffLimit   = int32(1)
	DefaultTTLAfterFinish = 300 * time.Second

	LabelApp    = "app"
	LabelChatID = "chat-id"
)

// JobBuilderConfig holds the per-deployment parts of a research job.
type JobBuilderConfig struct {
	Image      string
	ModelID    string
	SecretName string
	Resources  model.Resources
}

// JobBuilder turns a research request into a JobSpec. It keeps no state between calls.
type JobBuilder struct {
	cfg   JobBuilderConfig
	newID func() string
}

func NewJobBuilder(cfg JobBuilderConfig) *JobBuilder {
	return &JobBuilder{cfg: cfg, newID: randomJobToken}
}

// Build returns a spec with a fresh unique name. query is expected to be non-empty.
func (b *JobBuilder) Build(query string, chatID int64) model.JobSpec {
	labels := map[string]string{
		LabelApp:    AppLabel,
		LabelChatID: ChatIDLabel(chatID),
	}
	return model.JobSpec{
		Name:      JobNamePrefix + b.newID(),
		Labels:    labels,
		Container: AppLabel,
		Image:     b.cfg.Image,
		Args:      []string{query + CitationSuffix},
		Env: map[string]string{
			"MODEL_ID": b.cfg.ModelID,
		},
		SecretEnv: []model.SecretEnv{
			{Name: "HF_TOKEN", Secret: b.cfg.SecretName, Key: "hf-token"},
			{Name: "OPENROUTER_API_KEY", Secret: b.cfg.SecretName, Key: "openrouter-api-key"},
		},
		Resources:      b.cfg.Resources,
		BackoffLimit:   DefaultBackoffLimit,
		TTLAfterFinish: DefaultTTLAfterFinish,
	}
}

// ChatIDLabel renders a chat id as a valid label value. Group chats have negative
// ids and label values must start with an alphanumeric, so they get a "g" prefix.
func ChatIDLabel(chatID int64) string {
	if chatID < 0 {
		return "g" + strconv.FormatInt(-chatID, 10)
	}
	return strconv.FormatInt(chatID, 10)
}

func randomJobToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
