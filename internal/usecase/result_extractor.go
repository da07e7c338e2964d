package usecase

import (
	"strings"

	"telegram-research-relay/internal/domain"
)

// AnswerMarker is printed by the research container right before its final answer.
// This is a text convention with the job image, not a structured protocol.
const AnswerMarker = "Got this answer:"

// ExtractAnswer returns the text after the first AnswerMarker, or the whole log when
// the marker is absent. Both are whitespace-trimmed; an empty result is domain.ErrNoResult.
func ExtractAnswer(logs string) (string, error) {
	answer := strings.TrimSpace(logs)
	if _, after, found := strings.Cut(answer, AnswerMarker); found {
		answer = strings.TrimSpace(after)
	}
	if answer == "" {
		return "", domain.ErrNoResult
	}
	return answer, nil
}
