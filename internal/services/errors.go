package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceUnavailable marks failures listing videos from the upstream channel.
	ErrSourceUnavailable = errors.New("video source unavailable")
	// ErrTranscription marks failures of the transcription service.
	ErrTranscription = errors.New("transcription error")
	// ErrGeneration marks failures of the tweet generation model.
	ErrGeneration = errors.New("generation error")
	// ErrPublish marks failures posting a tweet.
	ErrPublish = errors.New("publish error")
	// ErrTemplate marks prompt template defects (missing placeholder values).
	ErrTemplate = errors.New("template error")
	// ErrConflict marks a lost guard race. It is always a benign skip, never a failure.
	ErrConflict = errors.New("concurrency conflict")
	// ErrConfiguration marks unusable runtime configuration. Fatal for the run.
	ErrConfiguration = errors.New("configuration error")
	// ErrStorage marks entity store failures. Fatal for the run.
	ErrStorage = errors.New("storage error")
	// ErrNotFound marks missing entities or prompt templates.
	ErrNotFound = errors.New("not found")
	// ErrTimeout marks port calls that exceeded their deadline.
	ErrTimeout = errors.New("timeout")
)

// Wrap builds an error message that includes pipeline context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrStorage
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether an error should abort the whole pipeline run instead
// of being recorded on the owning entity.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStorage) || errors.Is(err, ErrConfiguration)
}

// IsConflict reports whether an error is a lost guard race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
