package prompt_test

import (
	"errors"
	"strings"
	"testing"

	"tweetloom/internal/prompt"
	"tweetloom/internal/services"
)

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	out, err := prompt.Render("Video {video_title} on {channel_title}.", map[string]string{
		"video_title":   "Go Generics",
		"channel_title": "Go Time",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "Video Go Generics on Go Time." {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRenderFailsOnMissingPlaceholder(t *testing.T) {
	_, err := prompt.Render("Hello {name}, welcome to {place}.", map[string]string{"name": "Ana"})
	if err == nil {
		t.Fatal("expected error for missing placeholder")
	}
	if !errors.Is(err, services.ErrTemplate) {
		t.Fatalf("expected template error, got %v", err)
	}
	if !strings.Contains(err.Error(), "place") {
		t.Fatalf("error should name the missing placeholder, got %v", err)
	}
}

func TestRenderIgnoresExtraVars(t *testing.T) {
	out, err := prompt.Render("No placeholders here.", map[string]string{"unused": "x"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "No placeholders here." {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestAddTranscriptPositions(t *testing.T) {
	after := prompt.AddTranscript("base message", "the words", prompt.After)
	if !strings.HasPrefix(after, "base message\n\n=== TRANSCRIPT ===\nthe words") {
		t.Fatalf("unexpected AFTER layout: %q", after)
	}

	before := prompt.AddTranscript("base message", "the words", prompt.Before)
	if !strings.HasPrefix(before, "=== TRANSCRIPT ===\nthe words") {
		t.Fatalf("unexpected BEFORE layout: %q", before)
	}
	if !strings.Contains(before, "base message") {
		t.Fatalf("BEFORE layout lost the message: %q", before)
	}
}

func TestAddObjectiveCountsTweets(t *testing.T) {
	out := prompt.AddObjective("body", 3, prompt.Before)
	if !strings.Contains(out, "generate exactly 3 standalone tweets") {
		t.Fatalf("unexpected objective block: %q", out)
	}
	if !strings.HasPrefix(out, "=== OBJECTIVE ===") {
		t.Fatalf("objective must lead the message: %q", out)
	}
}

func TestAddOutputLengthModes(t *testing.T) {
	fixed := prompt.AddOutputLength("body", &prompt.LengthPolicy{Mode: "fixed", Target: 120, TolerancePercent: 15}, prompt.After)
	if !strings.Contains(fixed, "approximately 120 characters (tolerance ±15%)") {
		t.Fatalf("unexpected fixed block: %q", fixed)
	}

	ranged := prompt.AddOutputLength("body", &prompt.LengthPolicy{Mode: "range", Min: 80, Max: 240, Unit: "tokens"}, prompt.After)
	if !strings.Contains(ranged, "between 80 and 240 tokens") {
		t.Fatalf("unexpected range block: %q", ranged)
	}

	if out := prompt.AddOutputLength("body", nil, prompt.After); out != "body" {
		t.Fatalf("nil policy must be a no-op, got %q", out)
	}
	if out := prompt.AddOutputLength("body", &prompt.LengthPolicy{Mode: "weird"}, prompt.After); out != "body" {
		t.Fatalf("unknown mode must be a no-op, got %q", out)
	}
}

func TestComposeLayersBlocksInOrder(t *testing.T) {
	composer := prompt.Composer{
		Tweets:         2,
		OutputLanguage: "English",
		Length:         &prompt.LengthPolicy{Mode: "range", Min: 80, Max: 280},
	}

	out, err := composer.Compose(
		"Summarize {video_title} for fans.",
		map[string]string{"video_title": "Concurrency Patterns"},
		"transcript words",
	)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	objective := strings.Index(out, "=== OBJECTIVE ===")
	body := strings.Index(out, "Summarize Concurrency Patterns for fans.")
	transcript := strings.Index(out, "=== TRANSCRIPT ===")
	language := strings.Index(out, "=== OUTPUT LANGUAGE ===")
	length := strings.Index(out, "=== OUTPUT LENGTH ===")
	for name, idx := range map[string]int{
		"objective": objective, "body": body, "transcript": transcript,
		"language": language, "length": length,
	} {
		if idx < 0 {
			t.Fatalf("missing %s section in %q", name, out)
		}
	}
	if !(objective < body && body < transcript && transcript < language && language < length) {
		t.Fatalf("sections out of order: %q", out)
	}
}

func TestComposePropagatesRenderErrors(t *testing.T) {
	composer := prompt.Composer{Tweets: 1}
	_, err := composer.Compose("Needs {missing}.", map[string]string{}, "t")
	if !errors.Is(err, services.ErrTemplate) {
		t.Fatalf("expected template error, got %v", err)
	}
}
