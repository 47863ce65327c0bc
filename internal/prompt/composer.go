package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"tweetloom/internal/services"
)

// Position controls whether an instruction block is prepended or appended.
type Position string

const (
	Before Position = "before"
	After  Position = "after"
)

// LengthPolicy describes the desired tweet length instruction.
type LengthPolicy struct {
	// Mode is "fixed" or "range".
	Mode string
	// Min and Max bound range mode.
	Min int
	Max int
	// Target and TolerancePercent drive fixed mode.
	Target           int
	TolerancePercent int
	// Unit is "chars" or "tokens".
	Unit string
}

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Render substitutes {name} placeholders in a template. Every placeholder
// must have a value; a missing one is a template defect, not a skippable
// gap, so it surfaces as an error.
func Render(template string, vars map[string]string) (string, error) {
	var missing []string
	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})
	if len(missing) > 0 {
		return "", services.Wrap(services.ErrTemplate, "compose", "render",
			fmt.Sprintf("missing value for placeholder %s", strings.Join(missing, ", ")), nil)
	}
	return rendered, nil
}

// AddTranscript attaches the transcript block to a message.
func AddTranscript(message, transcript string, position Position) string {
	block := "=== TRANSCRIPT ===\n" + transcript + "\n\n"
	return attach(message, block, position)
}

// AddObjective attaches the objective block stating how many tweets to produce.
func AddObjective(message string, tweets int, position Position) string {
	block := "=== OBJECTIVE ===\n" +
		fmt.Sprintf("Based on the provided transcript, generate exactly %d standalone tweets.\n", tweets) +
		"Each tweet must be crafted to maximize virality, driving the highest possible number of likes, retweets, and new followers.\n\n"
	return attach(message, block, position)
}

// AddOutputLanguage attaches the output language block.
func AddOutputLanguage(message, language string, position Position) string {
	block := "=== OUTPUT LANGUAGE ===\n" +
		fmt.Sprintf("The tweets must be generated in %s language.\n\n", language)
	return attach(message, block, position)
}

// AddOutputLength attaches a length instruction derived from the policy.
// A nil or unrecognized policy leaves the message untouched.
func AddOutputLength(message string, policy *LengthPolicy, position Position) string {
	if policy == nil {
		return message
	}

	unit := "characters"
	if strings.Contains(strings.ToLower(policy.Unit), "token") {
		unit = "tokens"
	}

	var block string
	switch strings.ToLower(policy.Mode) {
	case "fixed":
		target := policy.Target
		if target == 0 {
			target = policy.Min
		}
		tolerance := policy.TolerancePercent
		if tolerance == 0 {
			tolerance = 10
		}
		block = "=== OUTPUT LENGTH ===\n" +
			fmt.Sprintf("Generate tweets of approximately %d %s (tolerance ±%d%%).\n\n", target, unit, tolerance)
	case "range":
		block = "=== OUTPUT LENGTH ===\n" +
			fmt.Sprintf("Each tweet must be between %d and %d %s.\n\n", policy.Min, policy.Max, unit)
	default:
		return message
	}
	return attach(message, block, position)
}

func attach(message, block string, position Position) string {
	if position == Before {
		return block + strings.TrimLeft(message, " \t\n")
	}
	return strings.TrimRight(message, " \t\n") + "\n\n" + block
}

// Composer assembles the full generation prompt from a template, runtime
// variables, and the transcript.
type Composer struct {
	Tweets         int
	OutputLanguage string
	Length         *LengthPolicy
}

// Compose renders the template strictly, then layers the objective,
// transcript, language, and length blocks in the canonical order.
func (c Composer) Compose(template string, vars map[string]string, transcript string) (string, error) {
	message, err := Render(template, vars)
	if err != nil {
		return "", err
	}

	tweets := c.Tweets
	if tweets <= 0 {
		tweets = 1
	}

	message = AddObjective(message, tweets, Before)
	message = AddTranscript(message, transcript, After)
	if c.OutputLanguage != "" {
		message = AddOutputLanguage(message, c.OutputLanguage, After)
	}
	message = AddOutputLength(message, c.Length, After)
	return message, nil
}
