// Package scoring computes the lead quality score. The score is a pure
// function of the full message history plus the current message, recomputed
// from scratch on every inbound message so it is reproducible and trivially
// testable.
package scoring

import "strings"

const (
	// MaxScore is the upper bound of the final score.
	MaxScore = 1000

	maxDemographic = 100
	maxNeed        = 200
	maxLiteracy    = 300
	maxBehavior    = 200
	maxDecision    = 200
)

// Message is one turn of the conversation as the engine sees it.
type Message struct {
	FromLead bool
	Body     string
}

// Breakdown exposes the per-category subtotals for observability and tests.
type Breakdown struct {
	Demographic int
	Need        int
	Literacy    int
	Behavior    int
	Decision    int
	Total       int
}

// Score computes the final score in [0, MaxScore].
func Score(history []Message, current string) int {
	return Evaluate(history, current).Total
}

// Evaluate computes all category subtotals.
//
// Category flooring is deliberately asymmetric: need and behavior subtotals
// are floored at zero before summation, while decision-intent negatives flow
// into the total and are only caught by the final clamp. This mirrors the
// shipped behavior; the final range and the no-regression property are the
// contract, not the internal symmetry.
func Evaluate(history []Message, current string) Breakdown {
	var corpusBuilder strings.Builder
	for _, msg := range history {
		corpusBuilder.WriteString(strings.ToLower(msg.Body))
		corpusBuilder.WriteString("\n")
	}
	currentLower := strings.ToLower(current)
	corpusBuilder.WriteString(currentLower)
	corpus := corpusBuilder.String()

	b := Breakdown{
		Demographic: clamp(applyRules(demographicRules, corpus, currentLower), 0, maxDemographic),
		Need:        clamp(floorZero(applyRules(needRules, corpus, currentLower)), 0, maxNeed),
		Literacy:    clamp(applyRules(literacyRules, corpus, currentLower), 0, maxLiteracy),
		Behavior:    floorZero(clamp(behaviorScore(history, current), -maxBehavior, maxBehavior)),
		Decision:    minInt(applyRules(decisionRules, corpus, currentLower), maxDecision),
	}

	b.Total = clamp(b.Demographic+b.Need+b.Literacy+b.Behavior+b.Decision, 0, MaxScore)
	return b
}

func applyRules(rules []Rule, corpus, current string) int {
	total := 0
	for _, rule := range rules {
		haystack := corpus
		if rule.CurrentOnly {
			haystack = current
		}
		for _, phrase := range rule.Phrases {
			if strings.Contains(haystack, phrase) {
				total += rule.Points
				break
			}
		}
	}
	return total
}

// behaviorScore is the one non-keyword category: it reads conversational
// behavior out of the message sequence.
func behaviorScore(history []Message, current string) int {
	leadMessages := make([]string, 0, len(history)+1)
	var lastBotBody string
	for _, msg := range history {
		if msg.FromLead {
			leadMessages = append(leadMessages, msg.Body)
		} else {
			lastBotBody = msg.Body
		}
	}
	leadMessages = append(leadMessages, current)

	score := 0

	questions := 0
	for _, body := range leadMessages {
		if strings.Contains(body, "?") {
			questions++
		}
	}
	switch {
	case questions >= 2:
		score += 50
	case questions >= 1:
		score += 30
	}

	if len(leadMessages) >= 3 {
		short := 0
		for _, body := range leadMessages {
			if wordCount(body) <= 2 {
				short++
			}
		}
		if short*2 > len(leadMessages) {
			score -= 30
		}
	}

	switch {
	case len(leadMessages) >= 5:
		score += 40
	case len(leadMessages) >= 3:
		score += 20
	}

	// Going quiet right after the bot named a price is a strong negative.
	if mentionsPrice(lastBotBody) && wordCount(current) <= 2 {
		score -= 40
	}

	return score
}

func mentionsPrice(body string) bool {
	if body == "" {
		return false
	}
	lowered := strings.ToLower(body)
	for _, phrase := range pricePhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func wordCount(body string) int {
	return len(strings.Fields(body))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func floorZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
