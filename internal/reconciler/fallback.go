package reconciler

import "strings"

// Deterministic replies used when the completion collaborator fails. The
// conversation degrades but never goes silent.
const (
	fallbackGreeting = "Hi! Thanks for reaching out. I can tell you all about our health plan. What would you like to know?"
	fallbackPricing  = "Great question about pricing! Our plans start at an accessible monthly fee. Can I confirm who the plan would be for so I can give you exact numbers?"
	fallbackThanks   = "You're welcome! If anything else comes up, just send me a message."
	fallbackDefault  = "Thanks for your message! I want to give you a proper answer. Could you tell me a bit more about what you're looking for?"
)

var (
	greetingWords = []string{"hi", "hello", "hey", "good morning", "good afternoon", "good evening", "ola", "oi"}
	pricingWords  = []string{"price", "cost", "how much", "monthly fee", "expensive", "cheap"}
	thanksWords   = []string{"thank", "thanks", "obrigad"}
)

// fallbackReply picks a canned reply by coarse intent.
func fallbackReply(message string) string {
	lowered := strings.ToLower(strings.TrimSpace(message))

	for _, word := range pricingWords {
		if strings.Contains(lowered, word) {
			return fallbackPricing
		}
	}
	for _, word := range thanksWords {
		if strings.Contains(lowered, word) {
			return fallbackThanks
		}
	}
	for _, word := range greetingWords {
		if lowered == word || strings.HasPrefix(lowered, word+" ") || strings.HasPrefix(lowered, word+"!") || strings.HasPrefix(lowered, word+",") {
			return fallbackGreeting
		}
	}
	return fallbackDefault
}
