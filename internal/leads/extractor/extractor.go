// Package extractor pulls structured facts out of inbound message text.
// Extraction is deliberately conservative and best-effort: a missed fact is
// cheap, a wrong name on a lead is not, and extraction failure must never
// block message persistence or reply generation.
package extractor

import (
	"regexp"
	"strings"
	"unicode"
)

// Memory key namespace for coarse keyword tags.
const (
	KeyPlanInterest      = "interest.plan"
	KeyHasDependents     = "family.dependents"
	KeyElderInHousehold  = "family.elderly"
	KeyPriceObjection    = "objection.price"
	KeyPaymentPreference = "payment.preference"
)

// Fact is one extracted memory entry.
type Fact struct {
	Key   string
	Value string
}

// Result carries everything extracted from a single message. Nil profile
// fields mean "nothing found"; the caller only applies fields still unknown
// on the lead.
type Result struct {
	Name  *string
	Email *string
	City  *string
	Facts []Fact
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	cityPattern  = regexp.MustCompile(`(?i)\bi live in ([\p{L}][\p{L} ]{1,40})`)
	namePattern  = regexp.MustCompile(`(?i)\bmy name is ([\p{L}]+(?: [\p{L}]+)?)`)
)

// nameStopWords are replies that look like a bare name but are not one.
var nameStopWords = map[string]struct{}{
	"yes": {}, "no": {}, "ok": {}, "okay": {}, "hi": {}, "hello": {},
	"thanks": {}, "thank you": {}, "sure": {}, "maybe": {}, "what": {}, "why": {},
}

type tagRule struct {
	key     string
	value   string
	phrases []string
}

var tagRules = []tagRule{
	{KeyPlanInterest, "family", []string{"family plan", "plan for the family", "whole family"}},
	{KeyPlanInterest, "individual", []string{"just for me", "individual plan", "only for myself"}},
	{KeyHasDependents, "yes", []string{"my kids", "my children", "my son", "my daughter", "dependents"}},
	{KeyElderInHousehold, "yes", []string{"my mother", "my father", "my grandmother", "my grandfather", "elderly"}},
	{KeyPriceObjection, "yes", []string{"too expensive", "can't afford", "cheaper option", "out of my budget"}},
	{KeyPaymentPreference, "pix", []string{"pay with pix", "pix"}},
	{KeyPaymentPreference, "credit_card", []string{"credit card"}},
	{KeyPaymentPreference, "boleto", []string{"boleto"}},
}

// Extract runs all extractors over the message. botAskedName must be true
// only when the bot's immediately preceding message asked for the lead's
// name; bare-word name detection is far too loose otherwise.
func Extract(message string, botAskedName bool) Result {
	var res Result

	if botAskedName {
		if name := extractName(message); name != "" {
			res.Name = &name
		}
	}

	if email := emailPattern.FindString(message); email != "" {
		lowered := strings.ToLower(email)
		res.Email = &lowered
	}

	if city := extractCity(message); city != "" {
		res.City = &city
	}

	lowered := strings.ToLower(message)
	seen := make(map[string]struct{})
	for _, rule := range tagRules {
		if _, done := seen[rule.key]; done {
			continue
		}
		for _, phrase := range rule.phrases {
			if strings.Contains(lowered, phrase) {
				res.Facts = append(res.Facts, Fact{Key: rule.key, Value: rule.value})
				seen[rule.key] = struct{}{}
				break
			}
		}
	}

	return res
}

// cityStopWords end a city capture; "I live in Salvador with my kids" should
// yield Salvador, not the rest of the sentence.
var cityStopWords = map[string]struct{}{
	"with": {}, "and": {}, "but": {}, "so": {}, "because": {}, "near": {},
	"since": {}, "now": {}, "here": {},
}

func extractCity(message string) string {
	m := cityPattern.FindStringSubmatch(message)
	if len(m) != 2 {
		return ""
	}
	var kept []string
	for _, word := range strings.Fields(m[1]) {
		if _, stop := cityStopWords[strings.ToLower(word)]; stop {
			break
		}
		kept = append(kept, word)
	}
	if len(kept) == 0 {
		return ""
	}
	return titleCase(strings.Join(kept, " "))
}

// extractName accepts either an explicit "my name is X" pattern or a bare
// reply of one or two capitalized words with no digits or punctuation.
// Anything else is not a name.
func extractName(message string) string {
	if m := namePattern.FindStringSubmatch(message); len(m) == 2 {
		return titleCase(m[1])
	}

	trimmed := strings.TrimSpace(message)
	if _, stop := nameStopWords[strings.ToLower(trimmed)]; stop {
		return ""
	}

	words := strings.Fields(trimmed)
	if len(words) == 0 || len(words) > 2 {
		return ""
	}
	for _, word := range words {
		if !looksLikeNameWord(word) {
			return ""
		}
	}
	return titleCase(trimmed)
}

func looksLikeNameWord(word string) bool {
	runes := []rune(word)
	if len(runes) < 2 {
		return false
	}
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	if _, stop := nameStopWords[strings.ToLower(word)]; stop {
		return false
	}
	return true
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// BotAskedForName reports whether a bot message was a name question. The
// reconciler calls this on the last outbound message before running Extract.
func BotAskedForName(botMessage string) bool {
	lowered := strings.ToLower(botMessage)
	for _, phrase := range []string{"your name", "may i ask who", "who am i talking"} {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
