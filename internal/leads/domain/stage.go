// Package domain holds the pure state machines of the lead engine: the sales
// funnel and conversation ownership. Both are pure functions over explicit
// inputs so they can be tested without storage or collaborators.
package domain

import "strings"

const (
	// StageUnchanged is a sentinel indicating that a derivation function
	// intentionally does not prescribe a stage. The caller must keep the
	// current stage of the lead.
	StageUnchanged = ""

	StageNew              = "NEW"
	StageInProgress       = "IN_PROGRESS"
	StageAware            = "AWARE"
	StageQualified        = "QUALIFIED"
	StageNegotiating      = "NEGOTIATING"
	StageHumanRequested   = "HUMAN_REQUESTED"
	StageProposalSent     = "PROPOSAL_SENT"
	StageAwaitingResponse = "AWAITING_RESPONSE"
	StageCold             = "COLD"
	StageWon              = "WON"
	StageLost             = "LOST"
	StageHumanAssisting   = "HUMAN_ASSISTING"
)

// orderedStages is the score-driven advancement path. Side stages (WON, LOST,
// COLD, PROPOSAL_SENT, AWAITING_RESPONSE, HUMAN_ASSISTING) are reachable only
// by explicit signal and never appear here.
var orderedStages = map[string]int{
	StageNew:            0,
	StageInProgress:     1,
	StageAware:          2,
	StageQualified:      3,
	StageNegotiating:    4,
	StageHumanRequested: 5,
}

// SignalRule is a declarative keyword rule. CurrentOnly rules match against
// the current message only, so stale history cannot re-trigger them.
type SignalRule struct {
	Phrases     []string
	CurrentOnly bool
}

var lostSignals = SignalRule{
	Phrases: []string{
		"not interested",
		"stop messaging me",
		"don't contact me",
		"do not contact me",
		"already hired another",
		"leave me alone",
	},
}

var wonSignals = SignalRule{
	CurrentOnly: true,
	Phrases: []string{
		"payment confirmed",
		"just paid",
		"i made the payment",
		"subscription is active",
		"signed up and paid",
	},
}

var qualifiedSignals = SignalRule{
	Phrases: []string{
		"how much does the plan cost",
		"price of the plan",
		"what does the plan cover",
		"which plans do you have",
		"monthly fee",
	},
}

var coldSignals = SignalRule{
	CurrentOnly: true,
	Phrases: []string{
		"maybe next month",
		"talk to you later",
		"not right now",
		"i'll get back to you",
	},
}

// qualifiedFromStages are the stages the qualified-signal rule may fire from
// (besides NEW with prior conversation).
var qualifiedFromStages = map[string]struct{}{
	StageInProgress:       {},
	StageQualified:        {},
	StageProposalSent:     {},
	StageNegotiating:      {},
	StageAwaitingResponse: {},
}

// StageInput carries everything the funnel transition needs for one inbound
// message.
type StageInput struct {
	Current string
	// History is the bodies of all prior messages in the conversation,
	// oldest first, both directions.
	History []string
	// Message is the current inbound message body.
	Message string
	// InboundCount is the number of lead-sent messages including the
	// current one.
	InboundCount int
	// Score is the freshly computed lead score.
	Score int
}

// NextStage evaluates the transition policy for one inbound message and
// returns the next stage, or StageUnchanged when nothing fires.
//
// Priority order: lost signal, won signal, qualified signal, the NEW
// bootstrap rule, cold signal, then score-driven advancement. Score-driven
// advancement never leaves the ordered path and never regresses.
func NextStage(in StageInput) string {
	corpus := strings.ToLower(strings.Join(in.History, "\n") + "\n" + in.Message)
	current := strings.ToLower(in.Message)

	if matches(lostSignals, corpus, current) {
		return StageLost
	}
	if matches(wonSignals, corpus, current) {
		return StageWon
	}

	priorMessages := len(in.History)
	if matches(qualifiedSignals, corpus, current) && qualifiedAllowed(in.Current, priorMessages) {
		return StageQualified
	}

	if in.Current == StageNew && in.InboundCount >= 2 {
		return StageInProgress
	}

	if matches(coldSignals, corpus, current) {
		return StageCold
	}

	return scoreSuggestion(in.Current, in.Score)
}

func qualifiedAllowed(current string, priorMessages int) bool {
	if current == StageWon || current == StageLost {
		return false
	}
	if _, ok := qualifiedFromStages[current]; ok {
		return true
	}
	return current == StageNew && priorMessages >= 1
}

// scoreSuggestion maps the score to a suggested stage and applies it only if
// the current stage is on the ordered path and the suggestion is strictly
// later. A zero score carries no signal and prescribes nothing, so a bare
// greeting never advances a fresh lead.
func scoreSuggestion(current string, score int) string {
	if score <= 0 {
		return StageUnchanged
	}

	currentIdx, ok := orderedStages[current]
	if !ok {
		return StageUnchanged
	}

	var suggested string
	switch {
	case score >= 800:
		suggested = StageHumanRequested
	case score >= 600:
		suggested = StageNegotiating
	case score >= 400:
		suggested = StageQualified
	case score >= 200:
		suggested = StageAware
	default:
		suggested = StageInProgress
	}

	if orderedStages[suggested] <= currentIdx {
		return StageUnchanged
	}
	return suggested
}

func matches(rule SignalRule, corpus, current string) bool {
	haystack := corpus
	if rule.CurrentOnly {
		haystack = current
	}
	for _, phrase := range rule.Phrases {
		if strings.Contains(haystack, phrase) {
			return true
		}
	}
	return false
}

// HandoffPhrases are the "I want a human" requests the reconciler checks
// before invoking the bot.
var HandoffPhrases = []string{
	"talk to a human",
	"speak to a person",
	"talk to an attendant",
	"real person",
	"talk to someone",
	"human please",
}

// WantsHuman reports whether the message asks for a human operator.
func WantsHuman(message string) bool {
	lowered := strings.ToLower(message)
	for _, phrase := range HandoffPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
