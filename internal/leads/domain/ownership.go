package domain

// Owner identifies who is responsible for replying to a lead.
const (
	OwnerBot   = "bot"
	OwnerHuman = "human"
)

// OwnershipAction is an explicit trigger for an ownership transition. There
// are no implicit transitions: inbound lead messages never change ownership
// on their own.
type OwnershipAction string

const (
	// ActionHumanSentMessage fires when a human agent replies from the
	// native channel app (a fromSelf event).
	ActionHumanSentMessage OwnershipAction = "human_sent_message"
	// ActionLeadRequestedHuman fires when the lead asks for a person.
	ActionLeadRequestedHuman OwnershipAction = "lead_requested_human"
	// ActionOperatorReturnToBot is the explicit dashboard action handing
	// the conversation back to the bot.
	ActionOperatorReturnToBot OwnershipAction = "operator_return_to_bot"
	// ActionOperatorAssume is the explicit dashboard action claiming the
	// conversation.
	ActionOperatorAssume OwnershipAction = "operator_assume"
)

// NextOwner applies an ownership action to the current owner. Unknown actions
// leave ownership untouched.
func NextOwner(current string, action OwnershipAction) string {
	switch action {
	case ActionHumanSentMessage, ActionLeadRequestedHuman, ActionOperatorAssume:
		return OwnerHuman
	case ActionOperatorReturnToBot:
		return OwnerBot
	default:
		return current
	}
}

// Handoff requester values recorded on the audit row.
const (
	HandoffRequesterLead  = "lead"
	HandoffRequesterHuman = "human"
)
