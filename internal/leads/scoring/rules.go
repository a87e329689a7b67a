package scoring

// Rule is one declarative keyword rule. A rule contributes its points at most
// once per evaluation, no matter how many of its phrases match. CurrentOnly
// rules are matched against the current message only so stale history cannot
// re-trigger them.
type Rule struct {
	Name        string
	Phrases     []string
	Points      int
	CurrentOnly bool
}

// Demographic signals: household composition hints. Clamped to [0, 100].
var demographicRules = []Rule{
	{
		Name:    "dependents",
		Phrases: []string{"my kids", "my children", "my son", "my daughter", "dependents"},
		Points:  40,
	},
	{
		Name:    "elderly_household",
		Phrases: []string{"my mother", "my father", "my grandmother", "my grandfather", "elderly"},
		Points:  40,
	},
	{
		Name:    "whole_family",
		Phrases: []string{"whole family", "family plan", "for the family"},
		Points:  20,
	},
}

// Need and pain signals. The negative price-shopping rule may push the sum
// below zero; the category is floored at zero and capped at 200.
var needRules = []Rule{
	{
		Name:    "health_condition",
		Phrases: []string{"diabetes", "hypertension", "chronic", "under treatment"},
		Points:  80,
	},
	{
		Name:    "explicit_need",
		Phrases: []string{"need a doctor", "need an appointment", "need an exam", "health problems"},
		Points:  60,
	},
	{
		Name:    "family_history",
		Phrases: []string{"family history", "runs in the family"},
		Points:  40,
	},
	{
		Name:    "overdue_checkup",
		Phrases: []string{"haven't seen a doctor", "last checkup", "no checkup in"},
		Points:  40,
	},
	{
		Name:    "price_shopping_only",
		Phrases: []string{"just checking prices", "only want the price", "just comparing prices"},
		Points:  -60,
	},
}

// Product-literacy signals. Weighted highest: a lead who understands the
// product converts better than an urgent one who misunderstands it.
// Clamped to [0, 300].
var literacyRules = []Rule{
	{
		Name:    "knows_not_insurance",
		Phrases: []string{"not insurance", "isn't insurance", "different from insurance", "not a health plan"},
		Points:  120,
	},
	{
		Name:    "prevention_minded",
		Phrases: []string{"prevention", "preventive", "regular check-ups"},
		Points:  80,
	},
	{
		Name:    "asks_how_to_use",
		Phrases: []string{"how do i use", "how does the card work", "where can i use", "which clinics"},
		Points:  100,
	},
}

// Decision-intent signals. The stalling rules are negative and current-only;
// their contribution flows into the total unfloored (the final clamp at zero
// is what keeps the score non-negative). Capped at 200.
var decisionRules = []Rule{
	{
		Name:        "subscribe_intent",
		Phrases:     []string{"want to subscribe", "sign me up", "want to join", "send me the link"},
		Points:      120,
		CurrentOnly: true,
	},
	{
		Name:    "pricing_question",
		Phrases: []string{"how much", "price", "cost"},
		Points:  60,
	},
	{
		Name:    "payment_method",
		Phrases: []string{"credit card", "debit", "boleto", "pix", "payment method"},
		Points:  60,
	},
	{
		Name:        "stalling_think",
		Phrases:     []string{"i'll think about it", "let me think"},
		Points:      -50,
		CurrentOnly: true,
	},
	{
		Name:        "stalling_later",
		Phrases:     []string{"maybe later", "not sure yet"},
		Points:      -40,
		CurrentOnly: true,
	},
}

// pricePhrases mark a bot message as a pricing statement for the
// silence-after-price behavioral penalty.
var pricePhrases = []string{"r$", "per month", "monthly fee", "the price is", "costs "}
