package scoring

import "testing"

func TestScoreIsIdempotent(t *testing.T) {
	history := []Message{
		{FromLead: true, Body: "Hi, I need a doctor for my kids"},
		{FromLead: false, Body: "Of course! Tell me more."},
		{FromLead: true, Body: "how much does it cost?"},
	}
	current := "I want to subscribe, send me the link"

	first := Score(history, current)
	second := Score(history, current)
	if first != second {
		t.Fatalf("score not idempotent: %d != %d", first, second)
	}
}

func TestScoreStaysWithinBounds(t *testing.T) {
	inputs := []struct {
		history []Message
		current string
	}{
		{nil, ""},
		{nil, "i'll think about it, maybe later"},
		{
			[]Message{
				{FromLead: true, Body: "my kids and my mother need a doctor? diabetes runs in the family?"},
				{FromLead: true, Body: "this is not insurance right? prevention matters, how do i use it?"},
				{FromLead: true, Body: "how much? credit card ok?"},
				{FromLead: true, Body: "another question?"},
				{FromLead: true, Body: "and one more?"},
			},
			"want to subscribe, send me the link, how much, pix payment method?",
		},
	}
	for _, in := range inputs {
		got := Score(in.history, in.current)
		if got < 0 || got > MaxScore {
			t.Fatalf("score %d out of [0, %d] for %q", got, MaxScore, in.current)
		}
	}
}

func TestSubscribeIntentAddsDecisionPoints(t *testing.T) {
	b := Evaluate(nil, "I want to subscribe, send me the link")
	if b.Decision != 120 {
		t.Fatalf("expected decision subtotal 120, got %d", b.Decision)
	}
}

func TestSubscribeIntentIsCurrentOnly(t *testing.T) {
	history := []Message{{FromLead: true, Body: "I want to subscribe"}}
	b := Evaluate(history, "ok")
	if b.Decision != 0 {
		t.Fatalf("stale subscribe intent must not score, got decision %d", b.Decision)
	}
}

func TestRuleContributesAtMostOnce(t *testing.T) {
	// Two phrases of the same rule in one message still score once.
	b := Evaluate(nil, "want to subscribe and sign me up")
	if b.Decision != 120 {
		t.Fatalf("expected decision subtotal 120, got %d", b.Decision)
	}
}

func TestNeedCategoryFlooredAtZero(t *testing.T) {
	b := Evaluate(nil, "just checking prices")
	if b.Need != 0 {
		t.Fatalf("expected floored need subtotal 0, got %d", b.Need)
	}
}

func TestDecisionNegativesFlowIntoTotal(t *testing.T) {
	// A stalling reply alongside a literacy signal drags the total down
	// instead of being floored per category.
	withStall := Score(nil, "prevention is important but i'll think about it")
	withoutStall := Score(nil, "prevention is important")
	if withStall >= withoutStall {
		t.Fatalf("expected stalling penalty to lower total: %d >= %d", withStall, withoutStall)
	}
}

func TestQuestionCountingRewardsEngagement(t *testing.T) {
	oneQuestion := Evaluate(nil, "how does the card work?")
	if oneQuestion.Behavior != 30 {
		t.Fatalf("expected +30 for a single question, got %d", oneQuestion.Behavior)
	}

	history := []Message{{FromLead: true, Body: "is it nationwide?"}}
	twoQuestions := Evaluate(history, "which clinics can i go to?")
	if twoQuestions.Behavior != 50 {
		t.Fatalf("expected +50 for two questions, got %d", twoQuestions.Behavior)
	}
}

func TestMonosyllabicRepliesPenalized(t *testing.T) {
	history := []Message{
		{FromLead: true, Body: "ok"},
		{FromLead: false, Body: "Our plan covers the whole family."},
		{FromLead: true, Body: "yes"},
	}
	b := Evaluate(history, "fine")
	// Three lead messages, all short: engagement +20, short-reply -30.
	if b.Behavior != 0 {
		t.Fatalf("expected behavior floored at 0 (20-30 clamped), got %d", b.Behavior)
	}
}

func TestSilenceAfterPricePenalized(t *testing.T) {
	history := []Message{
		{FromLead: true, Body: "how much is it for my family? we need full coverage"},
		{FromLead: false, Body: "The family plan costs R$ 89 per month."},
	}
	quiet := Evaluate(history, "hm")
	engaged := Evaluate(history, "great, that fits our family budget well")
	if quiet.Behavior >= engaged.Behavior {
		t.Fatalf("expected price-silence penalty: quiet=%d engaged=%d", quiet.Behavior, engaged.Behavior)
	}
}
