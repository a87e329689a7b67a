package domain

import "testing"

const fmtWrongStage = "expected stage %q, got %q"

func TestFreshLeadGreetingStaysNew(t *testing.T) {
	next := NextStage(StageInput{
		Current:      StageNew,
		History:      nil,
		Message:      "Hi",
		InboundCount: 1,
		Score:        0,
	})
	if next != StageUnchanged {
		t.Fatalf(fmtWrongStage, StageUnchanged, next)
	}
}

func TestSecondInboundMessageMovesNewToInProgress(t *testing.T) {
	next := NextStage(StageInput{
		Current:      StageNew,
		History:      []string{"Hi", "Hello! How can I help you today?"},
		Message:      "Hello again",
		InboundCount: 2,
		Score:        0,
	})
	if next != StageInProgress {
		t.Fatalf(fmtWrongStage, StageInProgress, next)
	}
}

func TestPricingQuestionOnFirstMessageDoesNotQualify(t *testing.T) {
	// Qualified signal needs NEW plus at least one prior message; a brand
	// new lead asking about price lands in IN_PROGRESS via the score path.
	next := NextStage(StageInput{
		Current:      StageNew,
		History:      nil,
		Message:      "how much does the plan cost?",
		InboundCount: 1,
		Score:        90,
	})
	if next != StageInProgress {
		t.Fatalf(fmtWrongStage, StageInProgress, next)
	}
}

func TestPricingQuestionQualifiesWithPriorConversation(t *testing.T) {
	next := NextStage(StageInput{
		Current:      StageNew,
		History:      []string{"Hi", "Hello! How can I help?"},
		Message:      "how much does the plan cost?",
		InboundCount: 2,
		Score:        90,
	})
	if next != StageQualified {
		t.Fatalf(fmtWrongStage, StageQualified, next)
	}
}

func TestLostSignalWinsOverEverything(t *testing.T) {
	next := NextStage(StageInput{
		Current:      StageNegotiating,
		History:      []string{"how much does the plan cost?"},
		Message:      "not interested, stop messaging me",
		InboundCount: 5,
		Score:        900,
	})
	if next != StageLost {
		t.Fatalf(fmtWrongStage, StageLost, next)
	}
}

func TestWonSignalMatchesCurrentMessageOnly(t *testing.T) {
	// A stale confirmation in history must not re-trigger WON.
	next := NextStage(StageInput{
		Current:      StageWon,
		History:      []string{"payment confirmed"},
		Message:      "thanks!",
		InboundCount: 4,
		Score:        100,
	})
	if next != StageUnchanged {
		t.Fatalf(fmtWrongStage, StageUnchanged, next)
	}

	next = NextStage(StageInput{
		Current:      StageNegotiating,
		History:      []string{"which plans do you have"},
		Message:      "payment confirmed, just paid",
		InboundCount: 4,
		Score:        500,
	})
	if next != StageWon {
		t.Fatalf(fmtWrongStage, StageWon, next)
	}
}

func TestSubscribeIntentIsNotAWonSignal(t *testing.T) {
	next := NextStage(StageInput{
		Current:      StageInProgress,
		History:      []string{"Hi", "Hello!"},
		Message:      "I want to subscribe, send me the link",
		InboundCount: 2,
		Score:        450,
	})
	if next == StageWon {
		t.Fatalf("subscribe intent without payment confirmation must not reach WON")
	}
	if next != StageQualified {
		t.Fatalf(fmtWrongStage, StageQualified, next)
	}
}

func TestScorePathNeverRegresses(t *testing.T) {
	next := NextStage(StageInput{
		Current:      StageQualified,
		History:      []string{"hello", "hi there"},
		Message:      "ok",
		InboundCount: 6,
		Score:        50,
	})
	if next != StageUnchanged {
		t.Fatalf(fmtWrongStage, StageUnchanged, next)
	}
}

func TestScorePathNeverLeavesSideStages(t *testing.T) {
	for _, stage := range []string{StageCold, StageAwaitingResponse, StageHumanAssisting, StageWon, StageLost} {
		next := NextStage(StageInput{
			Current:      stage,
			History:      []string{"hello", "hi"},
			Message:      "tell me more",
			InboundCount: 3,
			Score:        850,
		})
		if next != StageUnchanged {
			t.Fatalf("stage %q: expected no score-driven transition, got %q", stage, next)
		}
	}
}

func TestScoreThresholdAdvancement(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{850, StageHumanRequested},
		{650, StageNegotiating},
		{450, StageQualified},
		{250, StageAware},
	}
	for _, tc := range cases {
		next := NextStage(StageInput{
			Current:      StageInProgress,
			History:      []string{"hello", "hi"},
			Message:      "tell me more about coverage",
			InboundCount: 3,
			Score:        tc.score,
		})
		if next != tc.want {
			t.Fatalf("score %d: %s", tc.score, next)
		}
	}
}

func TestColdSignalMatchesCurrentMessageOnly(t *testing.T) {
	next := NextStage(StageInput{
		Current:      StageAware,
		History:      []string{"maybe next month"},
		Message:      "tell me more about the plan coverage options here",
		InboundCount: 3,
		Score:        0,
	})
	if next == StageCold {
		t.Fatalf("stale deferral in history must not re-trigger COLD")
	}

	next = NextStage(StageInput{
		Current:      StageAware,
		History:      []string{"hello", "hi"},
		Message:      "maybe next month, ok?",
		InboundCount: 3,
		Score:        0,
	})
	if next != StageCold {
		t.Fatalf(fmtWrongStage, StageCold, next)
	}
}

func TestWantsHuman(t *testing.T) {
	if !WantsHuman("can I talk to a human?") {
		t.Fatalf("expected handoff phrase to match")
	}
	if WantsHuman("how much does the plan cost?") {
		t.Fatalf("pricing question must not trigger handoff")
	}
}
