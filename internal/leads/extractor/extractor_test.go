package extractor

import "testing"

func TestExplicitNamePattern(t *testing.T) {
	res := Extract("my name is maria clara", true)
	if res.Name == nil || *res.Name != "Maria Clara" {
		t.Fatalf("expected name Maria Clara, got %v", res.Name)
	}
}

func TestBareNameOnlyWhenBotAsked(t *testing.T) {
	res := Extract("Maria Clara", false)
	if res.Name != nil {
		t.Fatalf("bare reply must not be a name when the bot did not ask, got %q", *res.Name)
	}

	res = Extract("Maria Clara", true)
	if res.Name == nil || *res.Name != "Maria Clara" {
		t.Fatalf("expected name Maria Clara, got %v", res.Name)
	}
}

func TestBareNameRejectsNoise(t *testing.T) {
	for _, msg := range []string{"Yes", "ok", "Maria123", "I will check with my wife first", "A"} {
		if res := Extract(msg, true); res.Name != nil {
			t.Fatalf("%q must not extract as a name, got %q", msg, *res.Name)
		}
	}
}

func TestEmailExtraction(t *testing.T) {
	res := Extract("you can reach me at Maria.Clara@Example.COM anytime", false)
	if res.Email == nil || *res.Email != "maria.clara@example.com" {
		t.Fatalf("expected lowered email, got %v", res.Email)
	}
}

func TestCityExtraction(t *testing.T) {
	res := Extract("I live in belo horizonte with my kids", false)
	if res.City == nil || *res.City != "Belo Horizonte" {
		t.Fatalf("expected city Belo Horizonte, got %v", res.City)
	}
}

func TestKeywordTagging(t *testing.T) {
	res := Extract("I want a family plan, my kids are small and it can't be too expensive. Pay with pix?", false)

	want := map[string]string{
		KeyPlanInterest:      "family",
		KeyHasDependents:     "yes",
		KeyPriceObjection:    "yes",
		KeyPaymentPreference: "pix",
	}
	got := make(map[string]string, len(res.Facts))
	for _, fact := range res.Facts {
		got[fact.Key] = fact.Value
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("expected fact %s=%s, got %q", key, value, got[key])
		}
	}
}

func TestTagKeyFiresOnce(t *testing.T) {
	res := Extract("family plan for the whole family", false)
	count := 0
	for _, fact := range res.Facts {
		if fact.Key == KeyPlanInterest {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected a single %s fact, got %d", KeyPlanInterest, count)
	}
}

func TestBotAskedForName(t *testing.T) {
	if !BotAskedForName("Nice to meet you! What is your name?") {
		t.Fatalf("expected name question to be detected")
	}
	if BotAskedForName("The family plan costs R$ 89 per month.") {
		t.Fatalf("price message must not count as a name question")
	}
}
