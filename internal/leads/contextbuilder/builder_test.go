package contextbuilder

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"zapleads_backend/internal/ai"
	"zapleads_backend/internal/knowledge"
	"zapleads_backend/internal/leads/repository"
)

func strPtr(s string) *string { return &s }

func TestBuildOrdersSystemHistoryCurrent(t *testing.T) {
	msgs := Build(Input{
		Persona: "You are Ana, a friendly health plan assistant.",
		History: []repository.Message{
			{Direction: repository.DirectionInbound, Body: strPtr("hi")},
			{Direction: repository.DirectionOutbound, Body: strPtr("Hello! How can I help?")},
		},
		Current: "how much is the plan?",
		Now:     time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	})

	if msgs[0].Role != ai.RoleSystem {
		t.Fatalf("first message must be the system turn, got %s", msgs[0].Role)
	}
	if msgs[1].Role != ai.RoleUser || msgs[1].Text != "hi" {
		t.Fatalf("unexpected history turn: %+v", msgs[1])
	}
	if msgs[2].Role != ai.RoleModel {
		t.Fatalf("outbound history must map to the model role, got %s", msgs[2].Role)
	}
	last := msgs[len(msgs)-1]
	if last.Role != ai.RoleUser || last.Text != "how much is the plan?" {
		t.Fatalf("current message must come last, got %+v", last)
	}
}

func TestBuildCapsHistory(t *testing.T) {
	history := make([]repository.Message, 30)
	for i := range history {
		history[i] = repository.Message{Direction: repository.DirectionInbound, Body: strPtr("msg")}
	}

	msgs := Build(Input{History: history, Current: "x", HistoryTurns: 15, Now: time.Now()})
	// system + 15 history + current
	if len(msgs) != 17 {
		t.Fatalf("expected 17 messages, got %d", len(msgs))
	}
}

func TestKnowledgeGroupedByCategory(t *testing.T) {
	msgs := Build(Input{
		Knowledge: []knowledge.Entry{
			{ID: uuid.New(), Category: "pricing", Title: "Monthly fee", Content: "R$ 89 per month"},
			{ID: uuid.New(), Category: "coverage", Title: "Exams", Content: "Lab exams included"},
			{ID: uuid.New(), Category: "pricing", Title: "Dependents", Content: "R$ 49 each"},
		},
		Current: "x",
		Now:     time.Now(),
	})

	system := msgs[0].Text
	if !strings.Contains(system, "[pricing]") || !strings.Contains(system, "[coverage]") {
		t.Fatalf("expected category groups in system turn:\n%s", system)
	}
	if strings.Index(system, "Dependents") < strings.Index(system, "Monthly fee") {
		t.Fatalf("entries of one category must stay together:\n%s", system)
	}
}

func TestProfileSegmentMarksKnownFields(t *testing.T) {
	msgs := Build(Input{
		Lead:    repository.Lead{Name: strPtr("Maria"), Email: strPtr("maria@example.com")},
		Current: "x",
		Now:     time.Now(),
	})

	system := msgs[0].Text
	if !strings.Contains(system, "never ask for these again") || !strings.Contains(system, "name: Maria") {
		t.Fatalf("known fields must be listed:\n%s", system)
	}
	if !strings.Contains(system, "Still unknown") || !strings.Contains(system, "city") {
		t.Fatalf("missing fields must be listed:\n%s", system)
	}
	if strings.Contains(strings.Split(system, "Still unknown")[1], "email") {
		t.Fatalf("known email must not appear as missing:\n%s", system)
	}
}

func TestTimeOfDayBucket(t *testing.T) {
	msgs := Build(Input{Current: "x", Now: time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)})
	if !strings.Contains(msgs[0].Text, "evening") {
		t.Fatalf("expected evening bucket:\n%s", msgs[0].Text)
	}
}

func TestTranscriptionPreferredOverBody(t *testing.T) {
	msgs := Build(Input{
		History: []repository.Message{{
			Direction:     repository.DirectionInbound,
			Kind:          repository.KindAudio,
			Body:          strPtr("[audio]"),
			Transcription: strPtr("I want the family plan"),
		}},
		Current: "x",
		Now:     time.Now(),
	})
	if msgs[1].Text != "I want the family plan" {
		t.Fatalf("expected transcription, got %q", msgs[1].Text)
	}
}

func TestMergeKnowledgeDeduplicates(t *testing.T) {
	shared := knowledge.Entry{ID: uuid.New(), Title: "Monthly fee"}
	merged := MergeKnowledge(
		[]knowledge.Entry{shared, {ID: uuid.New(), Title: "Exams"}},
		[]knowledge.Entry{shared, {ID: uuid.New(), Title: "Network"}},
	)
	if len(merged) != 3 {
		t.Fatalf("expected 3 unique entries, got %d", len(merged))
	}
	if merged[0].Title != "Monthly fee" {
		t.Fatalf("search order must win, got %q first", merged[0].Title)
	}
}
