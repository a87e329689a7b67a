// Package summary maintains the rolling conversation summary on the lead.
// Refreshes run in the background worker so webhook handling never waits on
// a second completion call.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"zapleads_backend/internal/ai"
	"zapleads_backend/internal/leads/repository"
	"zapleads_backend/platform/logger"
)

const historyWindow = 40

type Completer interface {
	Complete(ctx context.Context, messages []ai.Message) (string, error)
}

type Service struct {
	repo      *repository.Repository
	completer Completer
	log       *logger.Logger
}

func NewService(repo *repository.Repository, completer Completer, log *logger.Logger) *Service {
	return &Service{repo: repo, completer: completer, log: log}
}

// Refresh regenerates the lead's summary from recent history.
func (s *Service) Refresh(ctx context.Context, leadID uuid.UUID) error {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return fmt.Errorf("load lead: %w", err)
	}

	conv, err := s.repo.GetOrCreateConversation(ctx, lead.ID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}

	messages, err := s.repo.ListRecentMessages(ctx, conv.ID, historyWindow)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}

	text, err := s.completer.Complete(ctx, []ai.Message{
		{Role: ai.RoleSystem, Text: "Summarize this sales conversation in at most four sentences. " +
			"Capture who the lead is, what they need, objections raised, and where the deal stands. " +
			"Write in the third person."},
		{Role: ai.RoleUser, Text: transcript(messages)},
	})
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	if err := s.repo.UpdateSummary(ctx, lead.ID, text); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}

	s.log.Info("conversation summary refreshed", "lead_id", lead.ID)
	return nil
}

func transcript(messages []repository.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		text := ""
		if msg.Transcription != nil && *msg.Transcription != "" {
			text = *msg.Transcription
		} else if msg.Body != nil {
			text = *msg.Body
		}
		if text == "" {
			continue
		}
		speaker := "Lead"
		if msg.Direction == repository.DirectionOutbound {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, text)
	}
	return b.String()
}
