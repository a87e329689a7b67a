// Package reconciler turns one webhook event into consistent lead state and,
// when the bot owns the conversation, a reply. It is the only writer of
// lead state on the inbound path; everything it calls out to is a port so
// collaborator failures degrade instead of crash.
package reconciler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"zapleads_backend/internal/ai"
	"zapleads_backend/internal/delivery"
	"zapleads_backend/internal/events"
	"zapleads_backend/internal/knowledge"
	"zapleads_backend/internal/leads/contextbuilder"
	"zapleads_backend/internal/leads/domain"
	"zapleads_backend/internal/leads/extractor"
	"zapleads_backend/internal/leads/repository"
	"zapleads_backend/internal/leads/scoring"
	"zapleads_backend/internal/scheduler"
	"zapleads_backend/internal/tenants"
	"zapleads_backend/platform/apperr"
	"zapleads_backend/platform/logger"
)

// Action values returned to the webhook caller.
const (
	ActionNoText      = "no_text"
	ActionHumanOwner  = "human_owner"
	ActionExcluded    = "excluded_contact"
	ActionHandoff     = "handoff"
	ActionBotReplied  = "bot_replied"
	ActionHumanSent   = "human_sent"
	ActionDuplicate   = "duplicate"
	ActionCreatedOnly = "created_only"
)

const summaryEvery = 5

// InboundEvent is the normalized webhook payload. Phone is already
// canonical.
type InboundEvent struct {
	InstanceTag       string
	Phone             string
	SenderName        string
	FromMe            bool
	ProviderMessageID string
	Kind              string
	Text              string
	Timestamp         time.Time
}

// Result is what the webhook endpoint reports back to the provider.
type Result struct {
	OK     bool   `json:"ok"`
	Action string `json:"action"`
}

type LeadStore interface {
	UpsertByPhone(ctx context.Context, params repository.UpsertLeadParams) (repository.Lead, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	UpdateProfile(ctx context.Context, leadID uuid.UUID, params repository.UpdateProfileParams) error
	UpdateStage(ctx context.Context, leadID uuid.UUID, stage string) error
	UpdateOwner(ctx context.Context, leadID uuid.UUID, owner string) error
	UpdateScore(ctx context.Context, leadID uuid.UUID, score int) error
	GetOrCreateConversation(ctx context.Context, leadID uuid.UUID) (repository.Conversation, error)
	CreateMessage(ctx context.Context, params repository.CreateMessageParams) (repository.Message, error)
	ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]repository.Message, error)
	CountInbound(ctx context.Context, conversationID uuid.UUID) (int, error)
	UpsertMemory(ctx context.Context, leadID uuid.UUID, key, value string) error
	ListMemories(ctx context.Context, leadID uuid.UUID) ([]repository.Memory, error)
	CreateHandoff(ctx context.Context, leadID uuid.UUID, requester, reason string) (repository.Handoff, error)
	IncrementUnread(ctx context.Context, conversationID uuid.UUID) error
	ResetUnread(ctx context.Context, conversationID uuid.UUID) error
}

type TenantStore interface {
	GetByInstanceTag(ctx context.Context, tag string) (tenants.Tenant, error)
	IsExcluded(ctx context.Context, tenantID uuid.UUID, phone string) (bool, error)
}

type KnowledgeStore interface {
	Search(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]knowledge.Entry, error)
	TopRanked(ctx context.Context, tenantID uuid.UUID, limit int) ([]knowledge.Entry, error)
	All(ctx context.Context, tenantID uuid.UUID) ([]knowledge.Entry, error)
}

type Completer interface {
	Complete(ctx context.Context, messages []ai.Message) (string, error)
}

type MediaUnderstander interface {
	Transcribe(ctx context.Context, data []byte, mimeType string) (string, error)
	Describe(ctx context.Context, data []byte, mimeType, caption string) (string, error)
}

type MediaFetcher interface {
	GetMediaBytes(ctx context.Context, providerMessageID string) ([]byte, string, error)
	GetProfilePicture(ctx context.Context, phone string) (string, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, phone, reply string) ([]delivery.Sent, error)
}

type MediaArchiver interface {
	Put(ctx context.Context, leadID uuid.UUID, kind string, data []byte, contentType string) (string, error)
}

type HandoffNotification struct {
	LeadName  string
	LeadPhone string
	Stage     string
	Score     int
	Reason    string
	Message   string
}

type HandoffNotifier interface {
	NotifyHandoff(ctx context.Context, note HandoffNotification) error
}

type Options struct {
	DefaultInstanceTag string
	Persona            string
	KnowledgeTopN      int
	HistoryTurns       int
}

type Service struct {
	store     LeadStore
	tenants   TenantStore
	knowledge KnowledgeStore
	completer Completer
	media     MediaUnderstander
	fetcher   MediaFetcher
	deliverer Deliverer
	archiver  MediaArchiver
	notifier  HandoffNotifier
	summaries scheduler.SummaryScheduler
	bus       events.Bus
	opts      Options
	locks     *keyedMutex
	log       *logger.Logger
}

func NewService(
	store LeadStore,
	tenantStore TenantStore,
	knowledgeStore KnowledgeStore,
	completer Completer,
	media MediaUnderstander,
	fetcher MediaFetcher,
	deliverer Deliverer,
	archiver MediaArchiver,
	notifier HandoffNotifier,
	summaries scheduler.SummaryScheduler,
	bus events.Bus,
	opts Options,
	log *logger.Logger,
) *Service {
	if opts.KnowledgeTopN <= 0 {
		opts.KnowledgeTopN = 8
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 15
	}
	return &Service{
		store:     store,
		tenants:   tenantStore,
		knowledge: knowledgeStore,
		completer: completer,
		media:     media,
		fetcher:   fetcher,
		deliverer: deliverer,
		archiver:  archiver,
		notifier:  notifier,
		summaries: summaries,
		bus:       bus,
		opts:      opts,
		locks:     newKeyedMutex(),
		log:       log,
	}
}

// Process reconciles one webhook event. Events for the same phone are
// serialized; different phones proceed in parallel.
func (s *Service) Process(ctx context.Context, event InboundEvent) (Result, error) {
	tag := event.InstanceTag
	if tag == "" {
		tag = s.opts.DefaultInstanceTag
	}
	tenant, err := s.tenants.GetByInstanceTag(ctx, tag)
	if errors.Is(err, tenants.ErrNotFound) {
		return Result{}, apperr.Wrap(apperr.KindNotFound, "unknown instance", err)
	}
	if err != nil {
		return Result{}, err
	}

	unlock := s.locks.Lock(tenant.ID.String() + ":" + event.Phone)
	defer unlock()

	// A fromSelf event carries the business account's own push name, which
	// must never overwrite the lead's display name.
	var providerName *string
	if !event.FromMe {
		providerName = optional(event.SenderName)
	}

	lead, created, err := s.store.UpsertByPhone(ctx, repository.UpsertLeadParams{
		TenantID:     tenant.ID,
		Phone:        event.Phone,
		ProviderName: providerName,
	})
	if err != nil {
		return Result{}, err
	}
	if created {
		s.publish(ctx, events.LeadCreated{BaseEvent: events.NewBaseEvent(), LeadID: lead.ID, TenantID: tenant.ID, Phone: lead.Phone})
		s.refreshAvatar(ctx, lead)
	}

	conv, err := s.store.GetOrCreateConversation(ctx, lead.ID)
	if err != nil {
		return Result{}, err
	}

	if event.FromMe {
		return s.processHumanMessage(ctx, lead, conv, event)
	}

	text, mediaKey, transcription := s.resolveText(ctx, lead, event)

	msg, err := s.store.CreateMessage(ctx, repository.CreateMessageParams{
		ConversationID:    conv.ID,
		Direction:         repository.DirectionInbound,
		Kind:              messageKind(event.Kind),
		Body:              optional(text),
		MediaKey:          mediaKey,
		Transcription:     transcription,
		ProviderMessageID: optional(event.ProviderMessageID),
	})
	if errors.Is(err, repository.ErrDuplicateMessage) {
		return Result{OK: true, Action: ActionDuplicate}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if err := s.store.IncrementUnread(ctx, conv.ID); err != nil {
		s.log.Warn("unread increment failed", "conversation_id", conv.ID, "error", err)
	}

	if text == "" {
		return Result{OK: true, Action: ActionNoText}, nil
	}

	excluded, err := s.tenants.IsExcluded(ctx, tenant.ID, event.Phone)
	if err != nil {
		s.log.Warn("exclusion check failed", "phone", event.Phone, "error", err)
	}
	if excluded {
		return Result{OK: true, Action: ActionExcluded}, nil
	}

	if lead.Owner == domain.OwnerHuman {
		return Result{OK: true, Action: ActionHumanOwner}, nil
	}

	if domain.WantsHuman(text) {
		return s.processHandoff(ctx, lead, text)
	}

	return s.runPipeline(ctx, lead, conv, msg, text)
}

// processHumanMessage records an operator message sent from the phone app,
// hands ownership to the human, and leaves a handoff audit row when the
// flip happens.
func (s *Service) processHumanMessage(ctx context.Context, lead repository.Lead, conv repository.Conversation, event InboundEvent) (Result, error) {
	_, err := s.store.CreateMessage(ctx, repository.CreateMessageParams{
		ConversationID:    conv.ID,
		Direction:         repository.DirectionOutbound,
		Kind:              messageKind(event.Kind),
		Body:              optional(event.Text),
		ProviderMessageID: optional(event.ProviderMessageID),
	})
	if errors.Is(err, repository.ErrDuplicateMessage) {
		return Result{OK: true, Action: ActionDuplicate}, nil
	}
	if err != nil {
		return Result{}, err
	}

	if err := s.store.ResetUnread(ctx, conv.ID); err != nil {
		s.log.Warn("unread reset failed", "conversation_id", conv.ID, "error", err)
	}

	if next := domain.NextOwner(lead.Owner, domain.ActionHumanSentMessage); next != lead.Owner {
		handoff, err := s.store.CreateHandoff(ctx, lead.ID, domain.HandoffRequesterHuman, "human replied from the channel app")
		if err != nil {
			return Result{}, err
		}
		if err := s.store.UpdateOwner(ctx, lead.ID, next); err != nil {
			return Result{}, err
		}
		s.publish(ctx, events.OwnershipChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			From:      lead.Owner,
			To:        next,
			Action:    string(domain.ActionHumanSentMessage),
		})
		s.publish(ctx, events.HandoffCreated{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			HandoffID: handoff.ID,
			Requester: handoff.Requester,
			Reason:    handoff.Reason,
		})
	}
	return Result{OK: true, Action: ActionHumanSent}, nil
}

// processHandoff flips ownership to human, records the audit row, notifies
// operators, and acknowledges to the lead.
func (s *Service) processHandoff(ctx context.Context, lead repository.Lead, text string) (Result, error) {
	handoff, err := s.store.CreateHandoff(ctx, lead.ID, domain.HandoffRequesterLead, "lead asked for a person")
	if err != nil {
		return Result{}, err
	}

	next := domain.NextOwner(lead.Owner, domain.ActionLeadRequestedHuman)
	if err := s.store.UpdateOwner(ctx, lead.ID, next); err != nil {
		return Result{}, err
	}
	if err := s.store.UpdateStage(ctx, lead.ID, domain.StageHumanRequested); err != nil {
		return Result{}, err
	}

	s.publish(ctx, events.OwnershipChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		From:      lead.Owner,
		To:        next,
		Action:    string(domain.ActionLeadRequestedHuman),
	})
	s.publish(ctx, events.HandoffCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		HandoffID: handoff.ID,
		Requester: handoff.Requester,
		Reason:    handoff.Reason,
	})

	if s.notifier != nil {
		note := HandoffNotification{
			LeadName:  derefOr(lead.Name, ""),
			LeadPhone: lead.Phone,
			Stage:     domain.StageHumanRequested,
			Score:     lead.Score,
			Reason:    handoff.Reason,
			Message:   text,
		}
		if err := s.notifier.NotifyHandoff(ctx, note); err != nil {
			s.log.CollaboratorError("handoff notifier", "notify", err)
		}
	}

	ack := "Of course! I'm getting a person from our team to continue with you. They'll reply here shortly."
	sent, err := s.deliverer.Deliver(ctx, lead.Phone, ack)
	if err != nil {
		s.log.CollaboratorError("gateway", "deliver handoff ack", err)
	}
	s.recordOutbound(ctx, lead, sent)

	return Result{OK: true, Action: ActionHandoff}, nil
}

// runPipeline executes scoring, funnel evaluation, fact extraction, context
// assembly, completion and delivery for a bot-owned conversation.
func (s *Service) runPipeline(ctx context.Context, lead repository.Lead, conv repository.Conversation, current repository.Message, text string) (Result, error) {
	history, err := s.store.ListRecentMessages(ctx, conv.ID, s.opts.HistoryTurns*2)
	if err != nil {
		return Result{}, err
	}
	// The current message was just persisted; keep history strictly prior.
	prior := make([]repository.Message, 0, len(history))
	for _, msg := range history {
		if msg.ID != current.ID {
			prior = append(prior, msg)
		}
	}

	inboundCount, err := s.store.CountInbound(ctx, conv.ID)
	if err != nil {
		return Result{}, err
	}

	s.extractFacts(ctx, lead, prior, text)

	score := scoring.Score(scoringHistory(prior), text)
	if score != lead.Score {
		if err := s.store.UpdateScore(ctx, lead.ID, score); err != nil {
			return Result{}, err
		}
	}

	next := domain.NextStage(domain.StageInput{
		Current:      lead.Stage,
		History:      messageBodies(prior),
		Message:      text,
		InboundCount: inboundCount,
		Score:        score,
	})
	if next != domain.StageUnchanged && next != lead.Stage {
		if err := s.store.UpdateStage(ctx, lead.ID, next); err != nil {
			return Result{}, err
		}
		s.publish(ctx, events.StageChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			TenantID:  lead.TenantID,
			From:      lead.Stage,
			To:        next,
			Score:     score,
		})
	}

	reply := s.generateReply(ctx, lead, prior, text, inboundCount)

	sent, err := s.deliverer.Deliver(ctx, lead.Phone, reply)
	s.recordOutbound(ctx, lead, sent)
	if err != nil {
		s.log.CollaboratorError("gateway", "deliver reply", err)
		return Result{OK: true, Action: ActionCreatedOnly}, nil
	}

	if inboundCount%summaryEvery == 0 && s.summaries != nil {
		payload := scheduler.SummaryRefreshPayload{LeadID: lead.ID.String(), TenantID: lead.TenantID.String()}
		if err := s.summaries.ScheduleSummaryRefresh(ctx, payload); err != nil {
			s.log.CollaboratorError("scheduler", "summary refresh enqueue", err)
		}
	}

	return Result{OK: true, Action: ActionBotReplied}, nil
}

// generateReply assembles context and calls the completion collaborator,
// falling back to a canned reply on failure.
func (s *Service) generateReply(ctx context.Context, lead repository.Lead, prior []repository.Message, text string, inboundCount int) string {
	if s.completer == nil {
		return fallbackReply(text)
	}

	entries := s.selectKnowledge(ctx, lead.TenantID, text, inboundCount)

	memories, err := s.store.ListMemories(ctx, lead.ID)
	if err != nil {
		s.log.Warn("memory load failed", "lead_id", lead.ID, "error", err)
	}

	messages := contextbuilder.Build(contextbuilder.Input{
		Persona:      s.opts.Persona,
		Knowledge:    entries,
		Memories:     memories,
		Lead:         lead,
		History:      prior,
		Current:      text,
		Now:          time.Now(),
		HistoryTurns: s.opts.HistoryTurns,
	})

	reply, err := s.completer.Complete(ctx, messages)
	if err != nil {
		s.log.CollaboratorError("completion", "generate reply", err)
		return fallbackReply(text)
	}
	return reply
}

// selectKnowledge gives a first-contact message the full knowledge base and
// later messages a search union top-ranked selection.
func (s *Service) selectKnowledge(ctx context.Context, tenantID uuid.UUID, text string, inboundCount int) []knowledge.Entry {
	if inboundCount <= 1 {
		entries, err := s.knowledge.All(ctx, tenantID)
		if err != nil {
			s.log.CollaboratorError("knowledge", "list all", err)
			return nil
		}
		return entries
	}

	search, err := s.knowledge.Search(ctx, tenantID, text, s.opts.KnowledgeTopN)
	if err != nil {
		s.log.CollaboratorError("knowledge", "search", err)
	}
	top, err := s.knowledge.TopRanked(ctx, tenantID, s.opts.KnowledgeTopN)
	if err != nil {
		s.log.CollaboratorError("knowledge", "top ranked", err)
	}
	return contextbuilder.MergeKnowledge(search, top)
}

// extractFacts applies the extractor output to the lead profile and memory.
// Everything here is best-effort.
func (s *Service) extractFacts(ctx context.Context, lead repository.Lead, prior []repository.Message, text string) {
	botAskedName := false
	for i := len(prior) - 1; i >= 0; i-- {
		if prior[i].Direction == repository.DirectionOutbound {
			if prior[i].Body != nil {
				botAskedName = extractor.BotAskedForName(*prior[i].Body)
			}
			break
		}
	}

	res := extractor.Extract(text, botAskedName)

	if res.Name != nil || res.Email != nil || res.City != nil {
		err := s.store.UpdateProfile(ctx, lead.ID, repository.UpdateProfileParams{
			Name:  res.Name,
			Email: res.Email,
			City:  res.City,
		})
		if err != nil {
			s.log.Warn("profile update failed", "lead_id", lead.ID, "error", err)
		}
	}

	for _, fact := range res.Facts {
		if err := s.store.UpsertMemory(ctx, lead.ID, fact.Key, fact.Value); err != nil {
			s.log.Warn("memory upsert failed", "lead_id", lead.ID, "key", fact.Key, "error", err)
		}
	}
}

// Placeholder bodies recorded when media cannot be turned into text, so a
// human reviewing the thread still sees that something arrived.
const (
	audioPlaceholder = "[audio not transcribed]"
	imagePlaceholder = "[image without description]"
)

// resolveText turns media payloads into text via transcription or
// captioning. The resolved text becomes the canonical message body; on
// failure it degrades to the caption or the kind's placeholder.
func (s *Service) resolveText(ctx context.Context, lead repository.Lead, event InboundEvent) (text string, mediaKey, transcription *string) {
	switch event.Kind {
	case repository.KindAudio, repository.KindImage:
	default:
		return event.Text, nil, nil
	}

	if s.fetcher == nil || s.media == nil {
		return mediaFallback(event), nil, nil
	}

	data, mimeType, err := s.fetcher.GetMediaBytes(ctx, event.ProviderMessageID)
	if err != nil {
		s.log.CollaboratorError("gateway", "get media", err)
		return mediaFallback(event), nil, nil
	}

	if s.archiver != nil {
		key, err := s.archiver.Put(ctx, lead.ID, event.Kind, data, mimeType)
		if err != nil {
			s.log.CollaboratorError("media archive", "put", err)
		} else if key != "" {
			mediaKey = &key
		}
	}

	var resolved string
	if event.Kind == repository.KindAudio {
		resolved, err = s.media.Transcribe(ctx, data, mimeType)
	} else {
		resolved, err = s.media.Describe(ctx, data, mimeType, event.Text)
	}
	if err != nil {
		s.log.CollaboratorError("media understanding", event.Kind, err)
		return mediaFallback(event), mediaKey, nil
	}
	return resolved, mediaKey, &resolved
}

func mediaFallback(event InboundEvent) string {
	if event.Kind == repository.KindImage {
		if event.Text != "" {
			return event.Text
		}
		return imagePlaceholder
	}
	return audioPlaceholder
}

// refreshAvatar fetches the profile picture for a new lead, best-effort.
func (s *Service) refreshAvatar(ctx context.Context, lead repository.Lead) {
	if s.fetcher == nil {
		return
	}
	url, err := s.fetcher.GetProfilePicture(ctx, lead.Phone)
	if err != nil {
		s.log.CollaboratorError("gateway", "profile picture", err)
		return
	}
	if url == "" {
		return
	}
	if err := s.store.UpdateProfile(ctx, lead.ID, repository.UpdateProfileParams{AvatarURL: &url}); err != nil {
		s.log.Warn("avatar update failed", "lead_id", lead.ID, "error", err)
	}
}

func (s *Service) recordOutbound(ctx context.Context, lead repository.Lead, sent []delivery.Sent) {
	if len(sent) == 0 {
		return
	}
	conv, err := s.store.GetOrCreateConversation(ctx, lead.ID)
	if err != nil {
		s.log.Warn("conversation load failed", "lead_id", lead.ID, "error", err)
		return
	}
	if err := s.store.ResetUnread(ctx, conv.ID); err != nil {
		s.log.Warn("unread reset failed", "conversation_id", conv.ID, "error", err)
	}
	for _, chunk := range sent {
		body := chunk.Body
		_, err := s.store.CreateMessage(ctx, repository.CreateMessageParams{
			ConversationID:    conv.ID,
			Direction:         repository.DirectionOutbound,
			Kind:              repository.KindText,
			Body:              &body,
			ProviderMessageID: optional(chunk.ProviderID),
		})
		if err != nil && !errors.Is(err, repository.ErrDuplicateMessage) {
			s.log.Warn("outbound message record failed", "lead_id", lead.ID, "error", err)
		}
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}

func scoringHistory(prior []repository.Message) []scoring.Message {
	history := make([]scoring.Message, 0, len(prior))
	for _, msg := range prior {
		text := messageText(msg)
		if text == "" {
			continue
		}
		history = append(history, scoring.Message{
			FromLead: msg.Direction == repository.DirectionInbound,
			Body:     text,
		})
	}
	return history
}

func messageBodies(prior []repository.Message) []string {
	bodies := make([]string, 0, len(prior))
	for _, msg := range prior {
		if text := messageText(msg); text != "" {
			bodies = append(bodies, text)
		}
	}
	return bodies
}

func messageText(msg repository.Message) string {
	if msg.Transcription != nil && *msg.Transcription != "" {
		return *msg.Transcription
	}
	if msg.Body != nil {
		return *msg.Body
	}
	return ""
}

func messageKind(kind string) string {
	switch kind {
	case repository.KindAudio, repository.KindImage:
		return kind
	default:
		return repository.KindText
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
