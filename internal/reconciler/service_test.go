package reconciler

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"zapleads_backend/internal/ai"
	"zapleads_backend/internal/delivery"
	"zapleads_backend/internal/knowledge"
	"zapleads_backend/internal/leads/domain"
	"zapleads_backend/internal/leads/repository"
	"zapleads_backend/internal/scheduler"
	"zapleads_backend/internal/tenants"
	"zapleads_backend/platform/logger"
)

type fakeStore struct {
	lead       repository.Lead
	createNext bool
	conv       repository.Conversation
	messages   []repository.Message
	memories   map[string]string
	handoffs   []repository.Handoff
	stages     []string
	owners     []string
	scores     []int
	upserts    []repository.UpsertLeadParams
	unread     int
	resets     int
}

func newFakeStore() *fakeStore {
	leadID := uuid.New()
	return &fakeStore{
		lead: repository.Lead{
			ID:       leadID,
			TenantID: uuid.New(),
			Phone:    "5531999990000",
			Stage:    domain.StageNew,
			Owner:    domain.OwnerBot,
		},
		conv:     repository.Conversation{ID: uuid.New(), LeadID: leadID},
		memories: make(map[string]string),
	}
}

func (f *fakeStore) UpsertByPhone(_ context.Context, params repository.UpsertLeadParams) (repository.Lead, bool, error) {
	f.upserts = append(f.upserts, params)
	if params.ProviderName != nil {
		f.lead.ProviderName = params.ProviderName
		if f.lead.Name == nil {
			f.lead.Name = params.ProviderName
		}
	}
	created := f.createNext
	f.createNext = false
	return f.lead, created, nil
}

func (f *fakeStore) GetByID(_ context.Context, _ uuid.UUID) (repository.Lead, error) {
	return f.lead, nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, _ uuid.UUID, _ repository.UpdateProfileParams) error {
	return nil
}

func (f *fakeStore) UpdateStage(_ context.Context, _ uuid.UUID, stage string) error {
	f.stages = append(f.stages, stage)
	f.lead.Stage = stage
	return nil
}

func (f *fakeStore) UpdateOwner(_ context.Context, _ uuid.UUID, owner string) error {
	f.owners = append(f.owners, owner)
	f.lead.Owner = owner
	return nil
}

func (f *fakeStore) UpdateScore(_ context.Context, _ uuid.UUID, score int) error {
	f.scores = append(f.scores, score)
	f.lead.Score = score
	return nil
}

func (f *fakeStore) GetOrCreateConversation(_ context.Context, _ uuid.UUID) (repository.Conversation, error) {
	return f.conv, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, params repository.CreateMessageParams) (repository.Message, error) {
	if params.ProviderMessageID != nil {
		for _, msg := range f.messages {
			if msg.ProviderMessageID != nil && *msg.ProviderMessageID == *params.ProviderMessageID {
				return repository.Message{}, repository.ErrDuplicateMessage
			}
		}
	}
	msg := repository.Message{
		ID:                uuid.New(),
		ConversationID:    params.ConversationID,
		Direction:         params.Direction,
		Kind:              params.Kind,
		Body:              params.Body,
		MediaKey:          params.MediaKey,
		Transcription:     params.Transcription,
		ProviderMessageID: params.ProviderMessageID,
	}
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeStore) ListRecentMessages(_ context.Context, _ uuid.UUID, _ int) ([]repository.Message, error) {
	return append([]repository.Message{}, f.messages...), nil
}

func (f *fakeStore) CountInbound(_ context.Context, _ uuid.UUID) (int, error) {
	count := 0
	for _, msg := range f.messages {
		if msg.Direction == repository.DirectionInbound {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) UpsertMemory(_ context.Context, _ uuid.UUID, key, value string) error {
	f.memories[key] = value
	return nil
}

func (f *fakeStore) ListMemories(_ context.Context, _ uuid.UUID) ([]repository.Memory, error) {
	return nil, nil
}

func (f *fakeStore) CreateHandoff(_ context.Context, leadID uuid.UUID, requester, reason string) (repository.Handoff, error) {
	h := repository.Handoff{ID: uuid.New(), LeadID: leadID, Requester: requester, Reason: reason}
	f.handoffs = append(f.handoffs, h)
	return h, nil
}

func (f *fakeStore) IncrementUnread(_ context.Context, _ uuid.UUID) error {
	f.unread++
	return nil
}

func (f *fakeStore) ResetUnread(_ context.Context, _ uuid.UUID) error {
	f.unread = 0
	f.resets++
	return nil
}

type fakeTenants struct {
	tenant   tenants.Tenant
	excluded bool
}

func (f *fakeTenants) GetByInstanceTag(_ context.Context, _ string) (tenants.Tenant, error) {
	return f.tenant, nil
}

func (f *fakeTenants) IsExcluded(_ context.Context, _ uuid.UUID, _ string) (bool, error) {
	return f.excluded, nil
}

type fakeKnowledge struct{}

func (fakeKnowledge) Search(_ context.Context, _ uuid.UUID, _ string, _ int) ([]knowledge.Entry, error) {
	return nil, nil
}

func (fakeKnowledge) TopRanked(_ context.Context, _ uuid.UUID, _ int) ([]knowledge.Entry, error) {
	return nil, nil
}

func (fakeKnowledge) All(_ context.Context, _ uuid.UUID) ([]knowledge.Entry, error) {
	return nil, nil
}

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, _ []ai.Message) (string, error) {
	return f.reply, f.err
}

type fakeDeliverer struct {
	replies []string
	err     error
}

func (f *fakeDeliverer) Deliver(_ context.Context, _ string, reply string) ([]delivery.Sent, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.replies = append(f.replies, reply)
	return []delivery.Sent{{Body: reply, ProviderID: "out-" + uuid.NewString()[:8]}}, nil
}

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) GetMediaBytes(_ context.Context, _ string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, "audio/ogg", nil
}

func (f *fakeFetcher) GetProfilePicture(_ context.Context, _ string) (string, error) {
	return "", nil
}

type fakeMedia struct {
	transcript string
	err        error
}

func (f *fakeMedia) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	return f.transcript, f.err
}

func (f *fakeMedia) Describe(_ context.Context, _ []byte, _, caption string) (string, error) {
	return f.transcript, f.err
}

type fakeNotifier struct {
	notes []HandoffNotification
}

func (f *fakeNotifier) NotifyHandoff(_ context.Context, note HandoffNotification) error {
	f.notes = append(f.notes, note)
	return nil
}

type fakeSummaries struct {
	payloads []scheduler.SummaryRefreshPayload
}

func (f *fakeSummaries) ScheduleSummaryRefresh(_ context.Context, payload scheduler.SummaryRefreshPayload) error {
	f.payloads = append(f.payloads, payload)
	return nil
}

type fixture struct {
	svc       *Service
	store     *fakeStore
	tenants   *fakeTenants
	completer *fakeCompleter
	deliverer *fakeDeliverer
	notifier  *fakeNotifier
	summaries *fakeSummaries
}

func newFixture() *fixture {
	f := &fixture{
		store:     newFakeStore(),
		tenants:   &fakeTenants{tenant: tenants.Tenant{ID: uuid.New(), InstanceTag: "main"}},
		completer: &fakeCompleter{reply: "Happy to help!"},
		deliverer: &fakeDeliverer{},
		notifier:  &fakeNotifier{},
		summaries: &fakeSummaries{},
	}
	f.svc = NewService(
		f.store, f.tenants, fakeKnowledge{}, f.completer,
		nil, nil, f.deliverer, nil, f.notifier, f.summaries, nil,
		Options{DefaultInstanceTag: "main", Persona: "You are Ana."},
		logger.New("test"),
	)
	return f
}

func inbound(text, providerID string) InboundEvent {
	return InboundEvent{
		InstanceTag:       "main",
		Phone:             "5531999990000",
		ProviderMessageID: providerID,
		Kind:              repository.KindText,
		Text:              text,
	}
}

func TestFreshGreetingRepliesWithoutAdvancing(t *testing.T) {
	f := newFixture()
	f.store.createNext = true

	res, err := f.svc.Process(context.Background(), inbound("hi", "m1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Action != ActionBotReplied {
		t.Fatalf("expected bot_replied, got %s", res.Action)
	}
	if len(f.store.stages) != 0 {
		t.Fatalf("a bare greeting must not change stage, got %v", f.store.stages)
	}
	if len(f.deliverer.replies) != 1 || f.deliverer.replies[0] != "Happy to help!" {
		t.Fatalf("expected one delivered reply, got %v", f.deliverer.replies)
	}

	outbound := 0
	for _, msg := range f.store.messages {
		if msg.Direction == repository.DirectionOutbound {
			outbound++
		}
	}
	if outbound != 1 {
		t.Fatalf("delivered chunks must be persisted, got %d outbound rows", outbound)
	}
}

func TestDuplicateEventIsIgnored(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Process(context.Background(), inbound("hello", "m1")); err != nil {
		t.Fatalf("first process: %v", err)
	}
	delivered := len(f.deliverer.replies)

	res, err := f.svc.Process(context.Background(), inbound("hello", "m1"))
	if err != nil {
		t.Fatalf("replay process: %v", err)
	}
	if res.Action != ActionDuplicate {
		t.Fatalf("expected duplicate, got %s", res.Action)
	}
	if len(f.deliverer.replies) != delivered {
		t.Fatalf("replay must not send anything")
	}
}

func TestExcludedContactIsRecordedButNeverAnswered(t *testing.T) {
	f := newFixture()
	f.tenants.excluded = true

	res, err := f.svc.Process(context.Background(), inbound("hello", "m1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Action != ActionExcluded {
		t.Fatalf("expected excluded_contact, got %s", res.Action)
	}
	if len(f.store.messages) != 1 {
		t.Fatalf("message must still be persisted, got %d", len(f.store.messages))
	}
	if len(f.deliverer.replies) != 0 {
		t.Fatalf("excluded contact must never get a reply")
	}
}

func TestHumanOwnedConversationStaysSilent(t *testing.T) {
	f := newFixture()
	f.store.lead.Owner = domain.OwnerHuman

	res, err := f.svc.Process(context.Background(), inbound("is anyone there?", "m1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Action != ActionHumanOwner {
		t.Fatalf("expected human_owner, got %s", res.Action)
	}
	if len(f.deliverer.replies) != 0 {
		t.Fatalf("bot must not reply on a human-owned conversation")
	}
}

func TestHandoffRequestFlipsOwnershipAndAcks(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Process(context.Background(), inbound("I want to talk to a human", "m1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Action != ActionHandoff {
		t.Fatalf("expected handoff, got %s", res.Action)
	}
	if f.store.lead.Owner != domain.OwnerHuman {
		t.Fatalf("ownership must flip to human, got %s", f.store.lead.Owner)
	}
	if f.store.lead.Stage != domain.StageHumanRequested {
		t.Fatalf("stage must be HUMAN_REQUESTED, got %s", f.store.lead.Stage)
	}
	if len(f.store.handoffs) != 1 {
		t.Fatalf("expected a handoff audit row")
	}
	if len(f.notifier.notes) != 1 {
		t.Fatalf("operators must be notified")
	}
	if len(f.deliverer.replies) != 1 {
		t.Fatalf("lead must get an acknowledgement")
	}
}

func TestOperatorPhoneMessageFlipsOwnership(t *testing.T) {
	f := newFixture()

	event := inbound("I'll take it from here", "m1")
	event.FromMe = true

	res, err := f.svc.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Action != ActionHumanSent {
		t.Fatalf("expected human_sent, got %s", res.Action)
	}
	if f.store.lead.Owner != domain.OwnerHuman {
		t.Fatalf("ownership must flip to human")
	}
	if len(f.store.messages) != 1 || f.store.messages[0].Direction != repository.DirectionOutbound {
		t.Fatalf("operator message must be stored as outbound")
	}
	if len(f.store.handoffs) != 1 || f.store.handoffs[0].Requester != domain.HandoffRequesterHuman {
		t.Fatalf("expected a handoff audit row with requester=human, got %v", f.store.handoffs)
	}
}

func TestOperatorEventDoesNotRefreshProviderName(t *testing.T) {
	f := newFixture()

	event := inbound("done, I've got this one", "m1")
	event.FromMe = true
	event.SenderName = "Clinic Support"

	if _, err := f.svc.Process(context.Background(), event); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(f.store.upserts) != 1 || f.store.upserts[0].ProviderName != nil {
		t.Fatalf("fromSelf event must not carry a provider name, got %+v", f.store.upserts)
	}

	lead := inbound("hello", "m2")
	lead.SenderName = "Maria"
	if _, err := f.svc.Process(context.Background(), lead); err != nil {
		t.Fatalf("process: %v", err)
	}
	last := f.store.upserts[len(f.store.upserts)-1]
	if last.ProviderName == nil || *last.ProviderName != "Maria" {
		t.Fatalf("inbound event must refresh the provider name, got %+v", last)
	}
}

func TestCompletionFailureFallsBackToCannedReply(t *testing.T) {
	f := newFixture()
	f.completer.err = errors.New("model unavailable")

	res, err := f.svc.Process(context.Background(), inbound("how much does it cost?", "m1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Action != ActionBotReplied {
		t.Fatalf("expected bot_replied, got %s", res.Action)
	}
	if len(f.deliverer.replies) != 1 || f.deliverer.replies[0] != fallbackPricing {
		t.Fatalf("expected pricing fallback, got %v", f.deliverer.replies)
	}
}

func TestDeliveryFailureReturnsCreatedOnly(t *testing.T) {
	f := newFixture()
	f.deliverer.err = errors.New("gateway down")

	res, err := f.svc.Process(context.Background(), inbound("hello there", "m1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !res.OK || res.Action != ActionCreatedOnly {
		t.Fatalf("expected ok created_only, got %+v", res)
	}
	if len(f.store.messages) == 0 {
		t.Fatalf("inbound message must be persisted even when delivery fails")
	}
}

func TestEveryFifthInboundSchedulesSummaryRefresh(t *testing.T) {
	f := newFixture()

	for i, id := range []string{"m1", "m2", "m3", "m4", "m5"} {
		if _, err := f.svc.Process(context.Background(), inbound("tell me more", id)); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}

	if len(f.summaries.payloads) != 1 {
		t.Fatalf("expected exactly one summary refresh after 5 inbound messages, got %d", len(f.summaries.payloads))
	}
	if f.summaries.payloads[0].LeadID != f.store.lead.ID.String() {
		t.Fatalf("payload must carry the lead id")
	}
}

func TestEmptyTextRecordsWithoutReply(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Process(context.Background(), inbound("", "m1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Action != ActionNoText {
		t.Fatalf("expected no_text, got %s", res.Action)
	}
	if len(f.deliverer.replies) != 0 {
		t.Fatalf("no reply expected for empty text")
	}
}

func TestAudioWithoutTranscriberStoresPlaceholderBody(t *testing.T) {
	f := newFixture()

	event := inbound("", "m1")
	event.Kind = repository.KindAudio

	res, err := f.svc.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Action != ActionBotReplied {
		t.Fatalf("expected bot_replied, got %s", res.Action)
	}
	msg := f.store.messages[0]
	if msg.Body == nil || *msg.Body != audioPlaceholder {
		t.Fatalf("body must be the audio placeholder, got %v", msg.Body)
	}
}

func TestTranscriptionFailureStoresPlaceholderBody(t *testing.T) {
	f := newFixture()
	svc := NewService(
		f.store, f.tenants, fakeKnowledge{}, f.completer,
		&fakeMedia{err: errors.New("model unavailable")}, &fakeFetcher{data: []byte("ogg")},
		f.deliverer, nil, f.notifier, f.summaries, nil,
		Options{DefaultInstanceTag: "main", Persona: "You are Ana."},
		logger.New("test"),
	)

	event := inbound("", "m1")
	event.Kind = repository.KindAudio

	if _, err := svc.Process(context.Background(), event); err != nil {
		t.Fatalf("process: %v", err)
	}
	msg := f.store.messages[0]
	if msg.Body == nil || *msg.Body != audioPlaceholder {
		t.Fatalf("body must be the audio placeholder, got %v", msg.Body)
	}
	if msg.Transcription != nil {
		t.Fatalf("failed transcription must not be stored, got %v", msg.Transcription)
	}
}

func TestTranscribedAudioBecomesMessageBody(t *testing.T) {
	f := newFixture()
	svc := NewService(
		f.store, f.tenants, fakeKnowledge{}, f.completer,
		&fakeMedia{transcript: "do you cover dental?"}, &fakeFetcher{data: []byte("ogg")},
		f.deliverer, nil, f.notifier, f.summaries, nil,
		Options{DefaultInstanceTag: "main", Persona: "You are Ana."},
		logger.New("test"),
	)

	event := inbound("", "m1")
	event.Kind = repository.KindAudio

	if _, err := svc.Process(context.Background(), event); err != nil {
		t.Fatalf("process: %v", err)
	}
	msg := f.store.messages[0]
	if msg.Body == nil || *msg.Body != "do you cover dental?" {
		t.Fatalf("transcription must become the body, got %v", msg.Body)
	}
	if msg.Transcription == nil || *msg.Transcription != "do you cover dental?" {
		t.Fatalf("transcription must be kept, got %v", msg.Transcription)
	}
}

func TestOutboundReplyResetsUnread(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Process(context.Background(), inbound("hello", "m1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if f.store.resets == 0 {
		t.Fatalf("a delivered reply must reset the unread counter")
	}
	if f.store.unread != 0 {
		t.Fatalf("unread must be zero after the reply, got %d", f.store.unread)
	}
}

func TestPricingQuestionUpdatesScore(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Process(context.Background(), inbound("how much does the plan cost?", "m1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(f.store.scores) == 0 || f.store.scores[len(f.store.scores)-1] <= 0 {
		t.Fatalf("pricing question must produce a positive score, got %v", f.store.scores)
	}
}
