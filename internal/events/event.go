// Package events provides domain event definitions for decoupled
// communication between modules. Infrastructure (Bus, Handler) is in
// platform/events.
package events

import (
	"github.com/google/uuid"

	"zapleads_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

var NewBaseEvent = events.NewBaseEvent

// LeadCreated is published when a phone number is seen for the first time.
type LeadCreated struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
	Phone    string    `json:"phone"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// StageChanged is published when the funnel machine moves a lead.
type StageChanged struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Score    int       `json:"score"`
}

func (e StageChanged) EventName() string { return "leads.stage.changed" }

// OwnershipChanged is published on every bot/human ownership flip.
type OwnershipChanged struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Action string    `json:"action"`
}

func (e OwnershipChanged) EventName() string { return "leads.ownership.changed" }

// HandoffCreated is published when a conversation needs a human.
type HandoffCreated struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	HandoffID uuid.UUID `json:"handoffId"`
	Requester string    `json:"requester"`
	Reason    string    `json:"reason"`
}

func (e HandoffCreated) EventName() string { return "leads.handoff.created" }
