// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Controller inputs
	EventUserChanged   EventType = "user.changed"
	EventSkillsChanged EventType = "skills.changed"
	EventBadgesChanged EventType = "badges.changed"

	// Skill events
	EventSkillAdded      EventType = "skill.added"
	EventSkillUpdated    EventType = "skill.updated"
	EventSkillDeleted    EventType = "skill.deleted"
	EventPracticeLogged  EventType = "practice.logged"
	EventPracticeEdited  EventType = "practice.edited"
	EventPracticeDeleted EventType = "practice.deleted"

	// Badge events
	EventBadgesSeeded     EventType = "badge.seeded"
	EventBadgeUnlocked    EventType = "badge.unlocked"
	EventBadgeWriteFailed EventType = "badge.write_failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return NewBaseEventAt(eventType, aggregateID, time.Now())
}

// NewBaseEventAt creates a base event with an explicit timestamp.
func NewBaseEventAt(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Skill Events
// ═══════════════════════════════════════════════════════════════════════════

// SkillsChangedEvent is emitted after any mutation of a user's skills.
// The reconciliation controller subscribes to it.
type SkillsChangedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Reason string `json:"reason"` // the mutating event type, e.g. "practice.logged"
}

// Payload implements Event interface.
func (e SkillsChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"reason":  e.Reason,
	}
}

// NewSkillsChangedEvent creates a new SkillsChangedEvent.
func NewSkillsChangedEvent(userID string, reason EventType) SkillsChangedEvent {
	return SkillsChangedEvent{
		BaseEvent: NewBaseEvent(EventSkillsChanged, userID),
		UserID:    userID,
		Reason:    string(reason),
	}
}

// SkillMutatedEvent covers skill and practice entry mutations.
type SkillMutatedEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	SkillID string `json:"skill_id"`
	EntryID string `json:"entry_id,omitempty"`
	Minutes int    `json:"minutes,omitempty"`
}

// Payload implements Event interface.
func (e SkillMutatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"skill_id": e.SkillID,
		"entry_id": e.EntryID,
		"minutes":  e.Minutes,
	}
}

// NewSkillMutatedEvent creates a new SkillMutatedEvent of the given type.
func NewSkillMutatedEvent(eventType EventType, userID, skillID, entryID string, minutes int) SkillMutatedEvent {
	return SkillMutatedEvent{
		BaseEvent: NewBaseEvent(eventType, userID),
		UserID:    userID,
		SkillID:   skillID,
		EntryID:   entryID,
		Minutes:   minutes,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Badge Events
// ═══════════════════════════════════════════════════════════════════════════

// BadgeUnlockedEvent is emitted once per badge after its achievedAt was committed.
type BadgeUnlockedEvent struct {
	BaseEvent
	UserID       string    `json:"user_id"`
	BadgeID      string    `json:"badge_id"`
	BadgeName    string    `json:"badge_name"`
	CriteriaType string    `json:"criteria_type"`
	AchievedAt   time.Time `json:"achieved_at"`
}

// Payload implements Event interface.
func (e BadgeUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"badge_id":      e.BadgeID,
		"badge_name":    e.BadgeName,
		"criteria_type": e.CriteriaType,
		"achieved_at":   e.AchievedAt.Format(time.RFC3339Nano),
	}
}

// NewBadgeUnlockedEvent creates a new BadgeUnlockedEvent.
// The event time is the achievement time, not the publish time.
func NewBadgeUnlockedEvent(userID, badgeID, name, criteriaType string, achievedAt time.Time) BadgeUnlockedEvent {
	return BadgeUnlockedEvent{
		BaseEvent:    NewBaseEventAt(EventBadgeUnlocked, userID, achievedAt),
		UserID:       userID,
		BadgeID:      badgeID,
		BadgeName:    name,
		CriteriaType: criteriaType,
		AchievedAt:   achievedAt,
	}
}

// BadgesSeededEvent is emitted when catalog badges were created for a user.
type BadgesSeededEvent struct {
	BaseEvent
	UserID   string   `json:"user_id"`
	BadgeIDs []string `json:"badge_ids"`
	Backfill bool     `json:"backfill"` // true when the user already had badges
}

// Payload implements Event interface.
func (e BadgesSeededEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"badge_ids": e.BadgeIDs,
		"backfill":  e.Backfill,
	}
}

// NewBadgesSeededEvent creates a new BadgesSeededEvent.
func NewBadgesSeededEvent(userID string, badgeIDs []string, backfill bool) BadgesSeededEvent {
	return BadgesSeededEvent{
		BaseEvent: NewBaseEvent(EventBadgesSeeded, userID),
		UserID:    userID,
		BadgeIDs:  badgeIDs,
		Backfill:  backfill,
	}
}

// BadgeWriteFailedEvent is emitted when a delta batch could not be committed.
type BadgeWriteFailedEvent struct {
	BaseEvent
	UserID   string   `json:"user_id"`
	BadgeIDs []string `json:"badge_ids"`
	Error    string   `json:"error"`
}

// Payload implements Event interface.
func (e BadgeWriteFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"badge_ids": e.BadgeIDs,
		"error":     e.Error,
	}
}

// NewBadgeWriteFailedEvent creates a new BadgeWriteFailedEvent.
func NewBadgeWriteFailedEvent(userID string, badgeIDs []string, err error) BadgeWriteFailedEvent {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return BadgeWriteFailedEvent{
		BaseEvent: NewBaseEvent(EventBadgeWriteFailed, userID),
		UserID:    userID,
		BadgeIDs:  badgeIDs,
		Error:     msg,
	}
}

// BadgesChangedEvent is emitted after a badge write landed in the store.
// Writer identifies the process that wrote, so that process can ignore its
// own announcement while every other one reloads.
type BadgesChangedEvent struct {
	BaseEvent
	UserID   string   `json:"user_id"`
	BadgeIDs []string `json:"badge_ids"`
	Writer   string   `json:"writer,omitempty"`
}

// Payload implements Event interface.
func (e BadgesChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"badge_ids": e.BadgeIDs,
		"writer":    e.Writer,
	}
}

// NewBadgesChangedEvent creates a new BadgesChangedEvent.
func NewBadgesChangedEvent(userID string, badgeIDs []string, writer string) BadgesChangedEvent {
	return BadgesChangedEvent{
		BaseEvent: NewBaseEvent(EventBadgesChanged, userID),
		UserID:    userID,
		BadgeIDs:  badgeIDs,
		Writer:    writer,
	}
}

// EventWriter returns the "writer" payload field, or "" when absent.
func EventWriter(event Event) string {
	w, _ := event.Payload()["writer"].(string)
	return w
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serialises an event payload into an envelope.
func NewEventEnvelope(id string, event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		ID:          id,
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}, nil
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
