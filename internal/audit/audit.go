// Package audit records auth-decision events: logins, refreshes, logouts,
// gate redirects, permission denials.
//
// Emission is fire-and-forget from the caller's perspective: a failed emit
// is logged by the publisher, never surfaced to the request path.
package audit

import (
	"context"
	"sync"
	"time"

	id "opsdeck/pkg/domain"
)

// EventType names an audit event.
type EventType string

const (
	EventLoginSucceeded   EventType = "auth.login.succeeded"
	EventLoginFailed      EventType = "auth.login.failed"
	EventSessionRefreshed EventType = "auth.session.refreshed"
	EventSessionReplayed  EventType = "auth.session.replayed"
	EventLogout           EventType = "auth.logout"
	EventAccessRedirected EventType = "gate.access.redirected"
	EventPermissionDenied EventType = "authz.permission.denied"
)

// Event is one audit record.
type Event struct {
	Type       EventType    `json:"type"`
	UserID     id.UserID    `json:"user_id,omitempty"`
	OrgID      id.OrgID     `json:"org_id,omitempty"`
	SessionID  id.SessionID `json:"session_id,omitempty"`
	Permission string       `json:"permission,omitempty"`
	Path       string       `json:"path,omitempty"`
	ClientIP   string       `json:"client_ip,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Publisher delivers audit events to a sink.
type Publisher interface {
	Emit(ctx context.Context, event Event)
	Close() error
}

// NopPublisher discards events. Used when no sink is configured and in
// tests that don't assert on the audit trail.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) {}
func (NopPublisher) Close() error                { return nil }

// MemoryPublisher keeps events in memory for tests and dev.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryPublisher constructs an empty in-memory audit sink.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Emit(_ context.Context, event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// Events returns a copy of everything emitted so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// ByType filters recorded events by type.
func (p *MemoryPublisher) ByType(t EventType) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (p *MemoryPublisher) Close() error { return nil }
