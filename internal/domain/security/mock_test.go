package security

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/events"
)

type mockRepo struct {
	mu       sync.Mutex
	events   []*Event
	attempts []*LoginAttempt
	audits   []*AuditLog
	alerts   map[uuid.UUID]*Alert
	clock    func() time.Time
}

func newMockRepo(clock func() time.Time) *mockRepo {
	return &mockRepo{alerts: make(map[uuid.UUID]*Alert), clock: clock}
}

func (m *mockRepo) CreateEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	e.OccurredAt = m.clock()
	m.events = append(m.events, e)
	return nil
}

func (m *mockRepo) ListEvents(_ context.Context, f EventFilter, limit, offset int) ([]*Event, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Event
	for _, e := range m.events {
		if f.RiskLevel != "" && e.RiskLevel != f.RiskLevel {
			continue
		}
		if f.EventType != "" && e.EventType != f.EventType {
			continue
		}
		out = append(out, e)
	}
	return paged(out, limit, offset), len(out), nil
}

func (m *mockRepo) CreateLoginAttempt(_ context.Context, a *LoginAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.AttemptedAt = m.clock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *mockRepo) ListLoginAttempts(_ context.Context, f LoginFilter, limit, offset int) ([]*LoginAttempt, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*LoginAttempt
	for _, a := range m.attempts {
		if f.Success != nil && a.Success != *f.Success {
			continue
		}
		out = append(out, a)
	}
	return paged(out, limit, offset), len(out), nil
}

func (m *mockRepo) CountFailedLogins(_ context.Context, ip string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.attempts {
		if a.IPAddress == ip && !a.Success && !a.AttemptedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) CreateAuditLog(_ context.Context, l *AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.New()
	l.OccurredAt = m.clock()
	m.audits = append(m.audits, l)
	return nil
}

func (m *mockRepo) ListAuditLogs(_ context.Context, _ AuditFilter, limit, offset int) ([]*AuditLog, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return paged(m.audits, limit, offset), len(m.audits), nil
}

func (m *mockRepo) CreateAlert(_ context.Context, a *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.FirstSeen = m.clock()
	a.LastSeen = a.FirstSeen
	m.alerts[a.ID] = a
	return nil
}

func (m *mockRepo) GetAlert(_ context.Context, id uuid.UUID) (*Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, apperr.NotFound("alert")
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) OpenAlert(_ context.Context, alertType, ip string) (*Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.AlertType == alertType && a.IPAddress == ip && !a.Resolved {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("alert")
}

func (m *mockRepo) BumpAlert(_ context.Context, a *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.alerts[a.ID]
	if !ok {
		return apperr.NotFound("alert")
	}
	stored.EventCount = a.EventCount
	stored.LastSeen = a.LastSeen
	stored.Description = a.Description
	return nil
}

func (m *mockRepo) ResolveAlert(_ context.Context, a *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.alerts[a.ID]; !ok {
		return apperr.NotFound("alert")
	}
	cp := *a
	m.alerts[a.ID] = &cp
	return nil
}

func (m *mockRepo) ListAlerts(_ context.Context, f AlertFilter, limit, offset int) ([]*Alert, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Alert
	for _, a := range m.alerts {
		if f.Resolved != nil && a.Resolved != *f.Resolved {
			continue
		}
		out = append(out, a)
	}
	return paged(out, limit, offset), len(out), nil
}

func (m *mockRepo) Totals(_ context.Context, _ time.Time) (*Totals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &Totals{Events: len(m.events), LoginAttempts: len(m.attempts)}
	for _, e := range m.events {
		if e.RiskLevel == RiskHigh || e.RiskLevel == RiskCritical {
			t.HighRiskEvents++
		}
	}
	for _, a := range m.attempts {
		if !a.Success {
			t.FailedLogins++
		}
	}
	for _, a := range m.alerts {
		if !a.Resolved {
			t.ActiveAlerts++
		}
	}
	return t, nil
}

func paged[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}
