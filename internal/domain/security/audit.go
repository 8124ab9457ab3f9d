package security

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/internal/platform/events"
)

// AuditSink is an events.Publisher that writes domain changes to the audit
// log. The acting user comes from the principal on ctx.
type AuditSink struct {
	repo Repository
}

func NewAuditSink(repo Repository) *AuditSink {
	return &AuditSink{repo: repo}
}

var _ events.Publisher = (*AuditSink)(nil)

func (a *AuditSink) Publish(ctx context.Context, evt events.Event) error {
	if evt.Type == events.SecurityAlertRaised {
		return nil
	}
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	resource, action := evt.Type, evt.Type
	if i := strings.IndexByte(evt.Type, '.'); i > 0 {
		resource, action = evt.Type[:i], evt.Type[i+1:]
	}
	l := &AuditLog{
		Action:       action,
		ResourceType: resource,
		ResourceID:   resourceID(payload),
		NewValues:    payload,
	}
	if p := auth.PrincipalFromContext(ctx); p != nil {
		id := p.ID
		l.UserID = &id
	}
	return a.repo.CreateAuditLog(ctx, l)
}

// resourceID picks the identifier out of an event payload: "id" when
// present, otherwise the first "*_id" field in a fixed preference order.
func resourceID(payload []byte) string {
	var fields map[string]json.RawMessage
	if json.Unmarshal(payload, &fields) != nil {
		return ""
	}
	for _, k := range []string{"id", "user_id", "patient_id"} {
		var id uuid.UUID
		if raw, ok := fields[k]; ok && json.Unmarshal(raw, &id) == nil {
			return id.String()
		}
	}
	return ""
}
