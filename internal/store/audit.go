// ABOUTME: Store methods for the append-only audit trail of privileged actions.
// ABOUTME: Events are written on role changes, invitations, and config changes.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// AuditEvent is one record in the append-only audit trail.
type AuditEvent struct {
	ID         uuid.UUID
	ActorEmail string
	Action     string
	Target     string
	Detail     json.RawMessage
	CreatedAt  time.Time
}

// Audit action names. Kept as constants so the list endpoint's filter values
// and the writers cannot drift apart.
const (
	AuditActionRoleAssigned      = "role.assigned"
	AuditActionRoleAssignDenied  = "role.assign_denied"
	AuditActionInvitationCreated = "invitation.created"
	AuditActionInvitationDeleted = "invitation.deleted"
	AuditActionUserRegistered    = "user.registered"
)

// CreateAuditEvent appends an event to the audit trail. detail may be nil.
func (s *Store) CreateAuditEvent(ctx context.Context, actorEmail, action, target string, detail json.RawMessage) (*AuditEvent, error) {
	if detail == nil {
		detail = json.RawMessage(`{}`)
	}
	var ev AuditEvent
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO audit_events (actor_email, action, target, detail)
		VALUES ($1, $2, $3, $4)
		RETURNING id, actor_email, action, target, detail, created_at`,
		actorEmail, action, target, []byte(detail),
	).Scan(&ev.ID, &ev.ActorEmail, &ev.Action, &ev.Target, &ev.Detail, &ev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create audit event: %w", err)
	}
	return &ev, nil
}

// ListAuditEventsParams are the optional filters for ListAuditEvents.
type ListAuditEventsParams struct {
	Action     string // exact action name
	ActorEmail string // case-insensitive actor filter
	Since      *time.Time
	// Cursor: created_at/id of the last row on the previous page.
	AfterTime *time.Time
	AfterID   *uuid.UUID
	Limit     int
}

// ListAuditEvents returns a page of audit events ordered by created_at DESC,
// id DESC. Callers pass Limit+1 to detect whether a next page exists.
func (s *Store) ListAuditEvents(ctx context.Context, p ListAuditEventsParams) ([]AuditEvent, error) {
	sb := psql.
		Select("id, actor_email, action, target, detail, created_at").
		From("audit_events").
		OrderBy("created_at DESC, id DESC").
		Limit(uint64(p.Limit)) //nolint:gosec // G115: limit validated by caller

	if p.Action != "" {
		sb = sb.Where(sq.Eq{"action": p.Action})
	}
	if p.ActorEmail != "" {
		sb = sb.Where("lower(actor_email) = lower(?)", p.ActorEmail)
	}
	if p.Since != nil {
		sb = sb.Where("created_at >= ?", *p.Since)
	}
	if p.AfterTime != nil && p.AfterID != nil {
		sb = sb.Where("(created_at, id) < (?, ?)", *p.AfterTime, *p.AfterID)
	}

	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("list audit events: build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []AuditEvent
	for rows.Next() {
		var ev AuditEvent
		if err := rows.Scan(&ev.ID, &ev.ActorEmail, &ev.Action, &ev.Target, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("list audit events: scan: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
