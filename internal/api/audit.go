// ABOUTME: HTTP handler for reading the audit trail of privileged actions.
// ABOUTME: Read-only; events are written by the handlers that perform the actions.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/pulsehq/teampulse/internal/store"
)

// auditEventResponseBody is the JSON shape for one audit event.
type auditEventResponseBody struct {
	ID         string          `json:"id"`
	ActorEmail string          `json:"actor_email"`
	Action     string          `json:"action"`
	Target     string          `json:"target"`
	Detail     json.RawMessage `json:"detail"`
	CreatedAt  string          `json:"created_at"`
}

// auditListResponseBody is the JSON response body for GET /api/v1/audit.
type auditListResponseBody struct {
	Events     []auditEventResponseBody `json:"events"`
	NextCursor string                   `json:"next_cursor,omitempty"`
}

// listAuditEventsHandler handles GET /api/v1/audit.
// Supports action, actor_email, and since filters plus cursor pagination.
func (srv *Server) listAuditEventsHandler(w http.ResponseWriter, r *http.Request) {
	afterTime, afterID, err := decodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		http.Error(w, "invalid cursor", http.StatusBadRequest)
		return
	}
	limit := parseLimit(r, 50, 200)

	var since *time.Time
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "invalid since (want RFC 3339)", http.StatusBadRequest)
			return
		}
		since = &t
	}

	events, err := srv.store.ListAuditEvents(r.Context(), store.ListAuditEventsParams{
		Action:     r.URL.Query().Get("action"),
		ActorEmail: r.URL.Query().Get("actor_email"),
		Since:      since,
		AfterTime:  afterTime,
		AfterID:    afterID,
		Limit:      limit + 1, // fetch one extra to detect next page
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "list audit events", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := auditListResponseBody{Events: make([]auditEventResponseBody, 0, len(events))}
	if len(events) > limit {
		events = events[:limit]
		last := events[len(events)-1]
		resp.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	for _, ev := range events {
		resp.Events = append(resp.Events, auditEventResponseBody{
			ID:         ev.ID.String(),
			ActorEmail: ev.ActorEmail,
			Action:     ev.Action,
			Target:     ev.Target,
			Detail:     ev.Detail,
			CreatedAt:  ev.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
