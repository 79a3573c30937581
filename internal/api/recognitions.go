// ABOUTME: HTTP handlers for peer recognition: sending recognition with a
// ABOUTME: point award, and reading the shared recognition feed.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// createRecognitionBody is the JSON request body for POST /api/v1/recognitions.
type createRecognitionBody struct {
	RecipientID string `json:"recipient_id"`
	Message     string `json:"message"`
	Points      int    `json:"points"`
}

// recognitionResponseBody is the JSON shape for one recognition feed entry.
type recognitionResponseBody struct {
	ID            string `json:"id"`
	SenderID      string `json:"sender_id"`
	SenderName    string `json:"sender_name,omitempty"`
	RecipientID   string `json:"recipient_id"`
	RecipientName string `json:"recipient_name,omitempty"`
	Message       string `json:"message"`
	Points        int    `json:"points"`
	CreatedAt     string `json:"created_at"`
}

// createRecognitionHandler handles POST /api/v1/recognitions.
// Every authenticated user may recognize a peer; points are credited to the
// recipient atomically with the feed entry.
func (srv *Server) createRecognitionHandler(w http.ResponseWriter, r *http.Request) {
	sender, ok := currentUser(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createRecognitionBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		http.Error(w, "invalid recipient id", http.StatusBadRequest)
		return
	}
	if recipientID == sender.ID {
		http.Error(w, "cannot recognize yourself", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if len(req.Message) > 1000 {
		http.Error(w, "message too long", http.StatusBadRequest)
		return
	}
	if req.Points < 0 || req.Points > 100 {
		http.Error(w, "points must be between 0 and 100", http.StatusBadRequest)
		return
	}

	recipient, err := srv.store.GetUserByID(r.Context(), recipientID)
	if err != nil {
		slog.ErrorContext(r.Context(), "create recognition: get recipient", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if recipient == nil {
		http.Error(w, "recipient not found", http.StatusNotFound)
		return
	}

	rec, err := srv.store.CreateRecognition(r.Context(), sender.ID, recipientID, req.Message, req.Points)
	if err != nil {
		slog.ErrorContext(r.Context(), "create recognition", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, recognitionResponseBody{
		ID:            rec.ID.String(),
		SenderID:      rec.SenderID.String(),
		SenderName:    sender.DisplayName,
		RecipientID:   rec.RecipientID.String(),
		RecipientName: recipient.DisplayName,
		Message:       rec.Message,
		Points:        rec.Points,
		CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
	})
}

// recognitionListResponseBody is the JSON response body for GET /api/v1/recognitions.
type recognitionListResponseBody struct {
	Recognitions []recognitionResponseBody `json:"recognitions"`
	NextCursor   string                    `json:"next_cursor,omitempty"`
}

// listRecognitionsHandler handles GET /api/v1/recognitions.
// The feed is visible to every authenticated user, newest first.
func (srv *Server) listRecognitionsHandler(w http.ResponseWriter, r *http.Request) {
	afterTime, afterID, err := decodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		http.Error(w, "invalid cursor", http.StatusBadRequest)
		return
	}
	limit := parseLimit(r, 50, 200)

	rows, err := srv.store.ListRecognitions(r.Context(), afterTime, afterID, limit+1)
	if err != nil {
		slog.ErrorContext(r.Context(), "list recognitions", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := recognitionListResponseBody{Recognitions: make([]recognitionResponseBody, 0, len(rows))}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		resp.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	for _, row := range rows {
		resp.Recognitions = append(resp.Recognitions, recognitionResponseBody{
			ID:            row.ID.String(),
			SenderID:      row.SenderID.String(),
			SenderName:    row.SenderName,
			RecipientID:   row.RecipientID.String(),
			RecipientName: row.RecipientName,
			Message:       row.Message,
			Points:        row.Points,
			CreatedAt:     row.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
