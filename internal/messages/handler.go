package messages

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/whisperbox/backend/internal/auth"
	"github.com/whisperbox/backend/internal/models"
	"github.com/whisperbox/backend/internal/store"
)

// MessageStore defines the persistence needed by the message handlers.
type MessageStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	SortedMessages(ctx context.Context, id string) ([]models.Message, error)
	PushMessage(ctx context.Context, id string, msg models.Message) error
	PullMessage(ctx context.Context, userID, messageID string) error
	SetAcceptingMessages(ctx context.Context, id string, accepting bool) error
}

// Handler holds the message HTTP handlers.
type Handler struct {
	store MessageStore
}

func NewHandler(store MessageStore) *Handler {
	return &Handler{store: store}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func apiMessage(w http.ResponseWriter, status int, success bool, message string) {
	writeJSON(w, status, models.APIResponse{Success: success, Message: message})
}

// GetMessages returns the caller's received messages, newest first. Messages
// with equal timestamps come back in no particular order. A user with no
// messages gets an empty list, not an error.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil || claims.UserID() == "" {
		apiMessage(w, http.StatusUnauthorized, false, "Not authenticated")
		return
	}

	msgs, err := h.store.SortedMessages(r.Context(), claims.UserID())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apiMessage(w, http.StatusNotFound, false, "User not found")
			return
		}
		slog.Error("get-messages query failed", "user_id", claims.UserID(), "error", err)
		apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, models.MessagesResponse{Messages: msgs})
}

// SendMessage accepts an anonymous message for the named user. No session is
// required to send.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiMessage(w, http.StatusBadRequest, false, "Invalid request body")
		return
	}
	if req.Username == "" || req.Content == "" {
		apiMessage(w, http.StatusBadRequest, false, "Username and content are required")
		return
	}

	user, err := h.store.FindByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apiMessage(w, http.StatusNotFound, false, "User not found")
			return
		}
		apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}
	if !user.IsAcceptingMessages {
		apiMessage(w, http.StatusForbidden, false, "User is not accepting messages")
		return
	}

	msg := models.Message{
		ID:        primitive.NewObjectID(),
		Content:   req.Content,
		CreatedAt: time.Now(),
	}
	if err := h.store.PushMessage(r.Context(), user.ID.Hex(), msg); err != nil {
		slog.Error("send-message push failed", "username", req.Username, "error", err)
		apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}

	apiMessage(w, http.StatusCreated, true, "Message sent successfully")
}

// GetAcceptMessages reports the caller's current accepting flag read from
// the database, not from the session claim, which may be stale.
func (h *Handler) GetAcceptMessages(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		apiMessage(w, http.StatusUnauthorized, false, "Not authenticated")
		return
	}

	user, err := h.store.FindByID(r.Context(), claims.UserID())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apiMessage(w, http.StatusNotFound, false, "User not found")
			return
		}
		apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":             true,
		"isAcceptingMessages": user.IsAcceptingMessages,
	})
}

// SetAcceptMessages toggles whether the caller receives new messages. The
// cached session claim stays stale until the next sign-in.
func (h *Handler) SetAcceptMessages(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		apiMessage(w, http.StatusUnauthorized, false, "Not authenticated")
		return
	}

	var req models.AcceptMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiMessage(w, http.StatusBadRequest, false, "Invalid request body")
		return
	}

	if err := h.store.SetAcceptingMessages(r.Context(), claims.UserID(), req.AcceptMessages); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apiMessage(w, http.StatusNotFound, false, "User not found")
			return
		}
		apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}

	apiMessage(w, http.StatusOK, true, "Message acceptance status updated")
}

// DeleteMessage removes one of the caller's received messages.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		apiMessage(w, http.StatusUnauthorized, false, "Not authenticated")
		return
	}

	messageID := chi.URLParam(r, "id")
	if err := h.store.PullMessage(r.Context(), claims.UserID(), messageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apiMessage(w, http.StatusNotFound, false, "Message not found or already deleted")
			return
		}
		slog.Error("delete-message failed", "user_id", claims.UserID(), "error", err)
		apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}

	apiMessage(w, http.StatusOK, true, "Message deleted")
}
