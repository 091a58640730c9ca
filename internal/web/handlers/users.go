package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-registry/internal/database"
	"go.uber.org/zap"
)

// Messages kept compatible with the existing browser client.
const (
	msgInvalidData    = "Invalid data provided"
	msgUserExists     = "User already exists"
	msgRegistered     = "User registered successfully"
	msgRegisterFailed = "Failed to register user"
	msgFetchFailed    = "Failed to fetch users"
	msgDeleteFailed   = "Failed to delete user"
	msgUserNotFound   = "User not found"
)

// UserStore is the part of database.RecordStore used by the HTTP layer.
type UserStore interface {
	Register(ctx context.Context, name string, descriptors []database.Descriptor) (*database.UserRecord, error)
	ListAll(ctx context.Context) ([]database.UserRecord, error)
	Get(ctx context.Context, id string) (*database.UserRecord, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// UsersHandler handles registration, listing and deletion of users.
type UsersHandler struct {
	store  UserStore
	events *EventBroadcaster
	logger *zap.Logger
}

// NewUsersHandler creates a new users handler. Successful changes are
// published to events, which may be nil.
func NewUsersHandler(store UserStore, events *EventBroadcaster, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{
		store:  store,
		events: events,
		logger: logger,
	}
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Name        string                `json:"name"`
	Descriptors []database.Descriptor `json:"descriptors"`
}

// RegisterResponse is the success body of POST /api/register.
type RegisterResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	User    *database.UserRecord `json:"user,omitempty"`
}

// Register handles POST /api/register.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidData)
		return
	}

	user, err := h.store.Register(r.Context(), req.Name, req.Descriptors)
	switch {
	case err == nil:
	case errors.Is(err, database.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, msgInvalidData)
		return
	case errors.Is(err, database.ErrDuplicateName):
		respondError(w, http.StatusConflict, msgUserExists)
		return
	default:
		h.logger.Error("registration failed", zap.String("name", sanitizeForLog(req.Name)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, msgRegisterFailed)
		return
	}

	h.logger.Info("user registered",
		zap.String("id", user.ID),
		zap.String("name", sanitizeForLog(user.Name)),
		zap.Int("descriptors", len(user.Descriptors)),
	)
	h.events.Publish(RegistryEvent{Type: EventRegistered, ID: user.ID, Name: user.Name})
	respondJSON(w, http.StatusOK, RegisterResponse{
		Success: true,
		Message: msgRegistered,
		User:    user,
	})
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListAll(r.Context())
	if err != nil {
		h.logger.Error("listing users failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, msgFetchFailed)
		return
	}
	if users == nil {
		users = []database.UserRecord{}
	}
	respondJSON(w, http.StatusOK, users)
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		h.logger.Error("fetching user failed", zap.String("id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, msgFetchFailed)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Delete handles DELETE /api/users/{id}. Deleting an unknown id succeeds.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	removed, err := h.store.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("deleting user failed", zap.String("id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, msgDeleteFailed)
		return
	}
	if removed {
		h.logger.Info("user deleted", zap.String("id", sanitizeForLog(id)))
		h.events.Publish(RegistryEvent{Type: EventDeleted, ID: id})
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
