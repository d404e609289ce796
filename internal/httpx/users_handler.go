package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ariefcatur/go-realtime-market/internal/market"
)

type UserStore interface {
	ByID(ctx context.Context, userID string) (market.User, error)
	ByEmail(ctx context.Context, email string) (market.User, error)
	Create(ctx context.Context, u *market.User) error
	List(ctx context.Context) ([]market.User, error)
}

// UsersHandler is the admin-facing account surface. Registration and login
// live in the upstream auth service; this only manages the directory rows
// the order flow joins against.
type UsersHandler struct {
	Users UserStore
}

type createUserReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *UsersHandler) Register(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Use(WithIdentity, RequireRole(market.RoleAdmin))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
	})
}

func (h *UsersHandler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *UsersHandler) get(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var nf *market.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, nf.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *UsersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "name and email are required")
		return
	}
	role := market.Role(req.Role)
	switch role {
	case market.RoleBuyer, market.RoleSeller, market.RoleAdmin:
	default:
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	if _, err := h.Users.ByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	user := &market.User{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Users.Create(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "User created successfully",
		"user_id": user.ID,
	})
}
