package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"lpg-service/internal/models"
	"lpg-service/internal/service"
)

type AuthHandler struct {
	auth   *service.AuthService
	drafts *service.SignupDrafts
	logger *zap.Logger
}

func NewAuthHandler(authService *service.AuthService, drafts *service.SignupDrafts, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, drafts: drafts, logger: logger}
}

// LoginRequest accepts either the admin username or a customer email.
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type DraftRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}

	session, err := h.auth.SignIn(r.Context(), identifier, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err, "sign in")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	session, err := h.auth.SignUp(r.Context(), req.Email, req.Password, models.Profile{
		FullName: req.FullName,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "register")
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), bearerToken(r)); err != nil {
		writeServiceError(w, h.logger, err, "sign out")
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Me(r.Context(), actor(r))
	if err != nil {
		writeServiceError(w, h.logger, err, "load profile")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) BeginSignup(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	id, err := h.drafts.Begin(req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err, "start signup")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"draft_id": id})
}

func (h *AuthHandler) SetSignupProfile(w http.ResponseWriter, r *http.Request) {
	var profile models.Profile
	if ok := decodeJSON(w, r, &profile); !ok {
		return
	}

	if err := h.drafts.SetProfile(chi.URLParam(r, "id"), profile); err != nil {
		writeServiceError(w, h.logger, err, "save profile")
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func (h *AuthHandler) CompleteSignup(w http.ResponseWriter, r *http.Request) {
	session, err := h.drafts.Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err, "register")
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

func (h *AuthHandler) ResetSignup(w http.ResponseWriter, r *http.Request) {
	h.drafts.Reset(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusNoContent, nil)
}
