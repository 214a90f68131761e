package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "chatwire/errors"

	"chatwire/services"
)

// AuthHandler is the minimal REST surface that mints the tokens the
// websocket endpoint consumes. It is glue around IAuthService, not part
// of the messaging core.
type AuthHandler struct {
	log     *slog.Logger
	service services.IAuthService
}

func NewAuthHandler(log *slog.Logger, service services.IAuthService) *AuthHandler {
	return &AuthHandler{log: log, service: service}
}

func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", h.register)
	mux.HandleFunc("POST /api/login", h.login)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var request registerRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.service.Register(request.Name, request.Email, request.Password)
	switch {
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperrors.ErrInvalidPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.log.Error("registration failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
	default:
		writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
	}
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var request loginRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.service.Login(request.Email, request.Password)
	switch {
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case err != nil:
		h.log.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
	default:
		writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
