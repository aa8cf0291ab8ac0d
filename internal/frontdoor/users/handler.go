// Package users serves account registration, login and the token check route.
package users

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/medsim/diagnosis-gateway/internal/auth"
	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/server"
)

// Credentials is the registration body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Handler struct {
	users  *auth.Service
	logger *slog.Logger
}

func NewHandler(users *auth.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{users: users, logger: logger}
}

// HandleRegister creates an account from a JSON body.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in Credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&in); err != nil {
		server.WriteError(w, r, domain.ErrValidation("Invalid JSON body").WithCause(err))
		return
	}
	if in.Username == "" || in.Password == "" {
		server.WriteError(w, r, domain.ErrValidation("username and password are required"))
		return
	}

	if err := h.users.Register(r.Context(), in.Username, in.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidUsername) {
			server.WriteError(w, r, domain.ErrValidation("Username format invalid").WithCause(err))
			return
		}
		server.WriteError(w, r, domain.AsAPIError(err, "Error registering user"))
		return
	}

	h.logger.Info("user registered", slog.String("username", in.Username))
	server.WriteJSON(w, http.StatusCreated, map[string]string{"msg": "success"})
}

// HandleLogin issues a bearer token for form-encoded credentials.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		server.WriteError(w, r, domain.ErrValidation("Invalid form body").WithCause(err))
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		server.WriteError(w, r, domain.ErrValidation("username and password are required"))
		return
	}

	token, err := h.users.Login(r.Context(), username, password)
	if err != nil {
		h.logger.Warn("login failed", slog.String("username", username), slog.String("error", err.Error()))
		server.WriteError(w, r, domain.AsAPIError(err, "Error logging in"))
		return
	}

	h.logger.Info("login successful", slog.String("username", username))
	server.WriteJSON(w, http.StatusOK, token)
}

// HandleTest confirms the caller's token is valid.
func (h *Handler) HandleTest(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, "It works!")
}
