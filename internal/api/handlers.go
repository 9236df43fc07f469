package api

import (
	"net/http"

	"educrm.io/ai-agent/internal/core"
	"educrm.io/ai-agent/internal/logger"
)

type APIHandler struct {
	users         *core.UserService
	conversations *core.ConversationService
	courses       *core.CourseService
	recommender   *core.Recommender
	log           *logger.Logger
}

func NewAPIHandler(users *core.UserService, conversations *core.ConversationService, courses *core.CourseService, recommender *core.Recommender, log *logger.Logger) *APIHandler {
	return &APIHandler{
		users:         users,
		conversations: conversations,
		courses:       courses,
		recommender:   recommender,
		log:           log.With("component", "api"),
	}
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req core.RegisterInput
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	token, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

func (h *APIHandler) UpdateMeHandler(w http.ResponseWriter, r *http.Request) {
	var patch core.UserPatch
	if err := decodeJSON(r, &patch, false); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	user, err := h.users.Update(r.Context(), currentUser(r).ID, patch)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *APIHandler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	profile, err := h.recommender.Profile(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *APIHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	users, err := h.users.List(r.Context(), skip, limit)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *APIHandler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
