package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"ecolearn-engine/internal/app"
	"ecolearn-engine/internal/domain"
	"go.uber.org/zap"
)

// Handler exposes the engine over a JSON API.
type Handler struct {
	engine *app.Engine
	log    *zap.Logger
}

func NewHandler(engine *app.Engine, log *zap.Logger) *Handler {
	return &Handler{engine: engine, log: log}
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux, ws *WSHandler) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/users", h.registerUser)
	mux.HandleFunc("GET /api/users/{id}", h.getProfile)
	mux.HandleFunc("GET /api/users/{id}/attempts", h.listAttempts)
	mux.HandleFunc("POST /api/users/{id}/badges/check", h.checkBadges)
	mux.HandleFunc("POST /api/quizzes/{id}/submit", h.submitQuiz)
	mux.HandleFunc("POST /api/challenges/{id}/complete", h.completeChallenge)
	mux.HandleFunc("GET /api/leaderboard", h.getLeaderboard)
	if ws != nil {
		mux.HandleFunc("GET /ws/leaderboard", ws.ServeWS)
	}
}

type registerUserRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}
	user, err := h.engine.RegisterUser(r.Context(), req.ID, req.Name, req.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.engine.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) listAttempts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	attempts, err := h.engine.ListAttempts(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if attempts == nil {
		attempts = []domain.Attempt{}
	}
	h.writeJSON(w, http.StatusOK, attempts)
}

func (h *Handler) checkBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.engine.CheckBadges(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if badges == nil {
		badges = []domain.Badge{}
	}
	h.writeJSON(w, http.StatusOK, badges)
}

type submitQuizRequest struct {
	UserID  string         `json:"userId"`
	Answers map[string]int `json:"answers"`
}

func (h *Handler) submitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}
	outcome, err := h.engine.GradeAndRecordQuiz(r.Context(), req.UserID, r.PathValue("id"), req.Answers)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, outcome)
}

type completeChallengeRequest struct {
	UserID string `json:"userId"`
	Proof  string `json:"proof"`
}

func (h *Handler) completeChallenge(w http.ResponseWriter, r *http.Request) {
	var req completeChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}
	outcome, err := h.engine.CompleteChallenge(r.Context(), req.UserID, r.PathValue("id"), req.Proof)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := domain.Scope(q.Get("scope"))
	if scope == "" {
		scope = domain.ScopeGlobal
	}
	period := domain.Period(q.Get("period"))
	if period == "" {
		period = domain.PeriodAll
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	lb, err := h.engine.GetLeaderboard(r.Context(), scope, period, limit, q.Get("userId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, lb)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("response encode failed", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrChallengeNotFound),
		errors.Is(err, domain.ErrBadgeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrChallengeAlreadyCompleted),
		errors.Is(err, domain.ErrUserAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		h.log.Error("request failed", zap.Error(err))
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}
