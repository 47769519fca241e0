// Package handler содержит HTTP-обработчики API сервиса рейтинга.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/clubrank-system/internal/middleware"
	"github.com/mmeshcher/clubrank-system/internal/model"
	"github.com/mmeshcher/clubrank-system/internal/notifier"
	"github.com/mmeshcher/clubrank-system/internal/repository"
	"github.com/mmeshcher/clubrank-system/internal/scoring"
	"github.com/mmeshcher/clubrank-system/internal/service"
	"github.com/mmeshcher/clubrank-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	AddPointsByName(ctx context.Context, name, action string) (*service.PointsResult, error)
	AddContribution(ctx context.Context, memberID int64, action string) (*service.PointsResult, error)
	GetLeaderboard(ctx context.Context, startDate, endDate string, limit int) ([]model.LeaderboardEntry, error)
	ListMembers(ctx context.Context) ([]model.Member, error)
	GetMember(ctx context.Context, memberID int64) (*service.MemberProfile, error)
	UpdateMemberPoints(ctx context.Context, memberID int64, points int64) error
	DeleteMember(ctx context.Context, memberID int64) error
}

// Handler реализует HTTP-обработчики API сервиса рейтинга.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	hub            *notifier.Hub
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, hub *notifier.Hub) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		hub:            hub,
	}
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: data})
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Status: "error", Message: message})
}

// writeError отображает доменную ошибку в HTTP-статус и конверт ответа.
// Внутренние ошибки логируются и не раскрываются клиенту.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, validation.ErrInvalidDate),
		errors.Is(err, validation.ErrInvalidRange),
		errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, service.ErrEmptyName),
		errors.Is(err, service.ErrInvalidPoints):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrMemberNotFound):
		writeErrorMessage(w, http.StatusNotFound, "member not found")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeErrorMessage(w, http.StatusUnauthorized, "invalid login or password")
	case errors.Is(err, repository.ErrUserExists):
		writeErrorMessage(w, http.StatusConflict, "login already taken")
	default:
		h.logger.Error("internal error", zap.Error(err))
		writeErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

func memberIDFromURL(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Login == "" || req.Password == "" {
		writeErrorMessage(w, http.StatusBadRequest, "login and password are required")
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	writeSuccess(w, map[string]any{"user_id": userID, "login": req.Login})
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Login == "" || req.Password == "" {
		writeErrorMessage(w, http.StatusBadRequest, "login and password are required")
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	writeSuccess(w, map[string]any{"user_id": userID, "login": req.Login})
}

// Logout сбрасывает cookie авторизации текущего пользователя.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "logged out"})
}

// Me возвращает идентификатор аутентифицированного пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	writeSuccess(w, map[string]any{"user_id": userID, "authenticated": true})
}

type pointsRequest struct {
	Name   string `json:"name"`
	Action string `json:"action"`
}

type pointsResponse struct {
	MemberID    int64  `json:"member_id"`
	Name        string `json:"name,omitempty"`
	PointsAdded int64  `json:"points_added"`
	TotalPoints int64  `json:"total_points"`
	Level       string `json:"level"`
}

// AddPoints записывает вклад участника по имени, создавая участника при необходимости.
func (h *Handler) AddPoints(w http.ResponseWriter, r *http.Request) {
	var req pointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.service.AddPointsByName(r.Context(), req.Name, req.Action)
	if err != nil {
		h.writeError(w, err)
		return
	}

	message := "points added"
	if res.Created {
		message = "member created, points added"
	}

	writeJSON(w, http.StatusOK, envelope{
		Status:  "success",
		Message: message,
		Data: pointsResponse{
			MemberID:    res.MemberID,
			Name:        res.Name,
			PointsAdded: res.PointsAdded,
			TotalPoints: res.TotalPoints,
			Level:       res.Level,
		},
	})
}

type contributionRequest struct {
	Action string `json:"action"`
}

// AddContribution записывает вклад существующего участника.
func (h *Handler) AddContribution(w http.ResponseWriter, r *http.Request) {
	memberID, err := memberIDFromURL(r)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid member id")
		return
	}

	var req contributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.service.AddContribution(r.Context(), memberID, req.Action)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeSuccess(w, pointsResponse{
		MemberID:    res.MemberID,
		PointsAdded: res.PointsAdded,
		TotalPoints: res.TotalPoints,
		Level:       res.Level,
	})
}

// GetLeaderboard возвращает таблицу лидеров за запрошенный период.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	entries, err := h.service.GetLeaderboard(r.Context(),
		r.URL.Query().Get("start_date"),
		r.URL.Query().Get("end_date"),
		limit,
	)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeSuccess(w, map[string]any{
		"leaderboard":   entries,
		"total_members": len(entries),
	})
}

type memberResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Points     int64  `json:"points"`
	Level      string `json:"level"`
	CreatedAt  string `json:"created_at"`
	LastActive string `json:"last_active"`
}

// ListMembers возвращает список всех участников.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]memberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, memberResponse{
			ID:         m.ID,
			Name:       m.Name,
			Points:     m.Points,
			Level:      scoring.Level(m.Points),
			CreatedAt:  m.CreatedAt.Format(time.RFC3339),
			LastActive: m.LastActive.Format(time.RFC3339),
		})
	}

	writeSuccess(w, map[string]any{"members": resp})
}

type contributionResponse struct {
	Action     string `json:"action"`
	Points     int64  `json:"points"`
	RecordedAt string `json:"recorded_at"`
}

// GetMember возвращает подробный профиль участника.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := memberIDFromURL(r)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid member id")
		return
	}

	profile, err := h.service.GetMember(r.Context(), memberID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	recent := make([]contributionResponse, 0, len(profile.RecentContributions))
	for _, c := range profile.RecentContributions {
		recent = append(recent, contributionResponse{
			Action:     string(c.Action),
			Points:     c.Points,
			RecordedAt: c.RecordedAt.Format(time.RFC3339),
		})
	}

	writeSuccess(w, map[string]any{
		"id":                    profile.ID,
		"name":                  profile.Name,
		"points":                profile.Points,
		"level":                 profile.Level,
		"badges":                profile.Badges,
		"rank":                  profile.Rank,
		"next_level_points":     profile.NextLevelPoints,
		"progress":              profile.Progress,
		"total_contributions":   profile.TotalContributions,
		"contributions_by_type": profile.ContributionsByType,
		"recent_contributions":  recent,
	})
}

type updateMemberRequest struct {
	Points *int64 `json:"points"`
}

// UpdateMember устанавливает счёт участника в точное значение.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := memberIDFromURL(r)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid member id")
		return
	}

	var req updateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Points == nil {
		writeErrorMessage(w, http.StatusBadRequest, service.ErrInvalidPoints.Error())
		return
	}

	if err := h.service.UpdateMemberPoints(r.Context(), memberID, *req.Points); err != nil {
		h.writeError(w, err)
		return
	}

	writeSuccess(w, map[string]any{
		"member_id": memberID,
		"points":    *req.Points,
		"level":     scoring.Level(*req.Points),
	})
}

// DeleteMember удаляет участника.
func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := memberIDFromURL(r)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid member id")
		return
	}

	if err := h.service.DeleteMember(r.Context(), memberID); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "member deleted"})
}
