package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/clubrank-system/internal/middleware"
	"github.com/mmeshcher/clubrank-system/internal/model"
	"github.com/mmeshcher/clubrank-system/internal/notifier"
	"github.com/mmeshcher/clubrank-system/internal/repository"
	"github.com/mmeshcher/clubrank-system/internal/service"
	"github.com/mmeshcher/clubrank-system/internal/validation"
)

type stubService struct {
	registerUserID int64
	registerErr    error

	authUserID int64
	authErr    error

	pointsRes *service.PointsResult
	pointsErr error

	contribRes *service.PointsResult
	contribErr error

	leaderboard    []model.LeaderboardEntry
	leaderboardErr error

	members    []model.Member
	membersErr error

	profile    *service.MemberProfile
	profileErr error

	updateErr error
	deleteErr error
}

func (s *stubService) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	return s.registerUserID, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	return s.authUserID, s.authErr
}

func (s *stubService) AddPointsByName(ctx context.Context, name, action string) (*service.PointsResult, error) {
	return s.pointsRes, s.pointsErr
}

func (s *stubService) AddContribution(ctx context.Context, memberID int64, action string) (*service.PointsResult, error) {
	return s.contribRes, s.contribErr
}

func (s *stubService) GetLeaderboard(ctx context.Context, startDate, endDate string, limit int) ([]model.LeaderboardEntry, error) {
	return s.leaderboard, s.leaderboardErr
}

func (s *stubService) ListMembers(ctx context.Context) ([]model.Member, error) {
	return s.members, s.membersErr
}

func (s *stubService) GetMember(ctx context.Context, memberID int64) (*service.MemberProfile, error) {
	return s.profile, s.profileErr
}

func (s *stubService) UpdateMemberPoints(ctx context.Context, memberID int64, points int64) error {
	return s.updateErr
}

func (s *stubService) DeleteMember(ctx context.Context, memberID int64) error {
	return s.deleteErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")
	hub := notifier.NewHub()
	t.Cleanup(hub.Close)

	return NewHandler(svc, logger, auth, hub)
}

func decodeEnvelope(t *testing.T, res *http.Response) envelope {
	t.Helper()

	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp envelope
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp
}

func TestAddPoints_Success(t *testing.T) {
	svc := &stubService{
		pointsRes: &service.PointsResult{
			MemberID:    7,
			Name:        "Alice",
			PointsAdded: 50,
			TotalPoints: 50,
			Level:       "Bronze Member",
			Created:     true,
		},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(pointsRequest{Name: "Alice", Action: "lead_event"})
	req := httptest.NewRequest(http.MethodPost, "/api/points", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.AddPoints(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	resp := decodeEnvelope(t, res)
	if resp.Status != "success" {
		t.Fatalf("status field = %q, want success", resp.Status)
	}

	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("data is not an object: %T", resp.Data)
	}
	if data["total_points"].(float64) != 50 {
		t.Fatalf("total_points = %v, want 50", data["total_points"])
	}
	if data["level"] != "Bronze Member" {
		t.Fatalf("level = %v, want Bronze Member", data["level"])
	}
}

func TestAddPoints_InvalidAction(t *testing.T) {
	svc := &stubService{pointsErr: service.ErrInvalidAction}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(pointsRequest{Name: "Alice", Action: "write_blogpost"})
	req := httptest.NewRequest(http.MethodPost, "/api/points", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.AddPoints(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}

	resp := decodeEnvelope(t, res)
	if resp.Status != "error" || resp.Message == "" {
		t.Fatalf("error envelope = %+v", resp)
	}
}

func TestGetLeaderboard_JSONResponse(t *testing.T) {
	svc := &stubService{
		leaderboard: []model.LeaderboardEntry{
			{MemberID: 1, Name: "Alice", Rank: 1, PeriodPoints: 120, TotalPoints: 600, Level: "Platinum Member", Badges: []string{"Platinum Member"}},
			{MemberID: 2, Name: "Bob", Rank: 2, PeriodPoints: 40, TotalPoints: 151, Level: "Gold Member", Badges: []string{"Gold Member"}},
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?start_date=2026-01-01&end_date=2026-01-31", nil)
	rec := httptest.NewRecorder()

	h.GetLeaderboard(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	resp := decodeEnvelope(t, res)
	data := resp.Data.(map[string]any)
	rows := data["leaderboard"].([]any)
	if len(rows) != 2 {
		t.Fatalf("leaderboard rows = %d, want 2", len(rows))
	}
	if data["total_members"].(float64) != 2 {
		t.Fatalf("total_members = %v, want 2", data["total_members"])
	}

	first := rows[0].(map[string]any)
	if first["rank"].(float64) != 1 || first["period_points"].(float64) != 120 {
		t.Fatalf("first row = %v", first)
	}
}

func TestGetLeaderboard_InvalidRange(t *testing.T) {
	svc := &stubService{leaderboardErr: validation.ErrInvalidRange}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?start_date=2026-02-01&end_date=2026-01-01", nil)
	rec := httptest.NewRecorder()

	h.GetLeaderboard(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestGetMember_NotFound(t *testing.T) {
	svc := &stubService{profileErr: repository.ErrMemberNotFound}
	h := newTestHandler(t, svc)

	r := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/members/404", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNotFound)
	}
}

func TestUpdateMember_RequiresAuth(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	r := h.SetupRouter()

	body := strings.NewReader(`{"points": 10}`)
	req := httptest.NewRequest(http.MethodPut, "/api/members/1", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestUpdateMember_InvalidBody(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	tests := []struct {
		name string
		body string
	}{
		{"missing points", `{}`},
		{"non-numeric points", `{"points": "ten"}`},
		{"fractional points", `{"points": 1.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/members/1", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.UpdateMember(rec, req)

			if rec.Result().StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestDeleteMember_WithAuthCookie(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	r := h.SetupRouter()

	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, 1)
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodDelete, "/api/members/1", nil)
	req.AddCookie(cookie)

	respRec := httptest.NewRecorder()
	r.ServeHTTP(respRec, req)

	if respRec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", respRec.Result().StatusCode, http.StatusOK)
	}
}

func TestRegister_DuplicateLogin(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrUserExists}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "admin", Password: "pass"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestLogin_SetsCookie(t *testing.T) {
	svc := &stubService{authUserID: 5}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "admin", Password: "pass"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("login must set auth cookie")
	}
}

func TestEvents_StreamsBroadcast(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Events(rec, req)
		close(done)
	}()

	// Ждём подписки обработчика
	deadline := time.Now().Add(time.Second)
	for h.hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("handler did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.hub.Broadcast(notifier.EventUpdateLeaderboard)
	h.hub.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("handler did not stop after hub close")
	}

	res := rec.Result()
	if ct := res.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q, want text/event-stream", ct)
	}
	if !strings.Contains(rec.Body.String(), `data: {"type":"update_leaderboard"}`) {
		t.Fatalf("body = %q, want update_leaderboard event", rec.Body.String())
	}
}
