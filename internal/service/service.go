// Package service реализует бизнес-логику сервиса рейтинга участников клуба.
package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/mmeshcher/clubrank-system/internal/model"
	"github.com/mmeshcher/clubrank-system/internal/notifier"
	"github.com/mmeshcher/clubrank-system/internal/repository"
	"github.com/mmeshcher/clubrank-system/internal/scoring"
	"github.com/mmeshcher/clubrank-system/internal/validation"
)

// ErrInvalidAction возвращается для неизвестного типа вклада.
var (
	ErrInvalidAction = errors.New("invalid action type")
	// ErrEmptyName возвращается для пустого имени участника.
	ErrEmptyName = errors.New("member name must not be empty")
	// ErrInvalidPoints возвращается для отрицательного значения баллов.
	ErrInvalidPoints = errors.New("points must be a non-negative integer")
	// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const (
	defaultLeaderboardLimit = 100
	maxLeaderboardLimit     = 1000

	recentContributionsLimit = 10
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetMemberByID(ctx context.Context, id int64) (*model.Member, error)
	ListMembers(ctx context.Context) ([]model.Member, error)
	AddContributionByName(ctx context.Context, name string, action model.ActionType, points int64) (int64, int64, bool, error)
	AddContributionByID(ctx context.Context, memberID int64, action model.ActionType, points int64) (int64, error)
	SetMemberPoints(ctx context.Context, memberID int64, points int64) error
	DeleteMember(ctx context.Context, memberID int64) error
	GetLeaderboard(ctx context.Context, from, to *time.Time, limit int) ([]repository.LeaderboardRow, error)
	GetContributionsByMember(ctx context.Context, memberID int64) ([]model.Contribution, error)
	CountMembersWithMorePoints(ctx context.Context, points int64) (int64, error)
}

// Service содержит бизнес-логику сервиса рейтинга.
type Service struct {
	repo Repository
	hub  *notifier.Hub
}

// NewService создаёт новый сервис с указанным репозиторием и хабом уведомлений.
func NewService(repo Repository, hub *notifier.Hub) *Service {
	return &Service{
		repo: repo,
		hub:  hub,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.hub != nil {
		s.hub.Close()
	}
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// notifyLeaderboardChanged рассылает подписчикам сигнал об изменении таблицы лидеров.
// Вызывается после фиксации записи; доставка негарантированная.
func (s *Service) notifyLeaderboardChanged() {
	if s.hub != nil {
		s.hub.Broadcast(notifier.EventUpdateLeaderboard)
	}
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	hashed := hashPassword(login, password)
	if subtle.ConstantTimeCompare(hashed, u.PasswordHash) != 1 {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// PointsResult описывает итог записи вклада.
type PointsResult struct {
	MemberID    int64
	Name        string
	PointsAdded int64
	TotalPoints int64
	Level       string
	Created     bool
}

// AddPointsByName записывает вклад участника по имени.
// Если участник с таким именем не существует, он создаётся.
func (s *Service) AddPointsByName(ctx context.Context, name, action string) (*PointsResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	actionType := model.ActionType(action)
	points, err := scoring.PointsForAction(actionType)
	if err != nil {
		return nil, ErrInvalidAction
	}

	memberID, total, created, err := s.repo.AddContributionByName(ctx, name, actionType, points)
	if err != nil {
		return nil, err
	}

	s.notifyLeaderboardChanged()

	return &PointsResult{
		MemberID:    memberID,
		Name:        name,
		PointsAdded: points,
		TotalPoints: total,
		Level:       scoring.Level(total),
		Created:     created,
	}, nil
}

// AddContribution записывает вклад существующего участника по идентификатору.
func (s *Service) AddContribution(ctx context.Context, memberID int64, action string) (*PointsResult, error) {
	actionType := model.ActionType(action)
	points, err := scoring.PointsForAction(actionType)
	if err != nil {
		return nil, ErrInvalidAction
	}

	total, err := s.repo.AddContributionByID(ctx, memberID, actionType, points)
	if err != nil {
		return nil, err
	}

	s.notifyLeaderboardChanged()

	return &PointsResult{
		MemberID:    memberID,
		PointsAdded: points,
		TotalPoints: total,
		Level:       scoring.Level(total),
	}, nil
}

// GetLeaderboard вычисляет таблицу лидеров за период [startDate, endDate].
// Пустая граница означает отсутствие ограничения с этой стороны.
// Участники без вкладов за период включаются в конец таблицы.
func (s *Service) GetLeaderboard(ctx context.Context, startDate, endDate string, limit int) ([]model.LeaderboardEntry, error) {
	from, to, err := validation.ParseDateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	rows, err := s.repo.GetLeaderboard(ctx, from, to, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]model.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, model.LeaderboardEntry{
			MemberID:     row.MemberID,
			Name:         row.Name,
			Rank:         i + 1,
			PeriodPoints: row.PeriodPoints,
			TotalPoints:  row.TotalPoints,
			Level:        scoring.Level(row.TotalPoints),
			Badges:       scoring.Badges(row.TotalPoints, row.LeadEvents, row.Sponsorships),
		})
	}

	return entries, nil
}

// ListMembers возвращает всех участников, упорядоченных по убыванию счёта.
func (s *Service) ListMembers(ctx context.Context) ([]model.Member, error) {
	return s.repo.ListMembers(ctx)
}

// MemberProfile описывает подробный профиль участника.
type MemberProfile struct {
	ID                  int64
	Name                string
	Points              int64
	Level               string
	Badges              []string
	Rank                int64
	NextLevelPoints     *int64
	Progress            int
	TotalContributions  int
	ContributionsByType map[string]model.ActionStats
	RecentContributions []model.Contribution
}

// GetMember возвращает профиль участника: счёт, уровень, значки, место в общем
// рейтинге и сводку по вкладам.
func (s *Service) GetMember(ctx context.Context, memberID int64) (*MemberProfile, error) {
	member, err := s.repo.GetMemberByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	contributions, err := s.repo.GetContributionsByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	better, err := s.repo.CountMembersWithMorePoints(ctx, member.Points)
	if err != nil {
		return nil, err
	}

	byType := make(map[string]model.ActionStats)
	leadEvents := 0
	sponsorships := 0
	for _, c := range contributions {
		stats := byType[string(c.Action)]
		stats.Count++
		stats.TotalPoints += c.Points
		byType[string(c.Action)] = stats

		switch c.Action {
		case model.ActionLeadEvent:
			leadEvents++
		case model.ActionBringSponsorship:
			sponsorships++
		}
	}

	recent := contributions
	if len(recent) > recentContributionsLimit {
		recent = recent[:recentContributionsLimit]
	}

	return &MemberProfile{
		ID:                  member.ID,
		Name:                member.Name,
		Points:              member.Points,
		Level:               scoring.Level(member.Points),
		Badges:              scoring.Badges(member.Points, leadEvents, sponsorships),
		Rank:                better + 1,
		NextLevelPoints:     scoring.NextLevelPoints(member.Points),
		Progress:            scoring.Progress(member.Points),
		TotalContributions:  len(contributions),
		ContributionsByType: byType,
		RecentContributions: recent,
	}, nil
}

// UpdateMemberPoints устанавливает счёт участника в точное значение.
// Журнал вкладов при этом не изменяется: допускается расхождение счёта и журнала.
func (s *Service) UpdateMemberPoints(ctx context.Context, memberID int64, points int64) error {
	if points < 0 {
		return ErrInvalidPoints
	}

	if err := s.repo.SetMemberPoints(ctx, memberID, points); err != nil {
		return err
	}

	s.notifyLeaderboardChanged()
	return nil
}

// DeleteMember удаляет участника. Журнал его вкладов не очищается.
func (s *Service) DeleteMember(ctx context.Context, memberID int64) error {
	if err := s.repo.DeleteMember(ctx, memberID); err != nil {
		return err
	}

	s.notifyLeaderboardChanged()
	return nil
}
