// Package model содержит доменные сущности сервиса рейтинга участников клуба.
package model

import "time"

// User представляет зарегистрированного администратора сервиса.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// ActionType описывает тип вклада участника.
type ActionType string

const (
	ActionAttendEvent      ActionType = "attend_event"
	ActionVolunteerTask    ActionType = "volunteer_task"
	ActionLeadEvent        ActionType = "lead_event"
	ActionUploadDocs       ActionType = "upload_docs"
	ActionBringSponsorship ActionType = "bring_sponsorship"
)

// Member описывает участника клуба и его накопленный счёт.
type Member struct {
	ID         int64
	Name       string
	Points     int64
	CreatedAt  time.Time
	LastActive time.Time
}

// Contribution описывает один зачтённый вклад участника.
type Contribution struct {
	ID         int64
	MemberID   int64
	Action     ActionType
	Points     int64
	RecordedAt time.Time
}

// LeaderboardEntry описывает строку таблицы лидеров за запрошенный период.
type LeaderboardEntry struct {
	MemberID     int64    `json:"member_id"`
	Name         string   `json:"name"`
	Rank         int      `json:"rank"`
	PeriodPoints int64    `json:"period_points"`
	TotalPoints  int64    `json:"total_points"`
	Level        string   `json:"level"`
	Badges       []string `json:"badges"`
}

// ActionStats агрегирует вклады одного типа для профиля участника.
type ActionStats struct {
	Count       int   `json:"count"`
	TotalPoints int64 `json:"total_points"`
}
