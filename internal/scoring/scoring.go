// Package scoring содержит статические правила начисления баллов и уровней.
package scoring

import (
	"errors"

	"github.com/mmeshcher/clubrank-system/internal/model"
)

// ErrUnknownAction возвращается для типа вклада, отсутствующего в таблице баллов.
var ErrUnknownAction = errors.New("unknown action type")

// Названия уровней участника.
const (
	LevelBronze   = "Bronze Member"
	LevelSilver   = "Silver Member"
	LevelGold     = "Gold Member"
	LevelPlatinum = "Platinum Member"
)

// Названия специальных значков.
const (
	BadgeTopContributor      = "Top Contributor"
	BadgeEventOrganizer      = "Event Organizer"
	BadgeSponsorshipChampion = "Sponsorship Champion"
)

// Пороговые значения для уровней и специальных значков.
const (
	silverThreshold   = 51
	goldThreshold     = 151
	platinumThreshold = 301

	topContributorThreshold      = 500
	eventOrganizerThreshold      = 5
	sponsorshipChampionThreshold = 3
)

var actionPoints = map[model.ActionType]int64{
	model.ActionAttendEvent:      10,
	model.ActionVolunteerTask:    20,
	model.ActionLeadEvent:        50,
	model.ActionUploadDocs:       15,
	model.ActionBringSponsorship: 100,
}

// PointsForAction возвращает количество баллов за указанный тип вклада.
func PointsForAction(action model.ActionType) (int64, error) {
	points, ok := actionPoints[action]
	if !ok {
		return 0, ErrUnknownAction
	}
	return points, nil
}

// Actions возвращает список всех допустимых типов вкладов.
func Actions() []model.ActionType {
	return []model.ActionType{
		model.ActionAttendEvent,
		model.ActionVolunteerTask,
		model.ActionLeadEvent,
		model.ActionUploadDocs,
		model.ActionBringSponsorship,
	}
}

// Level возвращает уровень участника по сумме баллов за всё время.
// Применяется наивысший порог, не превышающий сумму.
func Level(points int64) string {
	switch {
	case points >= platinumThreshold:
		return LevelPlatinum
	case points >= goldThreshold:
		return LevelGold
	case points >= silverThreshold:
		return LevelSilver
	default:
		return LevelBronze
	}
}

// Badges возвращает значки участника: значок уровня и заработанные специальные значки.
// leadEvents и sponsorships — количество соответствующих вкладов за всё время.
func Badges(points int64, leadEvents, sponsorships int) []string {
	badges := []string{Level(points)}

	if points >= topContributorThreshold {
		badges = append(badges, BadgeTopContributor)
	}
	if leadEvents >= eventOrganizerThreshold {
		badges = append(badges, BadgeEventOrganizer)
	}
	if sponsorships >= sponsorshipChampionThreshold {
		badges = append(badges, BadgeSponsorshipChampion)
	}

	return badges
}

// NextLevelPoints возвращает порог следующего уровня или nil для максимального уровня.
func NextLevelPoints(points int64) *int64 {
	var next int64
	switch Level(points) {
	case LevelBronze:
		next = silverThreshold
	case LevelSilver:
		next = goldThreshold
	case LevelGold:
		next = platinumThreshold
	default:
		return nil
	}
	return &next
}

// Progress возвращает процент продвижения к следующему уровню (100 для максимального).
func Progress(points int64) int {
	next := NextLevelPoints(points)
	if next == nil {
		return 100
	}
	p := int(points * 100 / *next)
	if p > 100 {
		p = 100
	}
	return p
}
