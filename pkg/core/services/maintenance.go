package services

import (
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/idlematch/idlematch/internal/config"
	"github.com/idlematch/idlematch/pkg/core/model"
)

// filterRoomsForDate removes rooms blocked by a maintenance window on the
// given date. Windows with rrule syntax errors are skipped; config
// validation rejects them at load time, so a broken rule here only means
// the config was bypassed.
func filterRoomsForDate(rooms []model.Room, windows []config.MaintenanceWindow, date string, logger *zap.Logger) []model.Room {
	if len(windows) == 0 {
		return rooms
	}

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return rooms
	}

	blocked := make(map[int]bool)
	for i, window := range windows {
		rule, err := rrule.StrToRRule(window.RRule)
		if err != nil {
			logger.Warn("Skipping maintenance window with invalid rrule",
				zap.Int("index", i),
				zap.String("rrule", window.RRule))
			continue
		}

		// Anchor the rule just before the target date and scan that day only
		searchStart := day.AddDate(0, 0, -7)
		searchEnd := day.AddDate(0, 0, 1)
		rule.DTStart(searchStart)

		for _, occurrence := range rule.Between(searchStart, searchEnd, true) {
			if occurrence.Format("2006-01-02") == date {
				for _, roomID := range window.RoomIDs {
					blocked[roomID] = true
				}
				break
			}
		}
	}

	if len(blocked) == 0 {
		return rooms
	}

	filtered := make([]model.Room, 0, len(rooms))
	for _, room := range rooms {
		if blocked[room.ID] {
			logger.Debug("Room blocked by maintenance window",
				zap.Int("room_id", room.ID),
				zap.String("date", date))
			continue
		}
		filtered = append(filtered, room)
	}
	return filtered
}
