// services/users.go
package services

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type LeaderboardService struct {
	DB *gorm.DB
}

func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{DB: db}
}

// StreakLeaderboard returns the top profiles by current streak, joined
// with the synced user mirror for display names and avatars.
func (s *LeaderboardService) StreakLeaderboard(c *fiber.Ctx) error {
	limitStr := c.Query("limit", "25")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 25
	}

	type LeaderboardEntry struct {
		ExternalUserID     string  `json:"external_user_id"`
		Username           string  `json:"username"`
		ProfilePictureURL  *string `json:"profile_picture_url,omitempty"`
		XP                 int64   `json:"xp"`
		CurrentDailyStreak int64   `json:"current_daily_streak"`
		LongestDailyStreak int64   `json:"longest_daily_streak"`
	}

	var entries []LeaderboardEntry
	if err := s.DB.Raw(`
		SELECT up.external_user_id,
		       COALESCE(um.username, 'anonymous') AS username,
		       um.profile_picture_url,
		       up.xp,
		       up.current_daily_streak,
		       up.longest_daily_streak
		FROM user_profiles up
		LEFT JOIN user_mirrors um ON um.external_user_id = up.external_user_id
		WHERE up.deleted_at IS NULL
		ORDER BY up.current_daily_streak DESC, up.xp DESC
		LIMIT ?
	`, limit).Scan(&entries).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "leaderboard query failed", "details": err.Error()})
	}

	return c.JSON(entries)
}
