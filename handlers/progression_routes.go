// handlers/progression_routes.go
package handlers

import (
	"time"

	"stone-progression-system/middleware"
	"stone-progression-system/models"
	"stone-progression-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupProgressionRoutes(
	app *fiber.App,
	engine *services.ProgressionEngine,
	catalogService *services.CatalogService,
	claimService *services.ClaimService,
	shardService *services.ShardService,
	awardService *services.AwardService,
	leaderboardService *services.LeaderboardService,
	authClient *services.AuthServiceClient,
) {
	// 🔐 Secured routes — require user context (userID, roles).
	// The gateway forwards paths like /api/v1/progression/s/user/profile -> /s/user/profile
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Get("/s/user/profile", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		profile := models.UserProfile{ExternalUserID: userID}
		if err := engine.DB.Where("external_user_id = ?", userID).First(&profile).Error; err != nil && err != gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "DB error fetching profile",
				"cause": err.Error(),
			})
		}

		today := models.DailySnapshot{ExternalUserID: userID, Date: models.SnapshotDate(time.Now().UTC())}
		if err := engine.DB.Where("external_user_id = ? AND date = ?", userID, today.Date).
			First(&today).Error; err != nil && err != gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "DB error fetching today's snapshot",
				"cause": err.Error(),
			})
		}

		progress, err := shardService.GetProgress(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "DB error fetching shard progress",
				"cause": err.Error(),
			})
		}

		var stonesOwned int64
		if err := engine.DB.Model(&models.StoneAward{}).
			Where("external_user_id = ?", userID).
			Count(&stonesOwned).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "DB error counting stones",
				"cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"external_user_id":     userID,
			"xp":                   profile.XP,
			"total_tasks":          profile.TotalTasksCompleted,
			"total_pomodoros":      profile.TotalPomodoros,
			"total_deep_work":      profile.TotalDeepWorkBlocks,
			"current_daily_streak": profile.CurrentDailyStreak,
			"longest_daily_streak": profile.LongestDailyStreak,
			"last_activity_at":     profile.LastActivityAt,
			"stones_owned":         stonesOwned,
			"today":                today,
			"shard_progress":       progress,
		})
	})

	securedGroup.Get("/s/user/stones", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		type OwnedStone struct {
			Slug      string             `json:"slug"`
			Name      string             `json:"name"`
			Theme     string             `json:"theme"`
			Rarity    models.StoneRarity `json:"rarity"`
			IconURL   string             `json:"icon_url"`
			Source    models.AwardSource `json:"source"`
			LoreText  string             `json:"lore_text"`
			GrantedAt time.Time          `json:"granted_at"`
		}
		var owned []OwnedStone
		if err := engine.DB.Raw(`
			SELECT sa.stone_slug AS slug, st.name, st.theme, st.rarity, st.icon_url,
			       sa.source, sa.lore_text, sa.granted_at
			FROM stone_awards sa
			INNER JOIN stone_types st ON st.slug = sa.stone_slug
			WHERE sa.external_user_id = ?
			ORDER BY sa.granted_at DESC
		`, userID).Scan(&owned).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to get stones",
				"cause": err.Error(),
			})
		}
		if owned == nil {
			owned = []OwnedStone{}
		}
		return c.JSON(owned)
	})

	securedGroup.Get("/s/user/stones/claimable", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		claimable, err := claimService.GetClaimable(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to get claimable stones",
				"cause": err.Error(),
			})
		}
		return c.JSON(claimable)
	})

	securedGroup.Post("/s/user/stones/:slug/claim", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		stoneSlug := c.Params("slug")

		result, err := claimService.Claim(userID, stoneSlug)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "claim failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(result)
	})

	securedGroup.Get("/s/stones", catalogService.ListStones)
	securedGroup.Get("/s/leaderboard/streaks", leaderboardService.StreakLeaderboard)

	// SSE stream authenticates via query params (EventSource can't set
	// headers); registered only when the auth service is configured.
	if authClient != nil {
		app.Get("/user/stones/stream", middleware.SSEAuthMiddleware(authClient), awardService.StreamUserAwardsSSE)
	}

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	adminGroup.Post("/stones", catalogService.CreateStone)
	adminGroup.Post("/stones/:slug/icon", catalogService.UploadStoneIcon)

	adminGroup.Post("/shards/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID    string `json:"user_id" validate:"required,uuid"`
			StoneSlug string `json:"stone_slug" validate:"required"`
			Amount    int64  `json:"amount" validate:"required,min=1"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		res, err := shardService.AddShards(req.UserID, req.StoneSlug, req.Amount, nil)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "shard grant failed",
				"cause": err.Error(),
			})
		}
		if res.Award != nil {
			awardService.AttachLore(res.Award)
		}

		return c.JSON(fiber.Map{
			"message":    "Shards granted successfully",
			"user_id":    req.UserID,
			"stone_slug": req.StoneSlug,
			"amount":     req.Amount,
			"leveled":    res.Leveled,
			"overflow":   res.Overflow,
		})
	})

	// Replay-safe manual rollover: redelivery of a date is a no-op.
	adminGroup.Post("/rollover", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id" validate:"omitempty,uuid"`
			Date   string `json:"date" validate:"required"` // YYYY-MM-DD
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid date, want YYYY-MM-DD"})
		}

		if req.UserID == "" {
			engine.RolloverAllProfiles(models.SnapshotDate(date))
			return c.JSON(fiber.Map{"message": "Rollover applied to all profiles", "date": req.Date})
		}

		awarded, err := engine.OnEndOfDay(req.UserID, date)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "rollover failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"message":       "Rollover applied",
			"user_id":       req.UserID,
			"date":          req.Date,
			"awarded_slugs": awarded,
		})
	})
}
