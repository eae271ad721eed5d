// services/sessions.go
package services

import (
	"log"

	"stone-progression-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionService is the timer-side producer: it records finished focus
// sessions and learning activity, then feeds the progression engine.
type SessionService struct {
	DB     *gorm.DB
	Engine *ProgressionEngine
}

func NewSessionService(db *gorm.DB, engine *ProgressionEngine) *SessionService {
	return &SessionService{DB: db, Engine: engine}
}

// LogSession records one completed pomodoro and runs the engine.
func (s *SessionService) LogSession(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		TaskID          *string `json:"task_id" validate:"omitempty,uuid"`
		DurationMinutes int     `json:"duration_minutes" validate:"omitempty,min=1,max=240"`
		IsDeepWork      bool    `json:"is_deep_work"`
		Reflection      string  `json:"reflection"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 25
	}
	if req.TaskID != nil {
		if _, err := uuid.Parse(*req.TaskID); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task ID"})
		}
	}

	session := &models.FocusSession{
		ID:              uuid.NewString(),
		ExternalUserID:  userID,
		TaskID:          req.TaskID,
		DurationMinutes: req.DurationMinutes,
		IsDeepWork:      req.IsDeepWork,
		Reflection:      req.Reflection,
	}
	if err := s.DB.Create(session).Error; err != nil {
		log.Printf("DB Error creating focus session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to log session"})
	}

	awarded, err := s.Engine.OnPomodoroCompleted(userID, session.ID)
	if err != nil {
		log.Printf("❌ Progression failed for session %s: %v", session.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "progression update failed",
			"cause": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id":    session.ID,
		"awarded_slugs": awarded,
	})
}

// LogQuizAttempt folds one quiz result into today's snapshot.
func (s *SessionService) LogQuizAttempt(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Score int64 `json:"score" validate:"min=0,max=100"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Score < 0 || req.Score > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Score must be between 0 and 100"})
	}

	awarded, err := s.Engine.OnLearningActivity(userID, LearningQuizAttempt, 1, req.Score)
	if err != nil {
		log.Printf("❌ Progression failed for quiz attempt: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "progression update failed",
			"cause": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"awarded_slugs": awarded})
}

// LogFlashcardReview folds a flashcard review batch into today's snapshot.
func (s *SessionService) LogFlashcardReview(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Count int64 `json:"count" validate:"omitempty,min=1"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	awarded, err := s.Engine.OnLearningActivity(userID, LearningFlashcardReview, req.Count, 0)
	if err != nil {
		log.Printf("❌ Progression failed for flashcard review: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "progression update failed",
			"cause": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"awarded_slugs": awarded})
}
