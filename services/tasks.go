// services/tasks.go
package services

import (
	"errors"
	"log"
	"time"

	"stone-progression-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskService is the board-side producer: it owns task CRUD and feeds the
// progression engine when a task is completed.
type TaskService struct {
	DB     *gorm.DB
	Engine *ProgressionEngine
}

func NewTaskService(db *gorm.DB, engine *ProgressionEngine) *TaskService {
	return &TaskService{DB: db, Engine: engine}
}

// CreateTask adds a task to the authenticated user's board.
func (s *TaskService) CreateTask(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Title              string              `json:"title" validate:"required"`
		Priority           models.TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
		Tags               []string            `json:"tags"`
		EstimatedPomodoros int                 `json:"estimated_pomodoros" validate:"omitempty,min=0"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Title is required"})
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if req.EstimatedPomodoros <= 0 {
		req.EstimatedPomodoros = 1
	}

	task := &models.Task{
		ID:                 uuid.NewString(),
		ExternalUserID:     userID,
		Title:              req.Title,
		Priority:           req.Priority,
		Tags:               req.Tags,
		EstimatedPomodoros: req.EstimatedPomodoros,
		Status:             models.TaskStatusOpen,
	}
	if err := s.DB.Create(task).Error; err != nil {
		log.Printf("DB Error creating task: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create task"})
	}

	return c.Status(fiber.StatusCreated).JSON(task)
}

// ListTasks returns the user's tasks, optionally filtered by status.
func (s *TaskService) ListTasks(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	query := s.DB.Where("external_user_id = ?", userID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var tasks []models.Task
	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		log.Printf("DB Error fetching tasks: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tasks"})
	}
	return c.JSON(tasks)
}

// CompleteTask marks a task done and runs the progression engine.
// Completing an already-done task is rejected so a client retry cannot
// replay counters.
func (s *TaskService) CompleteTask(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	taskID := c.Params("id")
	if _, err := uuid.Parse(taskID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task ID"})
	}

	now := time.Now().UTC()

	// Conditional flip open → done; RowsAffected==0 means missing or already done.
	res := s.DB.Model(&models.Task{}).
		Where("id = ? AND external_user_id = ? AND status = ?", taskID, userID, models.TaskStatusOpen).
		Updates(map[string]interface{}{"status": models.TaskStatusDone, "completed_at": now})
	if res.Error != nil {
		log.Printf("DB Error completing task: %v", res.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to complete task"})
	}
	if res.RowsAffected == 0 {
		var task models.Task
		if err := s.DB.Where("id = ? AND external_user_id = ?", taskID, userID).First(&task).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Task already completed"})
	}

	awarded, err := s.Engine.OnTaskCompleted(userID, taskID)
	if err != nil {
		log.Printf("❌ Progression failed for task %s: %v", taskID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "progression update failed",
			"cause": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"task_id":       taskID,
		"awarded_slugs": awarded,
	})
}
