// handlers/board_routes.go
package handlers

import (
	"stone-progression-system/middleware"
	"stone-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupBoardRoutes wires the event producers: the Kanban board and the
// focus timer. Every one of these routes feeds the progression engine.
func SetupBoardRoutes(app *fiber.App, taskService *services.TaskService, sessionService *services.SessionService) {
	// 🔐 All producer routes require user context (userID, roles)
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/s/tasks", taskService.CreateTask)
	secured.Get("/s/tasks", taskService.ListTasks)
	secured.Post("/s/tasks/:id/complete", taskService.CompleteTask)

	secured.Post("/s/sessions", sessionService.LogSession)

	secured.Post("/s/learning/quiz-attempts", sessionService.LogQuizAttempt)
	secured.Post("/s/learning/flashcards", sessionService.LogFlashcardReview)
}
