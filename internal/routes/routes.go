package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/arnold/goalsync-api/internal/handlers"
	"github.com/arnold/goalsync-api/internal/middleware"
)

func Setup(app *fiber.App) {
	api := app.Group("/api")

	protected := api.Group("/", middleware.Protected())

	goals := protected.Group("/goals")
	goals.Get("/", handlers.GetGoals)
	goals.Post("/", handlers.CreateGoal)
	goals.Post("/refresh", handlers.RefreshGoals)
	goals.Post("/migrate", handlers.MigrateGoals)
	goals.Get("/:id", handlers.GetGoal)
	goals.Put("/:id", handlers.UpdateGoal)
	goals.Delete("/:id", handlers.DeleteGoal)
	goals.Put("/:id/progress", handlers.UpdateProgress)
	goals.Post("/:id/tasks/:taskId/toggle", handlers.ToggleTask)

	protected.Get("/stats", handlers.GetStats)
	protected.Get("/streak", handlers.GetStreak)
	protected.Post("/checkin", handlers.CheckIn)

	// Moderation: read-only lookup plus the marketplace visibility flip
	moderation := protected.Group("/moderation", middleware.ModeratorOnly())
	moderation.Get("/goals/:ownerId/:goalId", handlers.GetGoalForReview)
	moderation.Put("/goals/:ownerId/:goalId/visibility", handlers.SetGoalVisibility)

	// WebSocket for live goal sync
	app.Use("/ws", handlers.WebSocketUpgrade())
	app.Get("/ws/goals", websocket.New(handlers.HandleGoalSync))
}
