package handlers

import (
	"math"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/goalsync-api/internal/middleware"
	"github.com/arnold/goalsync-api/internal/models"
)

// GetStats aggregates the owner's goal and streak numbers for the
// dashboard.
func GetStats(c *fiber.Ctx) error {
	ownerID := middleware.GetOwnerID(c)

	goals, err := Goals.ListByOwner(c.Context(), ownerID, models.GoalFilters{})
	if err != nil {
		return storeError(c, err)
	}

	now := time.Now()
	var active, completed, completedThisMonth, progressSum int
	for _, g := range goals {
		progressSum += g.Progress
		switch g.Status {
		case models.StatusActive:
			active++
		case models.StatusCompleted:
			completed++
			if g.CompletedAt != nil && g.CompletedAt.Year() == now.Year() && g.CompletedAt.Month() == now.Month() {
				completedThisMonth++
			}
		}
	}

	averageProgress := 0
	if len(goals) > 0 {
		averageProgress = int(math.Round(float64(progressSum) / float64(len(goals))))
	}

	currentStreak, longestStreak := 0, 0
	if streak, err := Goals.Tracker().GetStreak(c.Context(), ownerID); err == nil && streak != nil {
		currentStreak = streak.CurrentStreak
		longestStreak = streak.LongestStreak
	}

	return c.JSON(fiber.Map{
		"totalGoals":         len(goals),
		"activeGoals":        active,
		"completedGoals":     completed,
		"averageProgress":    averageProgress,
		"completedThisMonth": completedThisMonth,
		"currentStreak":      currentStreak,
		"longestStreak":      longestStreak,
	})
}

// GetStreak returns the owner's streak record, empty-handed if they have
// never checked in.
func GetStreak(c *fiber.Ctx) error {
	ownerID := middleware.GetOwnerID(c)

	streak, err := Goals.Tracker().GetStreak(c.Context(), ownerID)
	if err != nil {
		return storeError(c, err)
	}
	if streak == nil {
		return c.JSON(fiber.Map{
			"currentStreak": 0,
			"longestStreak": 0,
		})
	}
	return c.JSON(streak)
}

// CheckIn counts a manual daily check-in toward the owner's streak.
func CheckIn(c *fiber.Ctx) error {
	ownerID := middleware.GetOwnerID(c)

	var req struct {
		GoalIDs []string `json:"goalIds"`
	}
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	streak, err := Goals.Tracker().CheckIn(c.Context(), ownerID, req.GoalIDs)
	if err != nil {
		return storeError(c, err)
	}
	_ = Goals.Tracker().LogActivity(c.Context(), ownerID, models.ActivityCheckIn, req.GoalIDs)
	return c.JSON(streak)
}
