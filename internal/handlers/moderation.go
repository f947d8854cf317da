package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// GetGoalForReview is the moderation workflow's read-only lookup. It never
// exposes mutation of the task payload.
func GetGoalForReview(c *fiber.Ctx) error {
	goal, err := Goals.Get(c.Context(), c.Params("goalId"), c.Params("ownerId"))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(goal)
}

// SetGoalVisibility flips the public flag when a goal is approved for (or
// pulled from) the community marketplace.
func SetGoalVisibility(c *fiber.Ctx) error {
	var req struct {
		Public bool `json:"public"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := Goals.SetVisibility(c.Context(), c.Params("goalId"), c.Params("ownerId"), req.Public); err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"public": req.Public})
}
