package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/goalsync-api/internal/middleware"
	"github.com/arnold/goalsync-api/internal/models"
)

func CreateGoal(c *fiber.Ctx) error {
	ownerID := middleware.GetOwnerID(c)

	var req models.CreateGoalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid or missing required fields",
		})
	}

	id, err := Engine.CreateGoal(c.Context(), ownerID, req)
	if err != nil {
		return storeError(c, err)
	}

	goal, err := Goals.Get(c.Context(), id, ownerID)
	if err != nil {
		return storeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(goal)
}

func GetGoals(c *fiber.Ctx) error {
	ownerID := middleware.GetOwnerID(c)

	goals, err := Goals.ListByOwner(c.Context(), ownerID, filtersFromQuery(c))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{
		"goals":      goals,
		"syncStatus": Engine.Status(ownerID),
	})
}

func GetGoal(c *fiber.Ctx) error {
	ownerID := middleware.GetOwnerID(c)

	goal, err := Goals.Get(c.Context(), c.Params("id"), ownerID)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(goal)
}

func UpdateGoal(c *fiber.Ctx) error {
	ownerID := middleware.GetOwnerID(c)

	var req models.UpdateGoalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := Engine.UpdateGoal(c.Context(), c.Params("id"), ownerID, req); err != nil {
		return storeError(c, err)
	}

	goal, err := Goals.Get(c.Context(), c.Params("id"), ownerID)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(goal)
}

func DeleteGoal(c *fiber.Ctx) error {
	ownerID := middleware.GetOwnerID(c)

	if err := Engine.DeleteGoal(c.Context(), c.Params("id"), ownerID); err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true})
}

func UpdateProgress(c *fiber.Ctx) error {
	ownerID := middleware.GetOwnerID(c)

	var req struct {
		Progress int `json:"progress"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := Engine.UpdateProgress(c.Context(), c.Params("id"), ownerID, req.Progress); err != nil {
		return storeError(c, err)
	}

	goal, err := Goals.Get(c.Context(), c.Params("id"), ownerID)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(goal)
}

func ToggleTask(c *fiber.Ctx) error {
	ownerID := middleware.GetOwnerID(c)

	var req struct {
		Completed bool `json:"completed"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := Engine.CompleteTask(c.Context(), c.Params("id"), ownerID, c.Params("taskId"), req.Completed); err != nil {
		return storeError(c, err)
	}

	goal, err := Goals.Get(c.Context(), c.Params("id"), ownerID)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(goal)
}

// RefreshGoals forces a one-shot manual fetch, the fallback read path when
// live sync is degraded.
func RefreshGoals(c *fiber.Ctx) error {
	ownerID := middleware.GetOwnerID(c)

	goals, err := Engine.Refresh(c.Context(), ownerID)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{
		"goals":      goals,
		"syncStatus": Engine.Status(ownerID),
	})
}

// MigrateGoals triggers the one-shot legacy-layout migration for the
// authenticated owner. Safe to call repeatedly.
func MigrateGoals(c *fiber.Ctx) error {
	ownerID := middleware.GetOwnerID(c)

	migrated, err := Goals.MigrateOwner(c.Context(), ownerID)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"migrated": migrated})
}

func filtersFromQuery(c *fiber.Ctx) models.GoalFilters {
	return models.GoalFilters{
		Statuses:   splitParam(c.Query("status")),
		Categories: splitParam(c.Query("category")),
	}
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
