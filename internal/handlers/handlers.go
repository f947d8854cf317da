package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/arnold/goalsync-api/internal/store"
	enginesync "github.com/arnold/goalsync-api/internal/sync"
)

// Wired once at startup.
var (
	Goals  *store.GoalStore
	Engine *enginesync.Engine

	validate = validator.New()
)

func Init(goals *store.GoalStore, engine *enginesync.Engine) {
	Goals = goals
	Engine = engine
}

// storeError maps store sentinel errors onto HTTP responses.
func storeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, store.ErrInvalidOwner):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid owner ID",
		})
	case errors.Is(err, store.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid or missing required fields",
		})
	case errors.Is(err, store.ErrDuplicateTitle):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "You already have a goal with this title",
		})
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Goal not found",
		})
	case errors.Is(err, store.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You don't have access to this goal",
		})
	case errors.Is(err, store.ErrOutOfRange):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Progress must be between 0 and 100",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Something went wrong",
		})
	}
}
