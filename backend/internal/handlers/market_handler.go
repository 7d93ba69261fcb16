package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/user/carteira/backend/internal/market"
)

// GetMarketAssets serves the latest feed snapshot from memory.
func GetMarketAssets(c *fiber.Ctx) error {
	assets, refreshedAt := market.Snapshot()
	return c.JSON(fiber.Map{
		"assets":       assets,
		"refreshed_at": refreshedAt,
	})
}
