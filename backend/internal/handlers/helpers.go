package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// currentUserID pulls the authenticated user's id out of the locals the
// auth middleware populated.
func currentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	userID, ok := c.Locals("userID").(uuid.UUID)
	return userID, ok
}

// normalizeAssetCode upper-cases and trims a ticker code.
func normalizeAssetCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// parseDate accepts the formats the SPA sends: RFC3339 or a bare
// YYYY-MM-DD. An empty string means "now".
func parseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Now(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
