package server

import (
	"strings"

	"kinship/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ServeMedia handles GET /media/a/:handle/master.jpg. The handle is
// validated by the store before any filesystem access.
func (s *Server) ServeMedia(c *fiber.Ctx) error {
	handle := strings.TrimSpace(c.Params("handle"))
	if handle == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid asset handle"))
	}

	path, err := s.assetStore.ResolvePath(handle)
	if err != nil {
		return respondServiceError(c, err)
	}

	c.Set("Cache-Control", "public, max-age=31536000, immutable")
	return c.SendFile(path)
}
