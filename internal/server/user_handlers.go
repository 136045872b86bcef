// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"time"

	"kinship/internal/cache"
	"kinship/internal/models"
	"kinship/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetAllUsers handles GET /api/users
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	page := parsePagination(c, 100)

	users, err := s.userService.ListUsers(ctx, page.Limit, page.Offset)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"error": "Request timeout",
			})
		}
		return respondServiceError(c, err)
	}

	return c.JSON(users)
}

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUserByID(c.Context(), id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(user)
}

// GetUserCached handles GET /api/users/:id/cached. Reads go through the
// cache-aside path with a short TTL.
func (s *Server) GetUserCached(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var user *models.User
	cacheErr := cache.Aside(c.Context(), cache.UserKey(id), &user, cache.UserTTL, func() error {
		var fetchErr error
		user, fetchErr = s.userService.GetUserByID(c.Context(), id)
		return fetchErr
	})
	if cacheErr != nil {
		return respondServiceError(c, cacheErr)
	}

	return c.JSON(user)
}

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	user, err := s.userService.GetUserByID(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me. The body is a multipart form;
// a newly uploaded "image" file replaces the profile image (or background
// image when "is_background" is set), "remove_image" clears that slot, and
// text fields left empty are unchanged.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	handle, uploaded, err := s.readImageUpload(c, userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	image := service.KeepAsset
	if uploaded {
		image = handle
	} else if c.FormValue("remove_image") == "true" {
		image = ""
	}

	user, err := s.userService.UpdateProfile(ctx, service.UpdateProfileInput{
		UserID:          userID,
		FirstName:       c.FormValue("first_name"),
		LastName:        c.FormValue("last_name"),
		Email:           c.FormValue("email"),
		CurrentPassword: c.FormValue("current_password"),
		Password:        c.FormValue("password"),
		PasswordConfirm: c.FormValue("password_confirm"),
		Image:           image,
		IsBackground:    c.FormValue("is_background") == "true",
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(user)
}

// DeleteMyAccount handles DELETE /api/users/me. The cascade is idempotent;
// on a partial failure the client gets a retryable 500 naming the failed step.
func (s *Server) DeleteMyAccount(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	if err := s.accountService.DeleteAccount(ctx, userID); err != nil {
		return respondServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
