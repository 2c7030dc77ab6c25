package server

import (
	"mime/multipart"

	"bazaar/internal/models"
	"bazaar/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUserProfile handles GET /api/users/:id
// @Summary Public profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.PublicProfile
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	profile, err := s.userService.GetPublicProfile(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update own profile
// @Description Only profile fields may be sent; null clears a field
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	upd, err := service.DecodeProfileUpdate(c.Body())
	if err != nil {
		return respondError(c, err)
	}

	user, err := s.userService.UpdateSelf(c.UserContext(), userID, upd)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Profile updated",
		"user":    user,
	})
}

// UpdateMyRole handles PUT /api/users/me/role
// @Summary Change own role
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{role=string} true "client, seller or both"
// @Success 200 {object} object{role=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /users/me/role [put]
func (s *Server) UpdateMyRole(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	role, err := s.userService.ChangeRole(c.UserContext(), userID, req.Role)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"role": role})
}

// UploadAvatar handles POST /api/users/me/avatar
// @Summary Upload avatar
// @Description Multipart upload, field "avatar"; stored as a 256x256 WebP
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "Avatar image"
// @Success 200 {object} object{avatar=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /users/me/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	fh, err := c.FormFile("avatar")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No file uploaded"))
	}
	files, err := readUploads([]*multipart.FileHeader{fh}, s.config.MaxUploadBytes())
	if err != nil {
		return respondError(c, err)
	}

	url, err := s.userService.UploadAvatar(c.UserContext(), userID, files[0])
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"avatar": url})
}

// DeleteAvatar handles DELETE /api/users/me/avatar
// @Summary Remove avatar
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /users/me/avatar [delete]
func (s *Server) DeleteAvatar(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	if err := s.userService.DeleteAvatar(c.UserContext(), userID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Avatar removed"})
}
