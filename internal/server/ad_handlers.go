package server

import (
	"encoding/json"
	"errors"
	"net/url"

	"bazaar/internal/models"
	"bazaar/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createAdRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	Type        string   `json:"type"`
	PaymentType string   `json:"paymentType"`
	Amount      *float64 `json:"amount"`
}

// updateAdRequest marks absent fields with nil. An empty paymentType clears
// the payment period.
type updateAdRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Type        *string  `json:"type"`
	PaymentType *string  `json:"paymentType"`
	Amount      *float64 `json:"amount"`
}

type photoUploadResponse struct {
	Photos    []string `json:"photos"`
	AllPhotos []string `json:"allPhotos"`
}

// adBodyError names the offending field when a JSON value has the wrong type.
func adBodyError(err error) *models.AppError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if fieldErr := service.AdFieldError(typeErr.Field); fieldErr != nil {
			return fieldErr
		}
	}
	return models.NewValidationError("Invalid request body")
}

func adResponses(ads []models.Ad) []models.AdResponse {
	out := make([]models.AdResponse, 0, len(ads))
	for i := range ads {
		out = append(out, ads[i].ToResponse())
	}
	return out
}

// ListAds handles GET /api/ads
// @Summary List ads
// @Description Returns ads newest first, narrowed by the optional filters
// @Tags ads
// @Produce json
// @Param type query string false "request or offer"
// @Param paymentType query string false "once, day, hour or month"
// @Param minAmount query number false "Minimum amount"
// @Param maxAmount query number false "Maximum amount"
// @Param minPrice query number false "Minimum price"
// @Param maxPrice query number false "Maximum price"
// @Param author query string false "Author ID or me"
// @Param role query string false "Author role"
// @Param search query string false "Text in title or description"
// @Param hasPhotos query bool false "With or without photos"
// @Success 200 {array} models.AdResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /ads [get]
func (s *Server) ListAds(c *fiber.Ctx) error {
	filter, err := s.parseAdFilter(c)
	if err != nil {
		return respondError(c, err)
	}

	ads, err := s.adService.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(adResponses(ads))
}

// GetAd handles GET /api/ads/:id
// @Summary Get ad
// @Tags ads
// @Produce json
// @Param id path int true "Ad ID"
// @Success 200 {object} models.AdResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /ads/{id} [get]
func (s *Server) GetAd(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	ad, err := s.adService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ad.ToResponse())
}

// CreateAd handles POST /api/ads
// @Summary Create ad
// @Tags ads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createAdRequest true "Ad data"
// @Success 201 {object} models.AdResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /ads [post]
func (s *Server) CreateAd(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req createAdRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, adBodyError(err))
	}

	ad, err := s.adService.Create(c.UserContext(), service.CreateAdInput{
		AuthorID:    userID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Type:        req.Type,
		PaymentType: req.PaymentType,
		Amount:      req.Amount,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ad.ToResponse())
}

// UpdateAd handles PUT /api/ads/:id
// @Summary Update ad
// @Description Partial update; only the author may change an ad
// @Tags ads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Ad ID"
// @Param request body updateAdRequest true "Fields to change"
// @Success 200 {object} models.AdResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /ads/{id} [put]
func (s *Server) UpdateAd(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req updateAdRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, adBodyError(err))
	}

	ad, err := s.adService.Update(c.UserContext(), service.UpdateAdInput{
		UserID:      userID,
		AdID:        id,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Type:        req.Type,
		PaymentType: req.PaymentType,
		Amount:      req.Amount,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ad.ToResponse())
}

// DeleteAd handles DELETE /api/ads/:id
// @Summary Delete ad
// @Tags ads
// @Produce json
// @Security BearerAuth
// @Param id path int true "Ad ID"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /ads/{id} [delete]
func (s *Server) DeleteAd(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.adService.Delete(c.UserContext(), userID, id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Ad removed"})
}

// UploadAdPhotos handles POST /api/ads/:id/photos
// @Summary Upload ad photos
// @Description Multipart upload, field "photos", at most 6 photos per ad
// @Tags ads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Ad ID"
// @Param photos formData file true "Photos"
// @Success 200 {object} photoUploadResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /ads/{id}/photos [post]
func (s *Server) UploadAdPhotos(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No files uploaded"))
	}
	files, err := readUploads(form.File["photos"], s.config.MaxUploadBytes())
	if err != nil {
		return respondError(c, err)
	}

	res, err := s.adService.AddPhotos(c.UserContext(), userID, id, files)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(photoUploadResponse{Photos: res.Photos, AllPhotos: res.AllPhotos})
}

// DeleteAdPhoto handles DELETE /api/ads/:id/photos/:photoKey
// @Summary Delete ad photo
// @Description photoKey is the stored file name or the full URL-encoded object key
// @Tags ads
// @Produce json
// @Security BearerAuth
// @Param id path int true "Ad ID"
// @Param photoKey path string true "Photo key"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /ads/{id}/photos/{photoKey} [delete]
func (s *Server) DeleteAdPhoto(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	key, err := url.PathUnescape(c.Params("photoKey"))
	if err != nil || key == "" {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundMessage("Photo not found"))
	}

	if err := s.adService.DeletePhoto(c.UserContext(), userID, id, key); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Photo removed"})
}
