package server

import (
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"strconv"
	"strings"
	"unicode"

	"bazaar/internal/models"
	"bazaar/internal/repository"
	"bazaar/internal/service"
	"bazaar/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID", "photoKey" -> "photo key".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if prefix, ok := strings.CutSuffix(param, "Id"); ok && prefix != "" {
		return strings.ToLower(strings.Join(splitCamel(prefix), " ")) + " ID"
	}
	return strings.ToLower(strings.Join(splitCamel(param), " "))
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// parseAdFilter reads the listing filters from the query string. Empty
// parameters are ignored; malformed ones are validation errors naming the
// parameter. author=me resolves to the authenticated caller.
func (s *Server) parseAdFilter(c *fiber.Ctx) (repository.AdFilter, error) {
	var f repository.AdFilter

	if v := strings.TrimSpace(c.Query("type")); v != "" {
		if !validation.IsValidAdType(v) {
			return f, models.NewValidationError("Invalid type")
		}
		t := models.AdType(v)
		f.Type = &t
	}
	if v := strings.TrimSpace(c.Query("paymentType")); v != "" {
		if !validation.IsValidPaymentType(v) {
			return f, models.NewValidationError("Invalid paymentType")
		}
		p := models.PaymentType(v)
		f.PaymentType = &p
	}
	if v := strings.TrimSpace(c.Query("role")); v != "" {
		if !validation.IsValidRole(v) {
			return f, models.NewValidationError("Invalid role")
		}
		r := models.Role(v)
		f.Role = &r
	}

	bounds := []struct {
		param string
		dst   **float64
	}{
		{"minAmount", &f.MinAmount},
		{"maxAmount", &f.MaxAmount},
		{"minPrice", &f.MinPrice},
		{"maxPrice", &f.MaxPrice},
	}
	for _, b := range bounds {
		v := strings.TrimSpace(c.Query(b.param))
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return f, models.NewValidationError("Invalid " + b.param)
		}
		*b.dst = &n
	}

	if v := strings.TrimSpace(c.Query("author")); v != "" {
		if v == "me" {
			uid, ok := s.optionalUserID(c)
			if !ok {
				return f, models.NewUnauthorizedError("Not authorized, no token")
			}
			f.AuthorID = &uid
		} else {
			id, err := strconv.ParseUint(v, 10, 32)
			if err != nil || id == 0 {
				return f, models.NewValidationError("Invalid author")
			}
			uid := uint(id)
			f.AuthorID = &uid
		}
	}

	if v := strings.TrimSpace(c.Query("search")); v != "" {
		f.Search = &v
	}
	if v := strings.TrimSpace(c.Query("hasPhotos")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, models.NewValidationError("Invalid hasPhotos")
		}
		f.HasPhotos = &b
	}
	return f, nil
}

// readUploads loads the files of a multipart field, refusing any file larger
// than maxBytes before reading it.
func readUploads(headers []*multipart.FileHeader, maxBytes int64) ([]service.UploadFile, error) {
	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxBytes {
			return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", maxBytes/(1024*1024)))
		}
		f, err := fh.Open()
		if err != nil {
			return nil, models.NewValidationError("Invalid file upload")
		}
		content, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
		_ = f.Close()
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		files = append(files, service.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Content:     content,
		})
	}
	return files, nil
}
