package repository

import (
	"strings"

	"bazaar/internal/models"

	"gorm.io/gorm"
)

// AdFilter narrows an ad listing. Nil fields are not applied; every present
// field is ANDed with the others.
type AdFilter struct {
	Type        *models.AdType
	PaymentType *models.PaymentType
	AuthorID    *uint
	MinAmount   *float64
	MaxAmount   *float64
	MinPrice    *float64
	MaxPrice    *float64
	// Role keeps ads whose author acts in that role. Authors with role
	// "both" match seller and client alike.
	Role *models.Role
	// Search is a case-insensitive substring of the title or description.
	Search *string
	// HasPhotos keeps ads with (true) or without (false) photos.
	HasPhotos *bool
}

// likeEscaper escapes LIKE metacharacters so user text matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Apply adds the filter's conditions to q. Values are always bound as
// parameters. HasPhotos is not a SQL condition; see Matches.
func (f AdFilter) Apply(q *gorm.DB) *gorm.DB {
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.PaymentType != nil {
		q = q.Where("payment_type = ?", *f.PaymentType)
	}
	if f.AuthorID != nil {
		q = q.Where("author_id = ?", *f.AuthorID)
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	if f.Search != nil && strings.TrimSpace(*f.Search) != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(*f.Search))) + "%"
		q = q.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if f.Role != nil {
		authors := q.Session(&gorm.Session{NewDB: true}).
			Model(&models.User{}).
			Select("id").
			Where("role IN ?", rolesMatching(*f.Role))
		q = q.Where("author_id IN (?)", authors)
	}
	return q
}

// Matches applies the conditions that are evaluated in memory.
func (f AdFilter) Matches(ad *models.Ad) bool {
	if f.HasPhotos != nil && (len(ad.Photos) > 0) != *f.HasPhotos {
		return false
	}
	return true
}

func rolesMatching(r models.Role) []models.Role {
	switch r {
	case models.RoleSeller:
		return []models.Role{models.RoleSeller, models.RoleBoth}
	case models.RoleClient:
		return []models.Role{models.RoleClient, models.RoleBoth}
	default:
		return []models.Role{r}
	}
}
