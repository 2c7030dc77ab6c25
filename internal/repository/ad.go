package repository

import (
	"context"
	"errors"

	"bazaar/internal/cache"
	"bazaar/internal/models"
	"bazaar/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdRepository defines persistence operations for ads. Returned ads have
// their author loaded.
type AdRepository interface {
	List(ctx context.Context, filter AdFilter) ([]models.Ad, error)
	GetByID(ctx context.Context, id uint) (*models.Ad, error)
	Create(ctx context.Context, ad *models.Ad) error
	Update(ctx context.Context, ad *models.Ad) error
	Delete(ctx context.Context, id uint) error
}

type adRepository struct {
	db *gorm.DB
}

// NewAdRepository returns a new AdRepository implementation.
func NewAdRepository(db *gorm.DB) AdRepository {
	return &adRepository{db: db}
}

// List returns matching ads, newest first.
func (r *adRepository) List(ctx context.Context, filter AdFilter) ([]models.Ad, error) {
	defer observability.TrackQuery("list", "ads")()

	var ads []models.Ad
	q := filter.Apply(r.db.WithContext(ctx).Model(&models.Ad{}))
	if err := q.Preload("Author").Order("created_at DESC").Order("id DESC").Find(&ads).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	if filter.HasPhotos == nil {
		return ads, nil
	}
	kept := ads[:0]
	for i := range ads {
		if filter.Matches(&ads[i]) {
			kept = append(kept, ads[i])
		}
	}
	return kept, nil
}

func (r *adRepository) GetByID(ctx context.Context, id uint) (*models.Ad, error) {
	return cache.Aside(ctx, cache.AdKey(id), cache.AdTTL, func(ctx context.Context) (*models.Ad, error) {
		return r.load(ctx, id)
	})
}

func (r *adRepository) load(ctx context.Context, id uint) (*models.Ad, error) {
	defer observability.TrackQuery("get_by_id", "ads")()

	var ad models.Ad
	if err := r.db.WithContext(ctx).Preload("Author").First(&ad, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundMessage("Ad not found")
		}
		return nil, models.NewInternalError(err)
	}
	return &ad, nil
}

// Create inserts the ad and reloads it with its author.
func (r *adRepository) Create(ctx context.Context, ad *models.Ad) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(ad).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).First(&ad.Author, ad.AuthorID).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Update writes every column of ad, zero values included. The author row is
// never touched.
func (r *adRepository) Update(ctx context.Context, ad *models.Ad) error {
	res := r.db.WithContext(ctx).Model(ad).Select("*").Omit(clause.Associations).Updates(ad)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	cache.InvalidateAd(ctx, ad.ID)
	if res.RowsAffected == 0 {
		return models.NewNotFoundMessage("Ad not found")
	}
	return nil
}

func (r *adRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Ad{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	cache.InvalidateAd(ctx, id)
	if res.RowsAffected == 0 {
		return models.NewNotFoundMessage("Ad not found")
	}
	return nil
}
