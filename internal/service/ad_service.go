package service

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"bazaar/internal/middleware"
	"bazaar/internal/models"
	"bazaar/internal/observability"
	"bazaar/internal/repository"
	"bazaar/internal/storage"
	"bazaar/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// photoDeleteConcurrency bounds parallel storage deletes when an ad goes away.
const photoDeleteConcurrency = 4

const (
	msgInvalidAdType      = "Type must be one of: request, offer"
	msgInvalidPaymentType = "Payment type must be one of: once, day, hour, month"
	msgInvalidPrice       = "Price must be a non-negative number"
	msgInvalidAmount      = "Amount must be a non-negative number"
)

// AdFieldError returns the validation error for an ad body field that held a
// value of the wrong JSON type, keyed by its JSON name. Unknown fields yield nil.
func AdFieldError(field string) *models.AppError {
	switch field {
	case "type":
		return models.NewValidationError(msgInvalidAdType)
	case "paymentType":
		return models.NewValidationError(msgInvalidPaymentType)
	case "price":
		return models.NewValidationError(msgInvalidPrice)
	case "amount":
		return models.NewValidationError(msgInvalidAmount)
	case "title":
		return models.NewValidationError("Title must be a string")
	case "description":
		return models.NewValidationError("Description must be a string")
	}
	return nil
}

type AdService struct {
	ads    repository.AdRepository
	store  storage.ObjectStore
	images *ImageProcessor
	now    func() time.Time
}

type CreateAdInput struct {
	AuthorID    uint
	Title       string
	Description string
	Price       *float64
	Type        string
	PaymentType string
	Amount      *float64
}

// UpdateAdInput carries a partial update. Nil fields are left untouched; an
// empty PaymentType clears the payment period.
type UpdateAdInput struct {
	UserID      uint
	AdID        uint
	Title       *string
	Description *string
	Price       *float64
	Type        *string
	PaymentType *string
	Amount      *float64
}

// PhotoUploadResult lists the URLs stored by one upload and the ad's full
// photo list afterwards.
type PhotoUploadResult struct {
	Photos    []string
	AllPhotos []string
}

func NewAdService(ads repository.AdRepository, store storage.ObjectStore, images *ImageProcessor) *AdService {
	return &AdService{
		ads:    ads,
		store:  store,
		images: images,
		now:    time.Now,
	}
}

func (s *AdService) List(ctx context.Context, filter repository.AdFilter) ([]models.Ad, error) {
	return s.ads.List(ctx, filter)
}

func (s *AdService) Get(ctx context.Context, id uint) (*models.Ad, error) {
	return s.ads.GetByID(ctx, id)
}

func (s *AdService) Create(ctx context.Context, in CreateAdInput) (*models.Ad, error) {
	title, err := cleanTitle(in.Title)
	if err != nil {
		return nil, err
	}
	description, err := cleanDescription(in.Description)
	if err != nil {
		return nil, err
	}
	if !validation.IsValidAdType(in.Type) {
		return nil, models.NewValidationError(msgInvalidAdType)
	}
	if in.PaymentType != "" && !validation.IsValidPaymentType(in.PaymentType) {
		return nil, models.NewValidationError(msgInvalidPaymentType)
	}

	price := 0.0
	if in.Price != nil {
		if !validation.IsValidAmount(*in.Price) {
			return nil, models.NewValidationError(msgInvalidPrice)
		}
		price = *in.Price
	}
	if in.Amount != nil && !validation.IsValidAmount(*in.Amount) {
		return nil, models.NewValidationError(msgInvalidAmount)
	}

	ad := &models.Ad{
		Title:       title,
		Description: description,
		Price:       price,
		Amount:      in.Amount,
		Type:        models.AdType(in.Type),
		PaymentType: models.PaymentType(in.PaymentType),
		AuthorID:    in.AuthorID,
		Photos:      []string{},
	}
	if err := s.ads.Create(ctx, ad); err != nil {
		return nil, err
	}
	return ad, nil
}

func (s *AdService) Update(ctx context.Context, in UpdateAdInput) (*models.Ad, error) {
	ad, err := s.ownedAd(ctx, in.UserID, in.AdID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title, err := cleanTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		ad.Title = title
	}
	if in.Description != nil {
		description, err := cleanDescription(*in.Description)
		if err != nil {
			return nil, err
		}
		ad.Description = description
	}
	if in.Type != nil {
		if !validation.IsValidAdType(*in.Type) {
			return nil, models.NewValidationError(msgInvalidAdType)
		}
		ad.Type = models.AdType(*in.Type)
	}
	if in.PaymentType != nil {
		if *in.PaymentType != "" && !validation.IsValidPaymentType(*in.PaymentType) {
			return nil, models.NewValidationError(msgInvalidPaymentType)
		}
		ad.PaymentType = models.PaymentType(*in.PaymentType)
	}
	if in.Price != nil {
		if !validation.IsValidAmount(*in.Price) {
			return nil, models.NewValidationError(msgInvalidPrice)
		}
		ad.Price = *in.Price
	}
	if in.Amount != nil {
		if !validation.IsValidAmount(*in.Amount) {
			return nil, models.NewValidationError(msgInvalidAmount)
		}
		amount := *in.Amount
		ad.Amount = &amount
	}

	if err := s.ads.Update(ctx, ad); err != nil {
		return nil, err
	}
	return ad, nil
}

// Delete removes the ad, then its stored photos. Photo cleanup failures are
// logged and do not fail the call.
func (s *AdService) Delete(ctx context.Context, userID, adID uint) error {
	ad, err := s.ownedAd(ctx, userID, adID)
	if err != nil {
		return err
	}
	if err := s.ads.Delete(ctx, ad.ID); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(photoDeleteConcurrency)
	for _, url := range ad.Photos {
		key, ok := s.store.KeyFromURL(url)
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := s.store.Delete(gctx, key); err != nil {
				middleware.Logger.WarnContext(ctx, "failed to delete ad photo",
					slog.Uint64("ad_id", uint64(ad.ID)), slog.String("key", key), slog.String("error", err.Error()))
			}
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

// AddPhotos stores each file as a WebP under the ad's prefix and appends the
// URLs. If anything fails, objects written by this call are removed and the
// photo list is left as it was.
func (s *AdService) AddPhotos(ctx context.Context, userID, adID uint, files []UploadFile) (res *PhotoUploadResult, err error) {
	ctx, span := observability.StartSpan(ctx, "ads.add_photos",
		attribute.Int("ad.id", int(adID)), attribute.Int("photos.count", len(files)))
	defer func() { observability.EndSpan(span, err) }()

	ad, err := s.ownedAd(ctx, userID, adID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, models.NewValidationError("No files uploaded")
	}
	if len(ad.Photos)+len(files) > models.MaxAdPhotos {
		return nil, models.NewValidationError(fmt.Sprintf("Maximum %d photos per ad", models.MaxAdPhotos))
	}

	var keys []string
	defer func() {
		if err != nil {
			s.discard(ctx, keys)
		}
		observability.ImageUploads.WithLabelValues("photo", observability.Outcome(err)).Add(float64(len(files)))
	}()

	uploaded := make([]string, 0, len(files))
	now := s.now()
	for i, f := range files {
		body, procErr := s.images.FitInside(f, PhotoMaxSize)
		if procErr != nil {
			return nil, procErr
		}
		// Offset each file by a millisecond so same-named files never share a key.
		key := photoKey(ad.ID, f.Filename, now.Add(time.Duration(i)*time.Millisecond))
		url, putErr := s.store.Put(ctx, key, body, webpContentType)
		if putErr != nil {
			return nil, models.NewStorageError(putErr)
		}
		keys = append(keys, key)
		uploaded = append(uploaded, url)
	}

	previous := ad.Photos
	photos := append(append([]string{}, previous...), uploaded...)
	ad.Photos = photos
	if err = s.ads.Update(ctx, ad); err != nil {
		ad.Photos = previous
		return nil, err
	}
	return &PhotoUploadResult{Photos: uploaded, AllPhotos: photos}, nil
}

// DeletePhoto removes one photo. A bare file name is looked up under the
// ad's own prefix.
func (s *AdService) DeletePhoto(ctx context.Context, userID, adID uint, name string) error {
	ad, err := s.ownedAd(ctx, userID, adID)
	if err != nil {
		return err
	}

	key := strings.TrimSpace(name)
	if !strings.Contains(key, "/") {
		key = fmt.Sprintf("ads/%d/%s", ad.ID, key)
	}
	key, keyErr := storage.CleanKey(key)
	if keyErr != nil {
		return models.NewNotFoundMessage("Photo not found")
	}

	kept := make([]string, 0, len(ad.Photos))
	found := false
	for _, url := range ad.Photos {
		if k, ok := s.store.KeyFromURL(url); ok && k == key {
			found = true
			continue
		}
		kept = append(kept, url)
	}
	if !found {
		return models.NewNotFoundMessage("Photo not found")
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return models.NewStorageError(err)
	}
	ad.Photos = kept
	return s.ads.Update(ctx, ad)
}

func (s *AdService) ownedAd(ctx context.Context, userID, adID uint) (*models.Ad, error) {
	ad, err := s.ads.GetByID(ctx, adID)
	if err != nil {
		return nil, err
	}
	if ad.AuthorID != userID {
		return nil, models.NewForbiddenError("User not authorized")
	}
	return ad, nil
}

func (s *AdService) discard(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
			middleware.Logger.ErrorContext(ctx, "failed to remove orphaned upload",
				slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}

func cleanTitle(raw string) (string, error) {
	title := validation.SanitizeText(raw)
	if !validation.RuneLenBetween(title, validation.TitleMinLen, validation.TitleMaxLen) {
		return "", models.NewValidationError(fmt.Sprintf("Title must be between %d and %d characters",
			validation.TitleMinLen, validation.TitleMaxLen))
	}
	return title, nil
}

func cleanDescription(raw string) (string, error) {
	description := validation.SanitizeText(raw)
	if !validation.RuneLenBetween(description, validation.DescriptionMinLen, validation.DescriptionMaxLen) {
		return "", models.NewValidationError(fmt.Sprintf("Description must be between %d and %d characters",
			validation.DescriptionMinLen, validation.DescriptionMaxLen))
	}
	return description, nil
}

// photoKey builds ads/<adID>/<unixMillis>-<name>.webp from the uploaded
// file name, keeping only characters that are safe in a URL path.
func photoKey(adID uint, filename string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		}
	}
	name := strings.Trim(b.String(), ".")
	if name == "" {
		name = "photo"
	}
	if len(name) > 64 {
		name = name[:64]
	}
	return fmt.Sprintf("ads/%d/%d-%s.webp", adID, now.UnixMilli(), name)
}
