package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"bazaar/internal/middleware"
	"bazaar/internal/models"
	"bazaar/internal/observability"
	"bazaar/internal/repository"
	"bazaar/internal/storage"
	"bazaar/internal/validation"
)

// Profile field bounds.
const (
	maxNameLen     = 32
	maxCityLen     = 64
	maxTimezoneLen = 64
	maxAge         = 120
)

type UserService struct {
	users  repository.UserRepository
	store  storage.ObjectStore
	images *ImageProcessor
}

// Field is an optional value in a partial update. Present is false when the
// key was absent; a present field with a nil Value clears the column.
type Field[T any] struct {
	Present bool
	Value   *T
}

// ProfileUpdate lists the profile fields a user may change about themselves.
type ProfileUpdate struct {
	FirstName  Field[string]
	LastName   Field[string]
	MiddleName Field[string]
	City       Field[string]
	Age        Field[int]
	Timezone   Field[string]
}

// immutableProfileFields are rejected by name instead of as unknown keys.
// The avatar has its own upload flow and only ever points at avatarKey.
var immutableProfileFields = map[string]bool{"email": true, "username": true, "role": true, "avatar": true}

// DecodeProfileUpdate parses a JSON object into a ProfileUpdate. Unknown and
// immutable keys are validation errors.
func DecodeProfileUpdate(body []byte) (ProfileUpdate, error) {
	var upd ProfileUpdate

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return upd, models.NewValidationError("Invalid request body")
	}

	for key, value := range raw {
		if immutableProfileFields[key] {
			return upd, models.NewValidationError(key + " cannot be changed here")
		}

		var err error
		switch key {
		case "firstName":
			upd.FirstName, err = decodeField[string](value)
		case "lastName":
			upd.LastName, err = decodeField[string](value)
		case "middleName":
			upd.MiddleName, err = decodeField[string](value)
		case "city":
			upd.City, err = decodeField[string](value)
		case "age":
			upd.Age, err = decodeField[int](value)
		case "timezone":
			upd.Timezone, err = decodeField[string](value)
		default:
			return upd, models.NewValidationError("Unknown field: " + key)
		}
		if err != nil {
			return upd, models.NewValidationError("Invalid value for " + key)
		}
	}
	return upd, nil
}

func decodeField[T any](raw json.RawMessage) (Field[T], error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Field[T]{Present: true}, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return Field[T]{}, err
	}
	return Field[T]{Present: true, Value: &v}, nil
}

func NewUserService(users repository.UserRepository, store storage.ObjectStore, images *ImageProcessor) *UserService {
	return &UserService{users: users, store: store, images: images}
}

func (s *UserService) GetPublicProfile(ctx context.Context, id uint) (*models.PublicProfile, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.PublicProfile(), nil
}

func (s *UserService) UpdateSelf(ctx context.Context, userID uint, upd ProfileUpdate) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	texts := []struct {
		name  string
		field Field[string]
		dst   *string
		max   int
	}{
		{"First name", upd.FirstName, &user.FirstName, maxNameLen},
		{"Last name", upd.LastName, &user.LastName, maxNameLen},
		{"Middle name", upd.MiddleName, &user.MiddleName, maxNameLen},
		{"City", upd.City, &user.City, maxCityLen},
		{"Timezone", upd.Timezone, &user.Timezone, maxTimezoneLen},
	}
	for _, t := range texts {
		if !t.field.Present {
			continue
		}
		value := ""
		if t.field.Value != nil {
			value = validation.SanitizeText(*t.field.Value)
		}
		if !validation.RuneLenBetween(value, 0, t.max) {
			return nil, models.NewValidationError(fmt.Sprintf("%s must be at most %d characters", t.name, t.max))
		}
		*t.dst = value
	}

	if upd.Age.Present {
		if upd.Age.Value != nil && (*upd.Age.Value < 0 || *upd.Age.Value > maxAge) {
			return nil, models.NewValidationError(fmt.Sprintf("Age must be between 0 and %d", maxAge))
		}
		user.Age = upd.Age.Value
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) ChangeRole(ctx context.Context, userID uint, role string) (models.Role, error) {
	role = strings.TrimSpace(role)
	if !validation.IsValidRole(role) {
		return "", models.NewValidationError("Role must be one of: client, seller, both")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	user.Role = models.Role(role)
	if err := s.users.Update(ctx, user); err != nil {
		return "", err
	}
	return user.Role, nil
}

// avatarKey is the only object a user's avatar may refer to.
func avatarKey(userID uint) string {
	return fmt.Sprintf("avatars/%d.webp", userID)
}

// ownsAvatar reports whether url names the user's own avatar object.
func (s *UserService) ownsAvatar(userID uint, url string) bool {
	key, ok := s.store.KeyFromURL(url)
	return ok && key == avatarKey(userID)
}

// UploadAvatar stores a 256×256 WebP avatar and points the profile at it.
func (s *UserService) UploadAvatar(ctx context.Context, userID uint, f UploadFile) (url string, err error) {
	defer func() {
		observability.ImageUploads.WithLabelValues("avatar", observability.Outcome(err)).Inc()
	}()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	body, err := s.images.Cover(f, AvatarSize, AvatarSize)
	if err != nil {
		return "", err
	}

	key := avatarKey(user.ID)
	url, err = s.store.Put(ctx, key, body, webpContentType)
	if err != nil {
		return "", models.NewStorageError(err)
	}

	// The object under key is only orphaned when the profile did not point at it yet.
	hadOwn := s.ownsAvatar(user.ID, user.Avatar)
	user.Avatar = url
	if err = s.users.Update(ctx, user); err != nil {
		if !hadOwn {
			s.removeObject(ctx, key)
		}
		return "", err
	}
	return url, nil
}

// DeleteAvatar clears the field and removes the user's own avatar object.
// Objects under any other key are never touched.
func (s *UserService) DeleteAvatar(ctx context.Context, userID uint) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if s.ownsAvatar(user.ID, user.Avatar) {
		if err := s.store.Delete(ctx, avatarKey(user.ID)); err != nil {
			return models.NewStorageError(err)
		}
	}
	user.Avatar = ""
	return s.users.Update(ctx, user)
}

func (s *UserService) removeObject(ctx context.Context, key string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to delete avatar object",
			slog.String("key", key), slog.String("error", err.Error()))
	}
}
