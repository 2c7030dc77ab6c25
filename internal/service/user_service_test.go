package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bazaar/internal/models"
	"bazaar/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profileUser() *models.User {
	age := 30
	return &models.User{
		ID:        7,
		Username:  "ivan",
		Email:     "ivan@example.com",
		FirstName: "Ivan",
		LastName:  "Petrov",
		City:      "Kazan",
		Age:       &age,
		Role:      models.RoleClient,
	}
}

func TestDecodeProfileUpdate(t *testing.T) {
	upd, err := DecodeProfileUpdate([]byte(`{"firstName":"Иван","age":null,"city":"Moscow"}`))
	require.NoError(t, err)
	assert.True(t, upd.FirstName.Present)
	assert.Equal(t, "Иван", *upd.FirstName.Value)
	assert.True(t, upd.Age.Present)
	assert.Nil(t, upd.Age.Value)
	assert.False(t, upd.LastName.Present)

	tests := []struct {
		body string
		msg  string
	}{
		{`{"email":"x@y.z"}`, "email cannot be changed here"},
		{`{"username":"new"}`, "username cannot be changed here"},
		{`{"role":"seller"}`, "role cannot be changed here"},
		{`{"avatar":"https://cdn.test/ads/1/photo.webp"}`, "avatar cannot be changed here"},
		{`{"password":"hunter22"}`, "Unknown field: password"},
		{`{"age":"old"}`, "Invalid value for age"},
		{`[1,2]`, "Invalid request body"},
		{`null`, "Invalid request body"},
	}
	for _, tt := range tests {
		_, err := DecodeProfileUpdate([]byte(tt.body))
		appErr := assertAppErrorCode(t, err, models.CodeValidation)
		assert.Equal(t, tt.msg, appErr.Message, tt.body)
	}
}

func TestUserService_GetPublicProfile(t *testing.T) {
	svc := NewUserService(userRepoWith(profileUser()), testutil.NewMemoryStore(), NewImageProcessor(0))

	profile, err := svc.GetPublicProfile(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "ivan", profile.Username)
	assert.Equal(t, "Kazan", profile.City)

	_, err = svc.GetPublicProfile(context.Background(), 8)
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestUserService_UpdateSelf(t *testing.T) {
	user := profileUser()
	repo := userRepoWith(user)
	var saved *models.User
	repo.updateFn = func(_ context.Context, u *models.User) error {
		saved = u
		return nil
	}
	svc := NewUserService(repo, testutil.NewMemoryStore(), NewImageProcessor(0))

	upd, err := DecodeProfileUpdate([]byte(`{"firstName":" <b>Ivan</b> ","city":null,"age":31}`))
	require.NoError(t, err)

	got, err := svc.UpdateSelf(context.Background(), 7, upd)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "Ivan", got.FirstName)
	assert.Empty(t, got.City)
	assert.Equal(t, 31, *got.Age)
	assert.Equal(t, "Petrov", got.LastName, "absent fields are kept")
	assert.Equal(t, "ivan@example.com", got.Email)
}

func TestUserService_UpdateSelf_Validation(t *testing.T) {
	tests := map[string]string{
		"long first name": `{"firstName":"` + strings.Repeat("a", 33) + `"}`,
		"long city":       `{"city":"` + strings.Repeat("c", 65) + `"}`,
		"age too high":    `{"age":121}`,
		"negative age":    `{"age":-1}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			repo := userRepoWith(profileUser())
			repo.updateFn = func(_ context.Context, _ *models.User) error {
				t.Fatal("update must not be called")
				return nil
			}
			svc := NewUserService(repo, testutil.NewMemoryStore(), NewImageProcessor(0))

			upd, err := DecodeProfileUpdate([]byte(body))
			require.NoError(t, err)
			_, err = svc.UpdateSelf(context.Background(), 7, upd)
			assertValidationError(t, err)
		})
	}
}

func TestUserService_ChangeRole(t *testing.T) {
	user := profileUser()
	svc := NewUserService(userRepoWith(user), testutil.NewMemoryStore(), NewImageProcessor(0))

	role, err := svc.ChangeRole(context.Background(), 7, "seller")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSeller, role)
	assert.Equal(t, models.RoleSeller, user.Role)

	_, err = svc.ChangeRole(context.Background(), 7, "admin")
	assertValidationError(t, err)
	assert.Equal(t, models.RoleSeller, user.Role)
}

func TestUserService_UploadAvatar(t *testing.T) {
	store := testutil.NewMemoryStore()
	_, err := store.Put(context.Background(), "ads/3/photo.webp", []byte("x"), "image/webp")
	require.NoError(t, err)
	user := profileUser()
	user.Avatar = store.PublicURL("ads/3/photo.webp")
	svc := NewUserService(userRepoWith(user), store, NewImageProcessor(0))

	url, err := svc.UploadAvatar(context.Background(), 7, UploadFile{
		Filename: "me.jpg", ContentType: "image/jpeg", Content: testutil.TinyJPEG(t, 500, 300),
	})
	require.NoError(t, err)
	assert.Equal(t, store.PublicURL("avatars/7.webp"), url)
	assert.Equal(t, url, user.Avatar)
	assert.Empty(t, store.Deleted(), "objects outside avatars/7.webp are never removed")
	_, ok := store.Object("ads/3/photo.webp")
	assert.True(t, ok)

	body, ok := store.Object("avatars/7.webp")
	require.True(t, ok)
	w, h := webpSize(t, body)
	assert.Equal(t, AvatarSize, w)
	assert.Equal(t, AvatarSize, h)
}

func TestUserService_UploadAvatar_Failures(t *testing.T) {
	t.Run("save fails", func(t *testing.T) {
		store := testutil.NewMemoryStore()
		repo := userRepoWith(profileUser())
		repo.updateFn = func(_ context.Context, _ *models.User) error {
			return models.NewInternalError(errors.New("db down"))
		}
		svc := NewUserService(repo, store, NewImageProcessor(0))

		_, err := svc.UploadAvatar(context.Background(), 7, UploadFile{ContentType: "image/png", Content: testutil.TinyPNG(t, 64, 64)})
		assertAppErrorCode(t, err, models.CodeInternal)
		assert.Empty(t, store.Keys())
	})

	t.Run("save fails keeps the current avatar", func(t *testing.T) {
		store := testutil.NewMemoryStore()
		_, err := store.Put(context.Background(), "avatars/7.webp", []byte("old"), "image/webp")
		require.NoError(t, err)
		user := profileUser()
		user.Avatar = store.PublicURL("avatars/7.webp")
		repo := userRepoWith(user)
		repo.updateFn = func(_ context.Context, _ *models.User) error {
			return models.NewInternalError(errors.New("db down"))
		}
		svc := NewUserService(repo, store, NewImageProcessor(0))

		_, err = svc.UploadAvatar(context.Background(), 7, UploadFile{ContentType: "image/png", Content: testutil.TinyPNG(t, 64, 64)})
		assertAppErrorCode(t, err, models.CodeInternal)
		assert.Equal(t, []string{"avatars/7.webp"}, store.Keys())
	})

	t.Run("storage down", func(t *testing.T) {
		store := testutil.NewMemoryStore()
		store.FailPuts()
		svc := NewUserService(userRepoWith(profileUser()), store, NewImageProcessor(0))

		_, err := svc.UploadAvatar(context.Background(), 7, UploadFile{ContentType: "image/png", Content: testutil.TinyPNG(t, 64, 64)})
		assertAppErrorCode(t, err, models.CodeStorage)
	})

	t.Run("not an image", func(t *testing.T) {
		svc := NewUserService(userRepoWith(profileUser()), testutil.NewMemoryStore(), NewImageProcessor(0))
		_, err := svc.UploadAvatar(context.Background(), 7, UploadFile{ContentType: "text/plain", Content: []byte("hi")})
		assertValidationError(t, err)
	})
}

func TestUserService_DeleteAvatar(t *testing.T) {
	store := testutil.NewMemoryStore()
	_, err := store.Put(context.Background(), "avatars/7.webp", []byte("x"), "image/webp")
	require.NoError(t, err)

	user := profileUser()
	user.Avatar = store.PublicURL("avatars/7.webp")
	svc := NewUserService(userRepoWith(user), store, NewImageProcessor(0))

	require.NoError(t, svc.DeleteAvatar(context.Background(), 7))
	assert.Empty(t, user.Avatar)
	assert.Empty(t, store.Keys())

	user.Avatar = "https://gravatar.example/me.png"
	require.NoError(t, svc.DeleteAvatar(context.Background(), 7))
	assert.Empty(t, user.Avatar)
	assert.Equal(t, []string{"avatars/7.webp"}, store.Deleted())
}

func TestUserService_DeleteAvatar_LeavesForeignObjects(t *testing.T) {
	store := testutil.NewMemoryStore()
	for _, key := range []string{"ads/1/front.webp", "avatars/8.webp"} {
		_, err := store.Put(context.Background(), key, []byte("x"), "image/webp")
		require.NoError(t, err)
	}

	for _, key := range []string{"ads/1/front.webp", "avatars/8.webp"} {
		user := profileUser()
		user.Avatar = store.PublicURL(key)
		svc := NewUserService(userRepoWith(user), store, NewImageProcessor(0))

		require.NoError(t, svc.DeleteAvatar(context.Background(), 7))
		assert.Empty(t, user.Avatar)
	}
	assert.Empty(t, store.Deleted())
	assert.ElementsMatch(t, []string{"ads/1/front.webp", "avatars/8.webp"}, store.Keys())
}
