package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bazaar/internal/auth"
	"bazaar/internal/config"
	"bazaar/internal/models"
	"bazaar/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret-that-is-long-enough-1234"

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:            testSecret,
		JWTTTLHours:          1,
		Port:                 "0",
		Env:                  "test",
		AllowedOrigins:       "*",
		ImageMaxUploadSizeMB: 5,
	}
}

func newTestTokens(t *testing.T) *auth.TokenManager {
	t.Helper()
	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: testSecret})
	require.NoError(t, err)
	return tokens
}

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Ad{}))
	return db
}

type testEnv struct {
	server *Server
	app    *fiber.App
	store  *testutil.MemoryStore
	users  int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := testutil.NewMemoryStore()
	s, err := NewServerWithDeps(testConfig(), setupSQLite(t), nil, store)
	require.NoError(t, err)
	return &testEnv{server: s, app: s.App(), store: store}
}

// do sends a JSON request and decodes the JSON response into out when given.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(t, req, out)
}

func (e *testEnv) send(t *testing.T, req *http.Request, out any) int {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// register creates an account and returns its id and token.
func (e *testEnv) register(t *testing.T, username string) (uint, string) {
	t.Helper()
	e.users++
	var res registerResponse
	status := e.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
		"phone":    fmt.Sprintf("+7900%07d", e.users),
	}, &res)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, res.Token)
	return res.ID, res.Token
}

func (e *testEnv) createAd(t *testing.T, token string, body fiber.Map) models.AdResponse {
	t.Helper()
	var ad models.AdResponse
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/ads", token, body, &ad))
	return ad
}

func multipartRequest(t *testing.T, path, token, field string, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name)}
		h["Content-Type"] = []string{"image/png"}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestRegisterThenMe(t *testing.T) {
	e := newTestEnv(t)
	id, token := e.register(t, "alice")

	var me map[string]any
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/auth/me", token, nil, &me))
	assert.Equal(t, float64(id), me["id"])
	assert.Equal(t, "alice", me["username"])
	assert.Equal(t, "alice@example.com", me["email"])
	assert.Equal(t, "client", me["role"])
	assert.NotContains(t, me, "password")
}

func TestMe_RequiresToken(t *testing.T) {
	e := newTestEnv(t)

	var body models.ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/auth/me", "", nil, &body))
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/auth/me", "not-a-jwt", nil, &body))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")

	var body models.ErrorResponse
	status := e.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"username": "alice2",
		"email":    "ALICE@example.com",
		"password": "secret123",
		"phone":    "+79990001122",
	}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "User already exists", body.Message)

	var count int64
	require.NoError(t, e.server.db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLogin_UniformFailures(t *testing.T) {
	e := newTestEnv(t)
	id, _ := e.register(t, "alice")

	var ok loginResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"username_or_email": "Alice@Example.com",
		"password":          "secret123",
	}, &ok))
	assert.Equal(t, id, ok.ID)
	assert.Equal(t, "bearer", ok.TokenType)
	assert.NotEmpty(t, ok.AccessToken)

	attempts := []fiber.Map{
		{"username_or_email": "alice", "password": "wrong-pass"},
		{"username_or_email": "nobody", "password": "secret123"},
		{"email": "alice@example.com", "password": ""},
	}
	for _, body := range attempts {
		var res models.ErrorResponse
		assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/api/auth/login", "", body, &res))
		assert.Equal(t, "Invalid credentials", res.Message)
	}
}

func TestAds_CreateAndGet(t *testing.T) {
	e := newTestEnv(t)
	id, token := e.register(t, "seller")

	created := e.createAd(t, token, fiber.Map{
		"title":       "Bike <script>alert(1)</script>repair",
		"description": "Fixing bikes of any kind",
		"price":       500,
		"type":        "offer",
		"paymentType": "hour",
	})
	assert.NotContains(t, created.Title, "<script")
	assert.Equal(t, id, created.AuthorID)
	assert.Equal(t, "seller", created.Author)
	assert.Equal(t, []string{}, created.Photos)

	var got models.AdResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, fmt.Sprintf("/api/ads/%d", created.ID), "", nil, &got))
	assert.Equal(t, created.Title, got.Title)

	var missing models.ErrorResponse
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/ads/999", "", nil, &missing))
	assert.Equal(t, "Ad not found", missing.Message)
}

func TestAds_CreateRejectsBadInput(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.register(t, "seller")

	bodies := []fiber.Map{
		{"title": "Bike", "description": "desc", "type": "sale"},
		{"title": "Bike", "description": "desc", "type": "offer", "paymentType": "week"},
		{"title": "Bike", "description": "desc", "type": "offer", "price": -1},
		{"title": "Bi", "description": "desc", "type": "offer"},
	}
	for _, body := range bodies {
		var res models.ErrorResponse
		assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/ads", token, body, &res))
		assert.Equal(t, models.CodeValidation, res.Code)
	}

	var ads []models.AdResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/ads", "", nil, &ads))
	assert.Empty(t, ads)

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/api/ads", "", bodies[0], nil))
}

func TestAds_WrongTypedFieldsNameTheField(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.register(t, "seller")
	ad := e.createAd(t, token, fiber.Map{"title": "Bike", "description": "Red bike", "type": "offer"})

	cases := []struct {
		name string
		body fiber.Map
		msg  string
	}{
		{"amount as text", fiber.Map{"title": "Bike", "description": "desc", "type": "offer", "amount": "abc"}, "Amount must be a non-negative number"},
		{"price as text", fiber.Map{"title": "Bike", "description": "desc", "type": "offer", "price": "x"}, "Price must be a non-negative number"},
		{"type as number", fiber.Map{"title": "Bike", "description": "desc", "type": 5}, "Type must be one of: request, offer"},
		{"title as number", fiber.Map{"title": 7, "description": "desc", "type": "offer"}, "Title must be a string"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var res models.ErrorResponse
			assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/ads", token, tc.body, &res))
			assert.Equal(t, models.CodeValidation, res.Code)
			assert.Equal(t, tc.msg, res.Message)
		})
	}

	var res models.ErrorResponse
	path := fmt.Sprintf("/api/ads/%d", ad.ID)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPut, path, token, fiber.Map{"paymentType": true}, &res))
	assert.Equal(t, "Payment type must be one of: once, day, hour, month", res.Message)

	req := httptest.NewRequest(http.MethodPost, "/api/ads", strings.NewReader(`{"title":`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	res = models.ErrorResponse{}
	assert.Equal(t, http.StatusBadRequest, e.send(t, req, &res))
	assert.Equal(t, "Invalid request body", res.Message)
}

func TestAds_UpdateByOtherUserLeavesAdUnchanged(t *testing.T) {
	e := newTestEnv(t)
	_, owner := e.register(t, "owner")
	_, intruder := e.register(t, "intruder")
	ad := e.createAd(t, owner, fiber.Map{"title": "Guitar lessons", "description": "Weekly lessons", "type": "offer"})

	path := fmt.Sprintf("/api/ads/%d", ad.ID)
	var res models.ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPut, path, intruder, fiber.Map{"title": "Hijacked"}, &res))
	assert.Equal(t, "User not authorized", res.Message)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodDelete, path, intruder, nil, nil))

	var got models.AdResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, path, "", nil, &got))
	assert.Equal(t, "Guitar lessons", got.Title)

	var updated models.AdResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPut, path, owner, fiber.Map{"title": "Piano lessons", "amount": 3}, &updated))
	assert.Equal(t, "Piano lessons", updated.Title)
	require.NotNil(t, updated.Amount)
	assert.InDelta(t, 3.0, *updated.Amount, 1e-9)

	var msg map[string]string
	require.Equal(t, http.StatusOK, e.do(t, http.MethodDelete, path, owner, nil, &msg))
	assert.Equal(t, "Ad removed", msg["message"])
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, path, "", nil, nil))
}

func TestAds_ListFilters(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.register(t, "seller")

	e.createAd(t, token, fiber.Map{"title": "Daily cleaning", "description": "Flat cleaning", "type": "offer", "paymentType": "day", "amount": 10})
	e.createAd(t, token, fiber.Map{"title": "Cheap cleaning", "description": "Flat cleaning", "type": "offer", "paymentType": "day", "amount": 2})
	e.createAd(t, token, fiber.Map{"title": "Hourly tutoring", "description": "Math tutoring", "type": "offer", "paymentType": "hour", "amount": 20})

	var ads []models.AdResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/ads?paymentType=day&minAmount=5", "", nil, &ads))
	require.Len(t, ads, 1)
	assert.Equal(t, "Daily cleaning", ads[0].Title)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/ads?author=me", token, nil, &ads))
	assert.Len(t, ads, 3)
	assert.Equal(t, "Hourly tutoring", ads[0].Title, "newest first")

	var res models.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/ads?minAmount=lots", "", nil, &res))
	assert.Equal(t, "Invalid minAmount", res.Message)
}

func TestAds_Photos(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.register(t, "seller")
	ad := e.createAd(t, token, fiber.Map{"title": "Camera", "description": "Old film camera", "type": "offer"})
	path := fmt.Sprintf("/api/ads/%d/photos", ad.ID)

	var res photoUploadResponse
	req := multipartRequest(t, path, token, "photos", map[string][]byte{"front.png": testutil.TinyPNG(t, 40, 30)})
	require.Equal(t, http.StatusOK, e.send(t, req, &res))
	require.Len(t, res.Photos, 1)
	assert.Equal(t, res.Photos, res.AllPhotos)
	require.Len(t, e.store.Keys(), 1)

	key := e.store.Keys()[0]
	name := key[len(fmt.Sprintf("ads/%d/", ad.ID)):]

	var msg map[string]string
	require.Equal(t, http.StatusOK, e.do(t, http.MethodDelete, path+"/"+name, token, nil, &msg))
	assert.Equal(t, "Photo removed", msg["message"])
	assert.Empty(t, e.store.Keys())

	var got models.AdResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, fmt.Sprintf("/api/ads/%d", ad.ID), "", nil, &got))
	assert.Empty(t, got.Photos)

	var missing models.ErrorResponse
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, path+"/"+name, token, nil, &missing))
	assert.Equal(t, "Photo not found", missing.Message)
}

func TestAds_PhotosRejectsNonImages(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.register(t, "seller")
	ad := e.createAd(t, token, fiber.Map{"title": "Camera", "description": "Old film camera", "type": "offer"})

	var res models.ErrorResponse
	req := multipartRequest(t, fmt.Sprintf("/api/ads/%d/photos", ad.ID), token, "photos", map[string][]byte{"notes.png": []byte("plain text")})
	assert.Equal(t, http.StatusBadRequest, e.send(t, req, &res))
	assert.Empty(t, e.store.Keys())
}

func TestUsers_ProfileFlow(t *testing.T) {
	e := newTestEnv(t)
	id, token := e.register(t, "bob")

	var updated struct {
		Message string      `json:"message"`
		User    models.User `json:"user"`
	}
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPut, "/api/users/me", token, fiber.Map{
		"firstName": "Bob",
		"city":      "Omsk",
		"age":       40,
	}, &updated))
	assert.Equal(t, "Profile updated", updated.Message)
	assert.Equal(t, "Omsk", updated.User.City)

	var res models.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPut, "/api/users/me", token, fiber.Map{"email": "x@y.z"}, &res))
	assert.Equal(t, "email cannot be changed here", res.Message)

	var role map[string]string
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPut, "/api/users/me/role", token, fiber.Map{"role": "both"}, &role))
	assert.Equal(t, "both", role["role"])
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPut, "/api/users/me/role", token, fiber.Map{"role": "admin"}, nil))

	var profile map[string]any
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", id), "", nil, &profile))
	assert.Equal(t, "Bob", profile["firstName"])
	assert.NotContains(t, profile, "email")
	assert.NotContains(t, profile, "phone")
	assert.NotContains(t, profile, "role")

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/users/999", "", nil, nil))
}

func TestUsers_Avatar(t *testing.T) {
	e := newTestEnv(t)
	id, token := e.register(t, "carol")

	var res map[string]string
	req := multipartRequest(t, "/api/users/me/avatar", token, "avatar", map[string][]byte{"me.png": testutil.TinyPNG(t, 300, 200)})
	require.Equal(t, http.StatusOK, e.send(t, req, &res))
	assert.Equal(t, e.store.PublicURL(fmt.Sprintf("avatars/%d.webp", id)), res["avatar"])

	require.Equal(t, http.StatusOK, e.do(t, http.MethodDelete, "/api/users/me/avatar", token, nil, &res))
	assert.Equal(t, "Avatar removed", res["message"])
	assert.Empty(t, e.store.Keys())
}

func TestUsers_AvatarCannotPointAtOtherObjects(t *testing.T) {
	e := newTestEnv(t)
	_, victim := e.register(t, "victim")
	attackerID, attacker := e.register(t, "mallory")

	ad := e.createAd(t, victim, fiber.Map{"title": "Sofa", "description": "Green velvet sofa", "type": "offer"})
	var uploaded struct {
		Photos []string `json:"photos"`
	}
	req := multipartRequest(t, fmt.Sprintf("/api/ads/%d/photos", ad.ID), victim, "photos", map[string][]byte{"front.png": testutil.TinyPNG(t, 40, 40)})
	require.Equal(t, http.StatusOK, e.send(t, req, &uploaded))
	require.Len(t, uploaded.Photos, 1)
	photoKey, ok := e.store.KeyFromURL(uploaded.Photos[0])
	require.True(t, ok)

	var res models.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPut, "/api/users/me", attacker, fiber.Map{"avatar": uploaded.Photos[0]}, &res))
	assert.Equal(t, "avatar cannot be changed here", res.Message)

	req = multipartRequest(t, "/api/users/me/avatar", attacker, "avatar", map[string][]byte{"me.png": testutil.TinyPNG(t, 64, 64)})
	require.Equal(t, http.StatusOK, e.send(t, req, nil))
	require.Equal(t, http.StatusOK, e.do(t, http.MethodDelete, "/api/users/me/avatar", attacker, nil, nil))

	assert.Equal(t, []string{fmt.Sprintf("avatars/%d.webp", attackerID)}, e.store.Deleted())
	assert.Equal(t, []string{photoKey}, e.store.Keys())

	var got models.AdResponse
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, fmt.Sprintf("/api/ads/%d", ad.ID), "", nil, &got))
	assert.Equal(t, uploaded.Photos, got.Photos)
}

func TestNotFoundHandler(t *testing.T) {
	e := newTestEnv(t)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/nope?x=1", "", nil, &body))
	assert.Equal(t, "Not Found - /api/nope?x=1", body["message"])
}

func TestHealthChecks(t *testing.T) {
	e := newTestEnv(t)

	var live map[string]any
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health/live", "", nil, &live))
	assert.Equal(t, "up", live["status"])

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health/ready", "", nil, &ready))
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, "unavailable", ready.Checks["redis"])
}
