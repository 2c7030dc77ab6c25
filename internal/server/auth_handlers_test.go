package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bazaar/internal/auth"
	"bazaar/internal/models"
	"bazaar/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockUserRepository is a mock of the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) user(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.user(m.Called(ctx, email))
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.user(m.Called(ctx, username))
}

func (m *MockUserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return m.user(m.Called(ctx, phone))
}

func (m *MockUserRepository) FindByLogin(ctx context.Context, identifier string) (*models.User, error) {
	return m.user(m.Called(ctx, identifier))
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func mockAuthApp(t *testing.T, repo *MockUserRepository) *fiber.App {
	t.Helper()
	s := &Server{
		config:      testConfig(),
		userRepo:    repo,
		authService: service.NewAuthService(repo, newTestTokens(t)),
	}
	app := fiber.New()
	app.Post("/register", s.Register)
	app.Post("/login", s.Login)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func(m *MockUserRepository)
		expectedStatus int
		expectedMsg    string
	}{
		{
			name: "Success",
			body: map[string]string{
				"username": "  testuser ",
				"email":    "Test@Example.com",
				"password": "secret123",
				"phone":    "+79001234567",
			},
			mockSetup: func(m *MockUserRepository) {
				m.On("GetByEmail", mock.Anything, "test@example.com").Return(nil, nil)
				m.On("GetByPhone", mock.Anything, "+79001234567").Return(nil, nil)
				m.On("GetByUsername", mock.Anything, "testuser").Return(nil, nil)
				m.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
					return u.Username == "testuser" && u.Email == "test@example.com" &&
						u.Role == models.RoleClient && u.Password != "secret123"
				})).Run(func(args mock.Arguments) {
					args.Get(1).(*models.User).ID = 11
				}).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "Duplicate Phone",
			body: map[string]string{
				"username": "testuser",
				"email":    "new@example.com",
				"password": "secret123",
				"phone":    "+79001234567",
			},
			mockSetup: func(m *MockUserRepository) {
				m.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, nil)
				m.On("GetByPhone", mock.Anything, "+79001234567").Return(&models.User{ID: 1}, nil)
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "User already exists",
		},
		{
			name: "Short Password",
			body: map[string]string{
				"username": "testuser",
				"email":    "new@example.com",
				"password": "123",
				"phone":    "+79001234567",
			},
			mockSetup:      func(m *MockUserRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Database Down",
			body: map[string]string{
				"username": "testuser",
				"email":    "new@example.com",
				"password": "secret123",
				"phone":    "+79001234567",
			},
			mockSetup: func(m *MockUserRepository) {
				m.On("GetByEmail", mock.Anything, "new@example.com").
					Return(nil, models.NewInternalError(errors.New("connection refused")))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			tt.mockSetup(repo)
			app := mockAuthApp(t, repo)

			resp := postJSON(t, app, "/register", tt.body)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.expectedStatus == http.StatusCreated {
				assert.Equal(t, float64(11), body["id"])
				assert.Equal(t, "testuser", body["username"])
				assert.NotEmpty(t, body["token"])
			}
			if tt.expectedMsg != "" {
				assert.Equal(t, tt.expectedMsg, body["message"])
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestLogin(t *testing.T) {
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)
	stored := &models.User{ID: 5, Username: "testuser", Email: "test@example.com", Password: hash}

	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func(m *MockUserRepository)
		expectedStatus int
	}{
		{
			name: "By Username Field",
			body: map[string]string{"username": "testuser", "password": "secret123"},
			mockSetup: func(m *MockUserRepository) {
				m.On("FindByLogin", mock.Anything, "testuser").Return(stored, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "By Email Field",
			body: map[string]string{"email": "test@example.com", "password": "secret123"},
			mockSetup: func(m *MockUserRepository) {
				m.On("FindByLogin", mock.Anything, "test@example.com").Return(stored, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Wrong Password",
			body: map[string]string{"username_or_email": "testuser", "password": "nope-nope"},
			mockSetup: func(m *MockUserRepository) {
				m.On("FindByLogin", mock.Anything, "testuser").Return(stored, nil)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "Unknown User",
			body: map[string]string{"username_or_email": "ghost", "password": "secret123"},
			mockSetup: func(m *MockUserRepository) {
				m.On("FindByLogin", mock.Anything, "ghost").Return(nil, nil)
			},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			tt.mockSetup(repo)
			app := mockAuthApp(t, repo)

			resp := postJSON(t, app, "/login", tt.body)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, float64(5), body["id"])
				assert.Equal(t, "bearer", body["token_type"])
				assert.NotEmpty(t, body["access_token"])
			} else {
				assert.Equal(t, "Invalid credentials", body["message"])
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestLoginRequest_Identifier(t *testing.T) {
	assert.Equal(t, "a", loginRequest{UsernameOrEmail: " a ", Username: "b"}.identifier())
	assert.Equal(t, "b", loginRequest{Username: "b", Email: "c"}.identifier())
	assert.Equal(t, "c", loginRequest{Email: "c"}.identifier())
	assert.Empty(t, loginRequest{}.identifier())
}
