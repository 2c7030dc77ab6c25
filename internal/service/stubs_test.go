package service

import (
	"context"
	"errors"
	"testing"

	"bazaar/internal/models"
	"bazaar/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	getByPhoneFn    func(context.Context, string) (*models.User, error)
	findByLoginFn   func(context.Context, string) (*models.User, error)
	createFn        func(context.Context, *models.User) error
	updateFn        func(context.Context, *models.User) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return s.getByPhoneFn(ctx, phone)
}
func (s *userRepoStub) FindByLogin(ctx context.Context, identifier string) (*models.User, error) {
	return s.findByLoginFn(ctx, identifier)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, _ uint) (*models.User, error) {
			return nil, models.NewNotFoundMessage("User not found")
		},
		getByEmailFn:    func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByUsernameFn: func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByPhoneFn:    func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		findByLoginFn:   func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		createFn: func(_ context.Context, u *models.User) error {
			u.ID = 1
			return nil
		},
		updateFn: func(_ context.Context, _ *models.User) error { return nil },
	}
}

// userRepoWith serves one user by ID.
func userRepoWith(user *models.User) *userRepoStub {
	repo := noopUserRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		if id != user.ID {
			return nil, models.NewNotFoundMessage("User not found")
		}
		return user, nil
	}
	return repo
}

// adRepoStub is a stub for repository.AdRepository.
type adRepoStub struct {
	listFn    func(context.Context, repository.AdFilter) ([]models.Ad, error)
	getByIDFn func(context.Context, uint) (*models.Ad, error)
	createFn  func(context.Context, *models.Ad) error
	updateFn  func(context.Context, *models.Ad) error
	deleteFn  func(context.Context, uint) error
}

func (s *adRepoStub) List(ctx context.Context, filter repository.AdFilter) ([]models.Ad, error) {
	return s.listFn(ctx, filter)
}
func (s *adRepoStub) GetByID(ctx context.Context, id uint) (*models.Ad, error) {
	return s.getByIDFn(ctx, id)
}
func (s *adRepoStub) Create(ctx context.Context, ad *models.Ad) error {
	return s.createFn(ctx, ad)
}
func (s *adRepoStub) Update(ctx context.Context, ad *models.Ad) error {
	return s.updateFn(ctx, ad)
}
func (s *adRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopAdRepo() *adRepoStub {
	return &adRepoStub{
		listFn: func(_ context.Context, _ repository.AdFilter) ([]models.Ad, error) { return nil, nil },
		getByIDFn: func(_ context.Context, _ uint) (*models.Ad, error) {
			return nil, models.NewNotFoundMessage("Ad not found")
		},
		createFn: func(_ context.Context, ad *models.Ad) error {
			ad.ID = 1
			return nil
		},
		updateFn: func(_ context.Context, _ *models.Ad) error { return nil },
		deleteFn: func(_ context.Context, _ uint) error { return nil },
	}
}

// adRepoWith serves one ad by ID.
func adRepoWith(ad *models.Ad) *adRepoStub {
	repo := noopAdRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Ad, error) {
		if id != ad.ID {
			return nil, models.NewNotFoundMessage("Ad not found")
		}
		return ad, nil
	}
	return repo
}

// assertAppErrorCode asserts that err is an AppError with the given code.
func assertAppErrorCode(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeValidation)
}

func ptr[T any](v T) *T {
	return &v
}
