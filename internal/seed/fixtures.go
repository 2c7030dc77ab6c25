package seed

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"bazaar/internal/auth"
	"bazaar/internal/models"
	"bazaar/internal/validation"

	"gopkg.in/yaml.v3"
)

// Fixtures is a hand-written data set of users and their ads.
type Fixtures struct {
	Users []UserFixture `yaml:"users"`
}

// UserFixture describes one account. Empty password means DefaultPassword.
type UserFixture struct {
	Username  string      `yaml:"username"`
	Email     string      `yaml:"email"`
	Password  string      `yaml:"password"`
	Phone     string      `yaml:"phone"`
	FirstName string      `yaml:"firstName"`
	LastName  string      `yaml:"lastName"`
	City      string      `yaml:"city"`
	Age       *int        `yaml:"age"`
	Timezone  string      `yaml:"timezone"`
	Role      string      `yaml:"role"`
	Ads       []AdFixture `yaml:"ads"`
}

// AdFixture describes one ad of the enclosing user.
type AdFixture struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Price       float64  `yaml:"price"`
	Amount      *float64 `yaml:"amount"`
	Type        string   `yaml:"type"`
	PaymentType string   `yaml:"paymentType"`
	Photos      []string `yaml:"photos"`
}

// LoadFixtures reads and validates a YAML fixture file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes YAML fixtures, rejecting unknown keys and values the
// API itself would refuse.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var fx Fixtures
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (fx *Fixtures) validate() error {
	seen := make(map[string]bool)
	for i, u := range fx.Users {
		where := fmt.Sprintf("users[%d]", i)
		if !validation.IsValidUsername(u.Username) {
			return fmt.Errorf("%s: invalid username %q", where, u.Username)
		}
		if !validation.IsValidEmail(strings.ToLower(u.Email)) {
			return fmt.Errorf("%s: invalid email %q", where, u.Email)
		}
		if !validation.IsValidPhone(u.Phone) {
			return fmt.Errorf("%s: invalid phone %q", where, u.Phone)
		}
		if u.Role != "" && !validation.IsValidRole(u.Role) {
			return fmt.Errorf("%s: invalid role %q", where, u.Role)
		}
		if u.Password != "" {
			if err := validation.ValidatePassword(u.Password); err != nil {
				return fmt.Errorf("%s: %w", where, err)
			}
		}
		for _, key := range []string{"u:" + u.Username, "e:" + strings.ToLower(u.Email), "p:" + u.Phone} {
			if seen[key] {
				return fmt.Errorf("%s: duplicate %s", where, key[2:])
			}
			seen[key] = true
		}

		for j, ad := range u.Ads {
			where := fmt.Sprintf("users[%d].ads[%d]", i, j)
			if !validation.RuneLenBetween(ad.Title, validation.TitleMinLen, validation.TitleMaxLen) {
				return fmt.Errorf("%s: title must be between %d and %d characters", where, validation.TitleMinLen, validation.TitleMaxLen)
			}
			if !validation.RuneLenBetween(ad.Description, validation.DescriptionMinLen, validation.DescriptionMaxLen) {
				return fmt.Errorf("%s: description must be between %d and %d characters", where, validation.DescriptionMinLen, validation.DescriptionMaxLen)
			}
			if !validation.IsValidAdType(ad.Type) {
				return fmt.Errorf("%s: invalid type %q", where, ad.Type)
			}
			if ad.PaymentType != "" && !validation.IsValidPaymentType(ad.PaymentType) {
				return fmt.Errorf("%s: invalid paymentType %q", where, ad.PaymentType)
			}
			if !validation.IsValidAmount(ad.Price) || (ad.Amount != nil && !validation.IsValidAmount(*ad.Amount)) {
				return fmt.Errorf("%s: price and amount must be non-negative", where)
			}
			if len(ad.Photos) > models.MaxAdPhotos {
				return fmt.Errorf("%s: at most %d photos", where, models.MaxAdPhotos)
			}
		}
	}
	return nil
}

// ApplyFixtures persists every fixture user and ad. Passwords equal to
// DefaultPassword reuse the run's hash.
func (s *Seeder) ApplyFixtures(ctx context.Context, fx *Fixtures) (users, ads int, err error) {
	for _, u := range fx.Users {
		hash := s.hash
		if u.Password != "" && u.Password != DefaultPassword {
			if hash, err = auth.HashPassword(u.Password); err != nil {
				return users, ads, err
			}
		}
		role := models.RoleClient
		if u.Role != "" {
			role = models.Role(u.Role)
		}

		user := &models.User{
			Username:  u.Username,
			Email:     strings.ToLower(u.Email),
			Password:  hash,
			Phone:     u.Phone,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			City:      u.City,
			Age:       u.Age,
			Timezone:  u.Timezone,
			Role:      role,
		}
		if err = s.users.Create(ctx, user); err != nil {
			return users, ads, fmt.Errorf("create user %s: %w", u.Username, err)
		}
		users++

		for _, a := range u.Ads {
			photos := a.Photos
			if photos == nil {
				photos = []string{}
			}
			ad := &models.Ad{
				Title:       a.Title,
				Description: a.Description,
				Price:       a.Price,
				Amount:      a.Amount,
				Type:        models.AdType(a.Type),
				PaymentType: models.PaymentType(a.PaymentType),
				AuthorID:    user.ID,
				Photos:      photos,
			}
			if err = s.ads.Create(ctx, ad); err != nil {
				return users, ads, fmt.Errorf("create ad %q: %w", a.Title, err)
			}
			ads++
		}
	}
	return users, ads, nil
}
