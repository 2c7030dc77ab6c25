package seed

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"bazaar/internal/models"
	"bazaar/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
)

// DefaultPassword is the password of every generated user.
const DefaultPassword = "password123"

var (
	adTypes      = []string{string(models.AdTypeOffer), string(models.AdTypeRequest)}
	paymentTypes = []string{"", string(models.PaymentOnce), string(models.PaymentDay), string(models.PaymentHour), string(models.PaymentMonth)}
	roles        = []string{string(models.RoleClient), string(models.RoleSeller), string(models.RoleBoth)}
)

// Factory builds users and ads with fake data and persists them through the
// repositories.
type Factory struct {
	users repository.UserRepository
	ads   repository.AdRepository
	faker *gofakeit.Faker
	// hash is the bcrypt hash of DefaultPassword, computed once per run.
	hash string
}

// NewFactory creates a Factory. A zero seed picks a random one.
func NewFactory(users repository.UserRepository, ads repository.AdRepository, passwordHash string, seed int64) *Factory {
	return &Factory{
		users: users,
		ads:   ads,
		faker: gofakeit.New(seed),
		hash:  passwordHash,
	}
}

// BuildUser returns an unsaved user. n keeps generated usernames, emails and
// phones unique within one run.
func (f *Factory) BuildUser(n int) *models.User {
	base := strings.ToLower(strings.ReplaceAll(f.faker.Username(), " ", ""))
	username := truncate(base, 24) + fmt.Sprintf("%d", n)
	age := f.faker.Number(18, 80)

	return &models.User{
		Username:  username,
		Email:     username + "@example.com",
		Password:  f.hash,
		Phone:     fmt.Sprintf("+79%02d%07d", f.faker.Number(0, 99), n),
		FirstName: truncate(f.faker.FirstName(), 32),
		LastName:  truncate(f.faker.LastName(), 32),
		City:      truncate(f.faker.City(), 64),
		Age:       &age,
		Timezone:  truncate(f.faker.TimeZoneRegion(), 64),
		Role:      models.Role(f.faker.RandomString(roles)),
	}
}

// CreateUser builds and persists a user. Optional overrides run before saving.
func (f *Factory) CreateUser(ctx context.Context, n int, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(n)
	for _, override := range overrides {
		override(user)
	}
	if err := f.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// BuildAd returns an unsaved ad by author.
func (f *Factory) BuildAd(author *models.User) *models.Ad {
	ad := &models.Ad{
		Title:       truncate(strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 8)), "."), 128),
		Description: truncate(f.faker.Paragraph(1, 3, 12, " "), 1024),
		Price:       float64(f.faker.Number(0, 500)) * 10,
		Type:        models.AdType(f.faker.RandomString(adTypes)),
		PaymentType: models.PaymentType(f.faker.RandomString(paymentTypes)),
		AuthorID:    author.ID,
		Photos:      []string{},
	}
	if f.faker.Bool() {
		amount := float64(f.faker.Number(1, 40))
		ad.Amount = &amount
	}
	return ad
}

// CreateAd builds and persists an ad for author.
func (f *Factory) CreateAd(ctx context.Context, author *models.User, overrides ...func(*models.Ad)) (*models.Ad, error) {
	ad := f.BuildAd(author)
	for _, override := range overrides {
		override(ad)
	}
	if err := f.ads.Create(ctx, ad); err != nil {
		return nil, err
	}
	return ad, nil
}

// pick returns a pseudo-random element of users.
func (f *Factory) pick(users []*models.User) *models.User {
	return users[f.faker.Number(0, len(users)-1)]
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
