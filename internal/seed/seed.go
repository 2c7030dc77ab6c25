// Package seed fills the database with demo users and ads for development
// and testing.
package seed

import (
	"context"
	"fmt"
	"log"

	"bazaar/internal/auth"
	"bazaar/internal/cache"
	"bazaar/internal/models"
	"bazaar/internal/repository"

	"gorm.io/gorm"
)

// Options configures a generated run.
type Options struct {
	NumUsers    int
	NumAds      int
	ShouldClean bool
	// Seed makes generated data reproducible; zero picks a random seed.
	Seed int64
}

// Seeder writes demo data through the repositories.
type Seeder struct {
	db    *gorm.DB
	users repository.UserRepository
	ads   repository.AdRepository
	hash  string
}

// NewSeeder hashes DefaultPassword once and binds the repositories to db.
func NewSeeder(db *gorm.DB) (*Seeder, error) {
	hash, err := auth.HashPassword(DefaultPassword)
	if err != nil {
		return nil, err
	}
	return &Seeder{
		db:    db,
		users: repository.NewUserRepository(db),
		ads:   repository.NewAdRepository(db),
		hash:  hash,
	}, nil
}

// ClearAll removes every ad and user.
func (s *Seeder) ClearAll(ctx context.Context) error {
	log.Println("🗑️  Clearing existing data...")
	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	if err := tx.Delete(&models.Ad{}).Error; err != nil {
		return fmt.Errorf("clear ads: %w", err)
	}
	if err := tx.Delete(&models.User{}).Error; err != nil {
		return fmt.Errorf("clear users: %w", err)
	}
	if err := cache.Purge(ctx); err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}
	return nil
}

// Generate creates opts.NumUsers users and spreads opts.NumAds ads across them.
func (s *Seeder) Generate(ctx context.Context, opts Options) ([]*models.User, []*models.Ad, error) {
	log.Printf("🌱 Seeding %d users and %d ads...", opts.NumUsers, opts.NumAds)

	if opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, nil, err
		}
	}
	if opts.NumAds > 0 && opts.NumUsers <= 0 {
		return nil, nil, fmt.Errorf("ads need at least one user")
	}

	f := NewFactory(s.users, s.ads, s.hash, opts.Seed)

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser(ctx, i+1)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create users: %w", err)
		}
		users = append(users, u)
	}
	log.Printf("✓ %d users created", len(users))

	ads := make([]*models.Ad, 0, opts.NumAds)
	for i := 0; i < opts.NumAds; i++ {
		ad, err := f.CreateAd(ctx, f.pick(users))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create ads: %w", err)
		}
		ads = append(ads, ad)
	}
	log.Printf("✓ %d ads created", len(ads))

	return users, ads, nil
}
