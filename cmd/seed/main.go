// Command seed fills the Bazaar database with demo users and ads.
package main

import (
	"context"
	"flag"
	"log"

	"bazaar/internal/bootstrap"
	"bazaar/internal/config"
	"bazaar/internal/seed"

	"github.com/joho/godotenv"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numAds := flag.Int("ads", 60, "Number of ads to create")
	fixtures := flag.String("fixtures", "", "YAML fixture file to load instead of generated data")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed for generated data (0 = random)")
	flag.Parse()

	_ = godotenv.Load()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	db, _, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = bootstrap.Close(db) }()

	s, err := seed.NewSeeder(db)
	if err != nil {
		log.Fatalf("❌ Seeder setup failed: %v", err)
	}

	if *fixtures != "" {
		fx, err := seed.LoadFixtures(*fixtures)
		if err != nil {
			log.Fatalf("❌ Invalid fixtures: %v", err)
		}
		if *shouldClean {
			if err := s.ClearAll(ctx); err != nil {
				log.Fatalf("❌ Cleanup failed: %v", err)
			}
		}
		users, ads, err := s.ApplyFixtures(ctx, fx)
		if err != nil {
			log.Fatalf("❌ Fixture seeding failed: %v", err)
		}
		log.Printf("✓ %d users and %d ads loaded from %s", users, ads, *fixtures)
	} else {
		_, _, err := s.Generate(ctx, seed.Options{
			NumUsers:    *numUsers,
			NumAds:      *numAds,
			ShouldClean: *shouldClean,
			Seed:        *randSeed,
		})
		if err != nil {
			log.Fatalf("❌ Seeding failed: %v", err)
		}
	}

	log.Println("✨ All done! Your database is now populated with demo data.")
	log.Printf("📧 Generated users have the password: %s", seed.DefaultPassword)
}
