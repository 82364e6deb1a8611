// Command main runs the demo data seeder.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/bootstrap"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/config"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/seed"
)

func main() {
	owners := flag.Int("owners", 5, "Number of owners to populate")
	posts := flag.Int("posts", 12, "Posts per owner, spread over every status")
	days := flag.Int("days", 30, "Days of follower history")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	withCredentials := flag.Bool("credentials", true, "Store a demo platform credential per owner")
	dryRun := flag.Bool("dry-run", false, "Build data without writing it")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d owners, %d posts each, %d days, clean=%v\n", *owners, *posts, *days, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}

	opts := seed.Options{
		Owners:        *owners,
		PostsPerOwner: *posts,
		MaxDays:       *days,
		DryRun:        *dryRun,
	}
	if *withCredentials {
		comps, err := bootstrap.BuildComponents(cfg, db, rdb, bootstrap.Overrides{})
		if err != nil {
			log.Fatalf("Failed to build components: %v", err)
		}
		opts.Credentials = comps.CredentialStore
	}

	s := seed.NewSeeder(db, opts)
	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	if _, err := s.Run(context.Background()); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with demo data.")
}
