// Command seed fills the database with demo users, jobs and feed activity.
package main

import (
	"context"
	"flag"
	"log"

	"chainhire/internal/config"
	"chainhire/internal/database"
	"chainhire/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 0, "Number of users to create (overrides plan)")
	numPosts := flag.Int("posts", 0, "Number of posts to create (overrides plan)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	preset := flag.String("preset", "", "Named plan: small, demo or large")
	planFile := flag.String("plan", "", "Path to a YAML seed plan")
	randomSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = time based)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	plan := seed.DefaultPlan()
	switch {
	case *planFile != "":
		p, err := seed.LoadPlan(*planFile)
		if err != nil {
			log.Fatalf("❌ Invalid seed plan: %v", err)
		}
		plan = p
		log.Printf("Using plan file: %s\n", *planFile)
	case *preset != "":
		p, ok := seed.Presets[*preset]
		if !ok {
			log.Fatalf("❌ Unknown preset %q", *preset)
		}
		plan = p
		log.Printf("Applying preset: %s\n", *preset)
	}

	if *numUsers > 0 {
		plan.Users = *numUsers
		if plan.Employers > plan.Users {
			plan.Employers = plan.Users
		}
	}
	if *numPosts > 0 {
		plan.Posts = *numPosts
	}
	if *randomSeed != 0 {
		plan.RandomSeed = *randomSeed
	}
	plan.Clean = plan.Clean || *shouldClean
	log.Printf("Target: %d users, %d employers, %d posts, clean=%v\n", plan.Users, plan.Employers, plan.Posts, plan.Clean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("❌ Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if _, err := seed.New(db, plan).Run(context.Background()); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Printf("📧 All test users have the password: %s", plan.Password)
	if plan.AdminEmail != "" {
		log.Printf("🔑 Admin account: %s", plan.AdminEmail)
	}
}
