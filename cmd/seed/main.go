// Command main runs the database seeder for the feedback intake service.
package main

import (
	"flag"
	"log"

	"intake/internal/config"
	"intake/internal/database"
	"intake/internal/seed"
)

func main() {
	numSubmissions := flag.Int("submissions", 200, "Number of submissions to create")
	numAdmins := flag.Int("admins", 3, "Number of admin accounts to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("Database Seeder")
	log.Printf("Target: %d submissions, %d admins, clean=%v\n", *numSubmissions, *numAdmins, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if _, err = database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(database.DB)

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	if err := s.SeedAdmins(*numAdmins, "password123"); err != nil {
		log.Fatalf("Admin seeding failed: %v", err)
	}
	if err := s.SeedSubmissions(*numSubmissions); err != nil {
		log.Fatalf("Submission seeding failed: %v", err)
	}

	log.Println("All done! The database is populated with test data.")
	log.Println("All seeded admins have the password: password123")
}
