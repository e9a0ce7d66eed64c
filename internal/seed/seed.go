// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"intake/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Seeder builds domain entities and persists them to the database.
type Seeder struct {
	db  *gorm.DB
	rng *rand.Rand
}

// NewSeeder creates a new Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:  db,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll removes all submissions and non-root users.
func (s *Seeder) ClearAll() error {
	if err := s.db.Exec("DELETE FROM submissions").Error; err != nil {
		return fmt.Errorf("clear submissions: %w", err)
	}
	if err := s.db.Exec("DELETE FROM users WHERE id > 1").Error; err != nil {
		return fmt.Errorf("clear users: %w", err)
	}
	log.Println("Cleared submissions and non-root users")
	return nil
}

// BuildSubmission constructs a realistic submission without persisting it.
func (s *Seeder) BuildSubmission(overrides ...func(*models.Submission)) *models.Submission {
	actors := []models.Actor{models.ActorAdvertiser, models.ActorAuthor, models.ActorQuestion}
	statuses := []models.Status{models.StatusNew, models.StatusNew, models.StatusCompleted, models.StatusRejected}

	sub := &models.Submission{
		Actor:    actors[s.rng.Intn(len(actors))],
		Theme:    gofakeit.Sentence(4),
		Email:    gofakeit.Email(),
		Company:  gofakeit.Company(),
		Person:   gofakeit.Name(),
		Message:  gofakeit.Paragraph(1, 3, 8, " "),
		Status:   statuses[s.rng.Intn(len(statuses))],
		SourceIP: gofakeit.IPv4Address(),
	}

	// realistic created_at spread over the trailing quarter
	daysBack := s.rng.Intn(90)
	hoursBack := s.rng.Intn(24)
	sub.CreatedAt = time.Now().
		Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour)

	for _, override := range overrides {
		override(sub)
	}
	return sub
}

// SeedSubmissions persists count generated submissions in one batch.
func (s *Seeder) SeedSubmissions(count int) error {
	subs := make([]*models.Submission, 0, count)
	for i := 0; i < count; i++ {
		subs = append(subs, s.BuildSubmission())
	}
	if err := s.db.Create(&subs).Error; err != nil {
		return fmt.Errorf("seed submissions: %w", err)
	}
	log.Printf("Seeded %d submissions", count)
	return nil
}

// SeedAdmins persists count admin accounts, all with the given password.
func (s *Seeder) SeedAdmins(count int, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}
	for i := 0; i < count; i++ {
		user := &models.User{
			Username: gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
			Email:    gofakeit.Email(),
			Password: string(hashed),
			IsAdmin:  true,
		}
		if err := s.db.Create(user).Error; err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}
	log.Printf("Seeded %d admin accounts", count)
	return nil
}
