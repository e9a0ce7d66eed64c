// Package main provides staff account management utilities for the
// feedback intake service.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"intake/internal/config"
	"intake/internal/database"
	"intake/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin create <username> <email> <password>  - Create admin account")
		fmt.Println("  go run ./cmd/admin promote <user_id>                     - Promote user to admin")
		fmt.Println("  go run ./cmd/admin demote <user_id>                      - Demote user from admin")
		fmt.Println("  go run ./cmd/admin superuser <user_id>                   - Grant superuser")
		fmt.Println("  go run ./cmd/admin list-admins                           - List all admins")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	command := os.Args[1]

	switch command {
	case "create":
		if len(os.Args) < 5 {
			fmt.Println("Usage: go run ./cmd/admin create <username> <email> <password>")
			os.Exit(1)
		}
		createAdmin(db, os.Args[2], os.Args[3], os.Args[4])

	case "promote":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin promote <user_id>")
			os.Exit(1)
		}
		setAdmin(db, os.Args[2], true)

	case "demote":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin demote <user_id>")
			os.Exit(1)
		}
		setAdmin(db, os.Args[2], false)

	case "superuser":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin superuser <user_id>")
			os.Exit(1)
		}
		grantSuperuser(db, os.Args[2])

	case "list-admins":
		listAdmins(db)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func createAdmin(db *gorm.DB, username, email, password string) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	user := models.User{
		Username: username,
		Email:    email,
		Password: string(hashed),
		IsAdmin:  true,
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	fmt.Printf("Created admin %s (ID: %d)\n", user.Username, user.ID)
}

func setAdmin(db *gorm.DB, userID string, admin bool) {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("User with ID %s not found\n", userID)
		} else {
			log.Fatalf("Database error: %v", err)
		}
		os.Exit(1)
	}

	if user.IsAdmin == admin {
		fmt.Printf("User %s (ID: %d) already has is_admin=%v\n", user.Username, user.ID, admin)
		return
	}

	user.IsAdmin = admin
	if err := db.Save(&user).Error; err != nil {
		log.Fatalf("Failed to update user: %v", err)
	}

	fmt.Printf("Updated %s (ID: %d): is_admin=%v\n", user.Username, user.ID, admin)
}

func grantSuperuser(db *gorm.DB, userID string) {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("User with ID %s not found\n", userID)
		} else {
			log.Fatalf("Database error: %v", err)
		}
		os.Exit(1)
	}

	user.IsAdmin = true
	user.IsSuperuser = true
	if err := db.Save(&user).Error; err != nil {
		log.Fatalf("Failed to grant superuser: %v", err)
	}

	fmt.Printf("Granted superuser to %s (ID: %d)\n", user.Username, user.ID)
}

func listAdmins(db *gorm.DB) {
	var admins []models.User
	if err := db.Where("is_admin = ?", true).Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	for _, a := range admins {
		role := "admin"
		if a.IsSuperuser {
			role = "superuser"
		}
		fmt.Printf("  %d\t%s\t%s\t%s\n", a.ID, a.Username, a.Email, role)
	}
}
