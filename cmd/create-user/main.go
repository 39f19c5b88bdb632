package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"law_timeline_app_go/config"
	"law_timeline_app_go/db"
	"law_timeline_app_go/models"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gorm.io/gorm"
)

var logger = loggo.GetLogger("lawtimeline.createuser")

// userInput is what the operator types at the prompts
type userInput struct {
	FirmName string
	Timezone string
	Name     string
	Email    string
	Role     string
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	if err := db.Initialize(cfg); err != nil {
		logger.Criticalf("failed to initialize database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.Criticalf("failed to run migrations: %v", err)
		os.Exit(1)
	}

	fmt.Println("=== Create New User ===")
	fmt.Println()
	input := promptUser(bufio.NewReader(os.Stdin), os.Stdout)

	user, err := createUser(db.DB, input)
	if err != nil {
		logger.Criticalf("failed to create user: %v", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("✓ User created successfully!")
	fmt.Printf("  ID: %s\n", user.ID)
	fmt.Printf("  Name: %s\n", user.Name)
	fmt.Printf("  Email: %s\n", user.Email)
	fmt.Printf("  Role: %s\n", user.Role)
	fmt.Printf("  Firm: %s (%s)\n", user.Firm.Name, user.Firm.Slug)
	fmt.Println()
	fmt.Printf("Send %s: %s from the gateway to act as this user.\n", "X-User-ID", user.ID)
}

func promptUser(reader *bufio.Reader, out io.Writer) userInput {
	ask := func(label string) string {
		fmt.Fprintf(out, "%s: ", label)
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}
	return userInput{
		FirmName: ask("Firm name"),
		Timezone: ask("Firm timezone (e.g. America/Bogota, blank for UTC)"),
		Name:     ask("Name"),
		Email:    ask("Email"),
		Role:     ask("Role (admin, lawyer, staff, client)"),
	}
}

// createUser adds a user to the named firm, creating the firm on first use
func createUser(database *gorm.DB, in userInput) (*models.User, error) {
	in.Role = strings.ToLower(in.Role)
	in.Email = strings.ToLower(in.Email)
	if in.FirmName == "" || in.Name == "" || in.Email == "" {
		return nil, errors.NotValidf("firm, name and email are required")
	}
	if in.Role != models.RoleClient && !models.IsStaffRole(in.Role) {
		return nil, errors.NotValidf("role %q", in.Role)
	}

	var user models.User
	err := database.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ?", in.Email).Count(&existing).Error; err != nil {
			return errors.Trace(err)
		}
		if existing > 0 {
			return errors.AlreadyExistsf("user with email %s", in.Email)
		}

		var firm models.Firm
		err := tx.Where("name = ?", in.FirmName).First(&firm).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			firm = models.Firm{Name: in.FirmName, Timezone: in.Timezone}
			if err := tx.Create(&firm).Error; err != nil {
				return errors.Annotate(err, "creating firm")
			}
			logger.Infof("created firm %s (%s)", firm.Name, firm.Slug)
		case err != nil:
			return errors.Trace(err)
		}

		user = models.User{
			Name:     in.Name,
			Email:    in.Email,
			FirmID:   &firm.ID,
			Role:     in.Role,
			IsActive: true,
			Firm:     &firm,
		}
		return errors.Annotate(tx.Omit("Firm").Create(&user).Error, "creating user")
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
