package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"bookingtms/internal/shared/config"
	"bookingtms/internal/shared/database"
	"bookingtms/internal/shared/middleware"
	"bookingtms/internal/widgetconfig"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Seeder struct {
	db  *database.DB
	cfg *config.Config
}

func main() {
	fmt.Println("🌱 Starting booking widget seeder...")

	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db, cfg: cfg}

	// Clean database
	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	// Seed data
	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables in the correct order
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"bookings",
		"widgets",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit().Error
}

// SeedAll seeds all required data
func (s *Seeder) SeedAll() error {
	ctx := context.Background()

	widgets, err := s.SeedWidgets()
	if err != nil {
		return fmt.Errorf("failed to seed widgets: %w", err)
	}

	fmt.Println("\n  🔗 Embed URLs:")
	for _, w := range widgets {
		fmt.Printf("    %s/embed?widgetId=%s&widgetKey=%s\n", s.cfg.Embed.BaseURL, w.WidgetType, w.EmbedKey)
	}

	token, err := s.AdminToken()
	if err != nil {
		return fmt.Errorf("failed to sign admin token: %w", err)
	}
	fmt.Printf("\n  🔑 Development admin token (24h):\n    %s\n", token)

	// Clear Redis cache to ensure fresh state
	if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
		log.Printf("Warning: Failed to clear Redis cache: %v", err)
	}

	return nil
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

// SeedWidgets creates two widgets. Embed keys are issued by the database trigger.
func (s *Seeder) SeedWidgets() ([]widgetconfig.Widget, error) {
	fmt.Println("  🧩 Seeding widgets...")

	venueID := uuid.New()
	today := time.Now().UTC()

	widgetsData := []struct {
		name       string
		widgetType string
		config     widgetconfig.RawConfig
	}{
		{
			name:       "Escape Room Downtown - The Vault",
			widgetType: "farebook",
			config: widgetconfig.RawConfig{
				OperatingDays:       []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday"},
				StartTime:           "10:00",
				EndTime:             "22:00",
				SlotIntervalMinutes: intPtr(90),
				AdvanceBooking: &widgetconfig.RawAdvanceWindow{
					MinLeadMinutes: intPtr(60),
					MaxLeadDays:    intPtr(60),
					SameDayAllowed: boolPtr(true),
				},
				CustomHours: map[string]widgetconfig.RawDayHours{
					today.AddDate(0, 0, 7).Format("2006-01-02"): {Start: "12:00", End: "18:00"},
				},
				BlockedDates: []string{today.AddDate(0, 0, 14).Format("2006-01-02")},
				TicketTypes: []widgetconfig.TicketType{
					{ID: "adult", Name: "Adult", PricePerUnit: 32},
					{ID: "student", Name: "Student", PricePerUnit: 25},
				},
				MinPlayers: intPtr(2),
				MaxPlayers: intPtr(6),
				AdditionalQuestions: []widgetconfig.FormField{
					{ID: "experience", Label: "Have you played an escape room before?", Type: "select", Options: []string{"yes", "no"}, Required: true},
					{ID: "occasion", Label: "Celebrating anything?", Type: "text", Placeholder: "Birthday, team event..."},
				},
				Timezone: "America/New_York",
			},
		},
		{
			name:       "Escape Room Downtown - Kids Lab",
			widgetType: "list",
			config: widgetconfig.RawConfig{
				OperatingDays: []string{"saturday", "sunday"},
				StartTime:     "09:00",
				EndTime:       "17:00",
				MaxPlayers:    intPtr(8),
				CustomDates: []widgetconfig.RawCustomDate{
					{Date: today.AddDate(0, 0, 10).Format("2006-01-02"), StartTime: "13:00", EndTime: "17:00"},
				},
				Timezone: "America/New_York",
			},
		},
	}

	repo := widgetconfig.NewRepository(s.db.GetPostgreSQL())
	created := make([]widgetconfig.Widget, 0, len(widgetsData))
	for _, data := range widgetsData {
		if _, err := widgetconfig.Normalize(data.config); err != nil {
			return nil, fmt.Errorf("seed config for %q is invalid: %w", data.name, err)
		}

		widget := widgetconfig.Widget{
			VenueID:    venueID,
			ActivityID: uuid.New(),
			Name:       data.name,
			WidgetType: data.widgetType,
			Config:     data.config,
			Active:     true,
		}
		// Create reloads the row, picking up the key the trigger issued
		if err := repo.Create(context.Background(), &widget); err != nil {
			return nil, fmt.Errorf("failed to create widget %s: %w", data.name, err)
		}

		created = append(created, widget)
		fmt.Printf("    ✅ Created widget: %s (%s, key %s)\n", widget.Name, widget.WidgetType, widget.EmbedKey)
	}

	return created, nil
}

// AdminToken signs a short-lived operator token accepted by the admin routes
func (s *Seeder) AdminToken() (string, error) {
	now := time.Now()
	claims := middleware.OperatorClaims{
		UserID: uuid.NewString(),
		Email:  "operator@example.com",
		Role:   middleware.RoleAdmin,
		Type:   "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWT.Secret))
}
