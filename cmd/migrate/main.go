package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/s1d40/empathy-hub-backend/config"
	"github.com/s1d40/empathy-hub-backend/internal/repository"
	"github.com/s1d40/empathy-hub-backend/internal/services"
	"github.com/s1d40/empathy-hub-backend/pkg/database"

	"gorm.io/gorm"
)

const usage = `
Empathy Hub Chat - Database CLI Tool

Usage:
  migrate [command]

Commands:
  up          Create or update all tables and constraints
  status      Show database connection status and table sizes
  seed-dev    Seed development users and print a token for each
  reset       Drop all tables and re-run migrations (DANGEROUS)

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go seed-dev
`

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer database.Close(db)

	switch command {
	case "up":
		runMigrationsUp(db)
	case "status":
		showStatus(db)
	case "seed-dev":
		runSeedDevelopment(db, cfg)
	case "reset":
		runReset(db)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(db *gorm.DB) {
	log.Println("🚀 Running migrations UP...")

	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Println("✅ Migrations completed successfully!")
}

func showStatus(db *gorm.DB) {
	log.Println("🔍 Checking database status...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.HealthCheck(ctx, db); err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	log.Println("✅ Database connection: OK")

	for _, model := range repository.Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			log.Printf("⚠️  Error resolving table for %T: %v", model, err)
			continue
		}
		table := stmt.Schema.Table
		if !db.Migrator().HasTable(table) {
			log.Printf("❌ Table %-20s does not exist", table)
			continue
		}
		var count int64
		db.Table(table).Count(&count)
		log.Printf("✅ Table %-20s exists (%d rows)", table, count)
	}
}

func runSeedDevelopment(db *gorm.DB, cfg *config.Config) {
	log.Println("🌱 Seeding database (development mode)...")

	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	users := repository.NewUserRepository(db)
	result, err := database.Seed(context.Background(), users, database.DefaultSeedConfig())
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	auth := services.NewAuthService(users, cfg)
	for _, u := range result.Users {
		token, expiresAt, err := auth.IssueAccessToken(u.ID)
		if err != nil {
			log.Fatalf("❌ Token for %s: %v", u.Username, err)
		}
		log.Printf("👤 %-8s %-15s %s", u.Username, u.ChatAvailability, u.ID)
		log.Printf("   token (expires %s): %s", expiresAt.Format(time.RFC3339), token)
	}

	log.Printf("✅ Seeded %d users", len(result.Users))
}

func runReset(db *gorm.DB) {
	log.Println("⚠️  Dropping all tables...")

	models := repository.Models()
	// Drop in reverse so dependents go first.
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(models[i]); err != nil {
			log.Fatalf("❌ Drop failed: %v", err)
		}
	}

	runMigrationsUp(db)
}
