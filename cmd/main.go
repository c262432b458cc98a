package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gorm.io/gorm"

	"github.com/mridulsharma03/snapnet-server/cmd/api"
	"github.com/mridulsharma03/snapnet-server/cmd/config"
	"github.com/mridulsharma03/snapnet-server/cmd/models"
	"github.com/mridulsharma03/snapnet-server/db"
	"github.com/mridulsharma03/snapnet-server/service/mailer"
	"github.com/mridulsharma03/snapnet-server/storage"
)

func main() {
	cfg := config.Load()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrations(cfg)
			return
		case "clear-db":
			runDatabaseClear(cfg)
			return
		default:
			log.Fatalf("Unknown command: %s", os.Args[1])
		}
	}

	startServer(cfg)
}

func openDB(cfg *config.Config) *gorm.DB {
	DB, err := db.NewPSQLStorage(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	return DB
}

func closeDB(DB *gorm.DB) {
	sqlDB, _ := DB.DB()
	sqlDB.Close()
	log.Println("Database connection closed")
}

func runMigrations(cfg *config.Config) {
	DB := openDB(cfg)
	defer closeDB(DB)
	log.Println("Connected to the database for migrations")

	if err := performMigrations(DB); err != nil {
		log.Fatalf("Migration error: %v", err)
	}
	log.Println("Migrations completed successfully")
}

// migrationOrder lists every table, parents before children, so foreign
// keys resolve during AutoMigrate and reversing it is a safe drop order.
var migrationOrder = []struct {
	model interface{}
	name  string
}{
	{&models.BaseUser{}, "BaseUser"},
	{&models.User{}, "User"},
	{&models.Admin{}, "Admin"},
	{&models.Otp{}, "Otp"},
	{&models.Follow{}, "Follow"},
	{&models.Post{}, "Post"},
	{&models.Media{}, "Media"},
	{&models.Like{}, "Like"},
	{&models.Comment{}, "Comment"},
	{&models.Report{}, "Report"},
	{&models.Transaction{}, "Transaction"},
	{&models.Subscription{}, "Subscription"},
}

func performMigrations(DB *gorm.DB) error {
	log.Println("Starting database migrations...")
	for _, m := range migrationOrder {
		log.Printf("Migrating %s table...", m.name)
		if err := DB.AutoMigrate(m.model); err != nil {
			return fmt.Errorf("error migrating %s table: %w", m.name, err)
		}
		log.Printf("%s migration successful", m.name)
	}
	log.Println("All migrations completed successfully")
	return nil
}

func startServer(cfg *config.Config) {
	DB := openDB(cfg)
	defer closeDB(DB)
	log.Println("Connected to the database")

	store, err := storage.NewMinioStore(cfg)
	if err != nil {
		log.Fatalf("Object storage initialization error: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := api.NewApiServer(":"+cfg.ServerPort, DB, cfg, store, mailer.New(cfg))
	go func() {
		if err := server.Run(ctx); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()
	log.Printf("Server running on port %s", cfg.ServerPort)

	<-quit
	log.Println("Shutting down server...")
}

func runDatabaseClear(cfg *config.Config) {
	DB := openDB(cfg)
	defer closeDB(DB)

	log.Println("Preparing to clear database...")

	var confirmation string
	fmt.Print("Are you sure you want to clear the database? (yes/no): ")
	fmt.Scanln(&confirmation)
	if confirmation != "yes" {
		log.Println("Database clearing cancelled.")
		return
	}

	var tableNames string
	fmt.Print("Enter table names to clear (comma separated) or leave blank to clear all: ")
	fmt.Scanln(&tableNames)

	var tables []interface{}
	if tableNames != "" {
		for _, name := range strings.Split(tableNames, ",") {
			name = strings.TrimSpace(name)
			found := false
			for _, m := range migrationOrder {
				if m.name == name {
					tables = append(tables, m.model)
					found = true
					break
				}
			}
			if !found {
				log.Printf("Unknown table: %s", name)
			}
		}
	}

	if err := clearDatabase(DB, tables); err != nil {
		log.Fatalf("Error clearing database: %v", err)
	}
	log.Println("Database cleared successfully")
}

func clearDatabase(DB *gorm.DB, tables []interface{}) error {
	if len(tables) == 0 {
		// children first
		for i := len(migrationOrder) - 1; i >= 0; i-- {
			tables = append(tables, migrationOrder[i].model)
		}
	}

	log.Println("Dropping tables...")
	for _, table := range tables {
		if err := DB.Migrator().DropTable(table); err != nil {
			log.Printf("Warning dropping table %T: %v", table, err)
		} else {
			log.Printf("Table %T dropped", table)
		}
	}
	return nil
}
