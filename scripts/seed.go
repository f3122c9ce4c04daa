//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/atelierhq/atelier/internal/auth"
	"github.com/atelierhq/atelier/internal/database"
	"github.com/atelierhq/atelier/pkg/config"
	"github.com/atelierhq/atelier/pkg/util"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Create owner account
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry(), cfg.Portal.SessionExpiry())
	authService := auth.NewService(db, jwtService)

	email := os.Getenv("OWNER_EMAIL")
	password := os.Getenv("OWNER_PASSWORD")
	name := os.Getenv("OWNER_NAME")
	companyName := os.Getenv("COMPANY_NAME")

	if email == "" {
		email = "owner@example.com"
	}
	if password == "" {
		password = "owner123!"
	}
	if name == "" {
		name = "Owner"
	}
	if companyName == "" {
		companyName = "Default Studio"
	}

	resp, err := authService.Register(context.Background(), auth.RegisterInput{
		Email:       email,
		Password:    password,
		Name:        name,
		CompanyName: companyName,
	})

	if err != nil {
		if err == auth.ErrUserExists {
			fmt.Printf("Owner already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create owner: %v", err)
	}

	fmt.Printf("Owner created successfully!\n")
	fmt.Printf("Email: %s\n", resp.User.Email)
	fmt.Printf("Company: %s\n", resp.User.Company.Name)
	fmt.Printf("Token: %s\n", resp.Token)
}
