package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("=== Database Initialization Script ===")
	fmt.Println()

	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: Could not load .env file: %v\n", err)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Println("DATABASE_URL environment variable not set")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Connect to the default database first so we can create ours.
	postgresURL := strings.Replace(databaseURL, "/collections", "/postgres", 1)
	fmt.Println("Connecting to PostgreSQL server...")

	adminConn, err := pgx.Connect(ctx, postgresURL)
	if err != nil {
		fmt.Printf("Failed to connect to PostgreSQL: %v\n", err)
		os.Exit(1)
	}

	var exists bool
	err = adminConn.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = 'collections')").Scan(&exists)
	if err != nil {
		fmt.Printf("Failed to check database existence: %v\n", err)
		adminConn.Close(ctx)
		os.Exit(1)
	}

	if !exists {
		fmt.Println("Creating 'collections' database...")
		if _, err = adminConn.Exec(ctx, "CREATE DATABASE collections"); err != nil {
			fmt.Printf("Failed to create database: %v\n", err)
			adminConn.Close(ctx)
			os.Exit(1)
		}
		fmt.Println("Database 'collections' created")
	} else {
		fmt.Println("Database 'collections' already exists")
	}
	adminConn.Close(ctx)

	fmt.Println("Connecting to collections database...")
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	sqlBytes, err := os.ReadFile("scripts/init_database.sql")
	if err != nil {
		fmt.Printf("Failed to read SQL file: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Executing database schema...")
	if _, err = conn.Exec(ctx, string(sqlBytes)); err != nil {
		fmt.Printf("Failed to execute SQL: %v\n", err)
		os.Exit(1)
	}

	var executives int
	if err = conn.QueryRow(ctx, "SELECT COUNT(*) FROM field_executives").Scan(&executives); err == nil {
		fmt.Printf("Field executives seeded: %d\n", executives)
	}

	fmt.Println("Database setup complete")
}
