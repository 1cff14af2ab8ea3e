package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"

	"ticket-gate/internal/config"
	"ticket-gate/internal/storage"
)

// migrate creates the reservations table. With -file it runs that SQL
// instead of the built-in schema.
func main() {
	envFlag := flag.String("env", "dev", "Environment (dev, test, prod)")
	envFileFlag := flag.String("env-file", "", "Path to .env file")
	fileFlag := flag.String("file", "", "Optional SQL file to run instead of the built-in schema")
	flag.Parse()

	loadEnv(*envFlag, *envFileFlag)

	cfg := config.Load().Database
	if !cfg.Enabled() {
		log.Fatal("DB_HOST is not set; nothing to migrate")
	}
	fmt.Printf("Connecting to MySQL at %s:%s as %s\n", cfg.Host, cfg.Port, cfg.Username)

	db, err := sql.Open("mysql", cfg.DSN()+"&multiStatements=true")
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	fmt.Println("Connected to database successfully")

	schema := storage.Schema
	source := "built-in reservations schema"
	if *fileFlag != "" {
		raw, err := os.ReadFile(*fileFlag)
		if err != nil {
			log.Fatalf("Failed to read migration file: %v", err)
		}
		schema = string(raw)
		source = *fileFlag
	}

	fmt.Printf("Executing migration from %s\n", source)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		log.Fatalf("Failed to execute migration: %v", err)
	}

	fmt.Println("Migration completed successfully")
}

func loadEnv(env, envFile string) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err == nil {
			fmt.Printf("Loaded environment from %s\n", envFile)
			return
		}
	}

	envSpecificFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envSpecificFile); err == nil {
		fmt.Printf("Loaded environment from %s\n", envSpecificFile)
		return
	}

	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded environment from .env")
		return
	}

	fmt.Println("No .env file found, using system environment variables")
}
