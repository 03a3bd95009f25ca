package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"payfast-gateway/internal/config"
	"payfast-gateway/internal/logger"
	"payfast-gateway/internal/storage"
)

func main() {
	envFlag := flag.String("env", "dev", "Environment (dev, test, prod)")
	envFileFlag := flag.String("env-file", "", "Path to .env file")
	printFlag := flag.Bool("print", false, "Print the schema and exit")
	flag.Parse()

	if *printFlag {
		fmt.Println(strings.Join(storage.Schema, ";\n\n") + ";")
		return
	}

	loadEnv(*envFlag, *envFileFlag)

	cfg := config.Load()
	log := logger.New(cfg.Log.Env, cfg.Log.Level)
	defer log.Close()

	log.LogProcess("MIGRATE", fmt.Sprintf("Migrating %s on %s:%s as %s",
		cfg.Database.Database, cfg.Database.Host, cfg.Database.Port, cfg.Database.Username))

	store, err := storage.NewMySQLStore(cfg.Database, log)
	if err != nil {
		log.Error("MIGRATE", "Migration failed: "+err.Error())
		os.Exit(1)
	}
	defer store.Close()

	log.LogProcess("MIGRATE", "Migration completed successfully")
}

func loadEnv(env string, envFile string) {
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
