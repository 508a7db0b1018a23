package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port        string
	ClientURL   string
	Environment string // "development", "staging", "production"

	// Database
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	// Realtime
	SendBufferSize int
}

func LoadConfig() Config {
	_ = godotenv.Load()

	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	dbPassword := getEnv("DB_PASSWORD", "postgres")
	dbName := getEnv("DB_NAME", "chat")
	dbURL := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		dbHost,
		dbUser,
		dbPassword,
		dbName,
		dbPort,
	)

	return Config{
		Port:        getEnv("PORT", "5000"),
		ClientURL:   getEnv("CLIENT_URL", "http://localhost:3000"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: dbURL,
		DBHost:      dbHost,
		DBPort:      dbPort,
		DBUser:      dbUser,
		DBPassword:  dbPassword,
		DBName:      dbName,

		SendBufferSize: mustParseInt(getEnv("SEND_BUFFER_SIZE", "8")),
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func mustParseInt(str string) int {
	i, err := strconv.Atoi(str)
	if err != nil {
		log.Printf("Invalid integer '%s', defaulting to 8", str)
		return 8
	}
	return i
}
