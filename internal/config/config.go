package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server holds settings for the platform API
type Server struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	CORSOrigins string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
}

// Client holds settings for the terminal client
type Client struct {
	APIURL   string
	Email    string
	Password string
	Timeout  time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// loadDotEnv reads .env if present. A missing file is not an error.
func loadDotEnv() bool {
	return godotenv.Load() == nil
}

// LoadServer reads the environment and builds the server config
func LoadServer() (*Server, error) {
	loadDotEnv()

	cfg := &Server{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		AccessTTL:   getDurationEnv("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL:  getDurationEnv("REFRESH_TOKEN_TTL", 7*24*time.Hour),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	return cfg, nil
}

// LoadClient reads the environment and builds the client config
func LoadClient() *Client {
	loadDotEnv()

	return &Client{
		APIURL:   strings.TrimRight(getEnv("CHAT_API_URL", "http://localhost:8080/api/v1"), "/"),
		Email:    os.Getenv("CHAT_EMAIL"),
		Password: os.Getenv("CHAT_PASSWORD"),
		Timeout:  getDurationEnv("CHAT_TIMEOUT", 10*time.Second),
	}
}
