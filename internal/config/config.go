package config

import "os"

type Config struct {
	Port                   string
	JWTSecret              string
	FirebaseProjectID      string
	FirebaseServiceAccount string
}

func Load() *Config {
	return &Config{
		Port:                   getEnv("PORT", "8080"),
		JWTSecret:              getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		FirebaseProjectID:      getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseServiceAccount: getEnv("FIREBASE_SERVICE_ACCOUNT", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
