package config

import (
	"os"
	"strconv"
	"time"
)

// Config is loaded from environment variables. Thresholds and timeouts are
// deliberately configuration data so decision behavior can be tuned without
// code changes.
type Config struct {
	GoogleApiKey   string
	TavilyApiKey   string
	DatabaseURL    string
	Model          string
	EmbeddingModel string
	EmbeddingDim   int
	Port           string
	CollectionName string

	ClinicName    string
	ClinicContact string

	ChunkSize    int
	ChunkOverlap int

	RetrievalTopK     int
	MinTotalRelevance float64
	SearchMaxResults  int

	RetrievalTimeout time.Duration
	SearchTimeout    time.Duration
	ModelTimeout     time.Duration

	Temperature float64
	MaxTokens   int
}

// Load reads configuration from the environment, with working defaults for
// everything but the API keys and database URL.
func Load() *Config {
	return &Config{
		GoogleApiKey:   getEnv("GOOGLE_API_KEY", ""),
		TavilyApiKey:   getEnv("TAVILY_API_KEY", ""),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		Model:          getEnv("MODEL", "gemini-3-flash-preview"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
		EmbeddingDim:   getEnvAsInt("EMBEDDING_DIM", 1536),
		Port:           getEnv("PORT", "3000"),
		CollectionName: getEnv("COLLECTION_NAME", "clinic_pages"),

		ClinicName:    getEnv("CLINIC_NAME", "Haut Labor Oldenburg"),
		ClinicContact: getEnv("CLINIC_CONTACT", "+49 (0) 157 834 488 90 or info@haut-labor.de"),

		ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 200),

		RetrievalTopK:     getEnvAsInt("RETRIEVAL_TOP_K", 5),
		MinTotalRelevance: getEnvAsFloat("MIN_TOTAL_RELEVANCE", 1.5),
		SearchMaxResults:  getEnvAsInt("SEARCH_MAX_RESULTS", 5),

		RetrievalTimeout: getEnvAsDuration("RETRIEVAL_TIMEOUT", 10*time.Second),
		SearchTimeout:    getEnvAsDuration("SEARCH_TIMEOUT", 15*time.Second),
		ModelTimeout:     getEnvAsDuration("MODEL_TIMEOUT", 60*time.Second),

		Temperature: getEnvAsFloat("TEMPERATURE", 0.2),
		MaxTokens:   getEnvAsInt("MAX_TOKENS", 1024),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
