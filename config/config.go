package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	GeminiAPIKey string
	GeminiModel  string

	ListURL      string
	GoldPriceURL string

	HistorySeasonFrom int
	HistorySeasonTo   int

	ThrottleMinMs int
	ThrottleMaxMs int
	MaxRetries    int
	PageTimeoutS  int

	CSVOutputPath string
	ChromeBin     string
	ListenAddr    string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "goldmine"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "goldmine123"),
		PostgresDB:       getEnv("POSTGRES_DB", "goldmine_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-flash-latest"),

		ListURL:      getEnv("KAPAO_LIST_URL", "https://www.kapao.co.kr/ver2/p/item/item"),
		GoldPriceURL: getEnv("GOLD_PRICE_URL", "https://search.naver.com/search.naver?query=금시세"),

		HistorySeasonFrom: getEnvInt("HISTORY_SEASON_FROM", 12),
		HistorySeasonTo:   getEnvInt("HISTORY_SEASON_TO", 20),

		ThrottleMinMs: getEnvInt("THROTTLE_MIN_MS", 800),
		ThrottleMaxMs: getEnvInt("THROTTLE_MAX_MS", 2500),
		MaxRetries:    getEnvInt("MAX_RETRIES", 3),
		PageTimeoutS:  getEnvInt("PAGE_TIMEOUT_S", 60),

		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/raw_summaries.csv"),
		ChromeBin:     getEnv("CHROME_BIN", ""),
		ListenAddr:    getEnv("LISTEN_ADDR", ":8090"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
