package app

import (
	"time"

	"github.com/jefmud/species-ident/internal/utils"
)

// MemoryDatabaseURL selects the in-process store instead of PostgreSQL.
const MemoryDatabaseURL = "memory://"

type Config struct {
	Port        string
	DatabaseURL string
	DBMaxConns  int
	DBMinConns  int

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// CatalogSize overrides the image count derived from the store when positive.
	CatalogSize  int
	ImageBaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NatsURL           string
	NatsSubjectPrefix string

	LoginRatePerMinute int
	LoginBurst         int
}

// LoadConfig reads the environment, after loading .env if one exists
func LoadConfig() Config {
	_ = utils.LoadEnv()

	connString := utils.GetEnv("DATABASE_URL", "")
	if connString == "" {
		// Fallback to individual vars
		connString = "postgres://" + utils.GetEnv("POSTGRES_USER", "postgres") + ":" +
			utils.GetEnv("POSTGRES_PASSWORD", "postgres") + "@" +
			utils.GetEnv("POSTGRES_HOST", "localhost") + ":" +
			utils.GetEnv("POSTGRES_PORT", "5432") + "/" +
			utils.GetEnv("POSTGRES_DB", "species") + "?sslmode=disable"
	}

	return Config{
		Port:        utils.GetEnv("PORT", "3001"),
		DatabaseURL: connString,
		DBMaxConns:  utils.GetEnvInt("DB_MAX_CONNS", 10),
		DBMinConns:  utils.GetEnvInt("DB_MIN_CONNS", 2),

		JWTSecret:       utils.GetEnv("JWT_SECRET", "secret"),
		AccessTokenTTL:  utils.GetEnvDuration("ACCESS_TOKEN_TTL", 72*time.Hour),
		RefreshTokenTTL: utils.GetEnvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),

		CatalogSize:  utils.GetEnvInt("CATALOG_SIZE", 0),
		ImageBaseURL: utils.GetEnv("IMAGE_BASE_URL", "http://media.itg.wfu.edu/sites/"),

		RedisAddr:     utils.GetEnv("REDIS_ADDR", ""),
		RedisPassword: utils.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       utils.GetEnvInt("REDIS_DB", 0),

		NatsURL:           utils.GetEnv("NATS_URL", ""),
		NatsSubjectPrefix: utils.GetEnv("NATS_SUBJECT_PREFIX", "species"),

		LoginRatePerMinute: utils.GetEnvInt("LOGIN_RATE_PER_MINUTE", 10),
		LoginBurst:         utils.GetEnvInt("LOGIN_BURST", 5),
	}
}
