package config // package config loads application configuration from environment variables

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Values may also come from a .env file in the
// working directory; real environment variables win over the file.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	DBMaxOpenConns int           // connection pool size
	DBMaxIdleConns int           // idle connections kept in the pool
	DBConnMaxLife  time.Duration // lifetime of a pooled connection
	JWTSecret      string        // secret used to sign JWTs
	JWTTTL         time.Duration // lifetime of issued tokens
	BcryptCost     int           // bcrypt cost for password hashing
	Timezone       string        // IANA zone used to interpret schedule dates
	AdminPassword  string        // password of the admin account seeded on first start
	UploadDir      string        // directory for poster images
	MaxUploadBytes int64         // upload size limit
	LogLevel       string        // logrus level name
}

// Load reads configuration values from the environment and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		DBMaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: envInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLife:  envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		JWTSecret:      must("JWT_SECRET"),
		JWTTTL:         envDur("JWT_TTL", 12*time.Hour),
		BcryptCost:     envInt("BCRYPT_COST", 10),
		Timezone:       envStr("APP_TIMEZONE", "America/La_Paz"),
		AdminPassword:  envStr("ADMIN_PASSWORD", "admin"),
		UploadDir:      envStr("UPLOAD_DIR", "uploads"),
		MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 10<<20)),
		LogLevel:       envStr("LOG_LEVEL", "info"),
	}
}

// Location resolves Timezone, falling back to UTC when the zone database
// does not know it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		logrus.WithError(err).Warnf("unknown APP_TIMEZONE %q, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logrus.Fatalf("missing required env var: %s", key)
	}
	return v
}
