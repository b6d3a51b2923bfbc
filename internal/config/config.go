package config // package config loads application configuration from environment variables

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the server's runtime settings.  Each field corresponds to
// an environment variable.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to verify identity tokens
	LogFile   string // rotated log file, empty disables file output
	LogLevel  string
	AuditLog  string // audit consumer output
	AMQPURL   string // empty disables event publishing and the audit consumer
}

// LoadEnv reads a .env file when present.  Variables already set in the
// process environment win.
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("config: could not read .env: %v", err)
	}
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must(); the database settings
// are only required when the MySQL store is selected.
func Load(storageDriver string) Config {
	c := Config{
		Env:       getenv("APP_ENV", "dev"),
		Port:      must("APP_PORT"),
		JWTSecret: must("JWT_SECRET"),
		LogFile:   getenv("LOG_FILE", "logs/app.log"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		AuditLog:  getenv("AUDIT_LOG_FILE", "logs/reservation_audit.log"),
		AMQPURL:   os.Getenv("RABBITMQ_URL"),
	}
	if c.AMQPURL == "" {
		c.AMQPURL = os.Getenv("AMQP_URL")
	}
	if storageDriver == "mysql" {
		c.DBUser = must("DB_USER")
		c.DBPass = os.Getenv("DB_PASS") // empty allowed
		c.DBHost = must("DB_HOST")
		c.DBPort = must("DB_PORT")
		c.DBName = must("DB_NAME")
	}
	return c
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
