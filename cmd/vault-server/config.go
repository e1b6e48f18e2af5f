package main

import (
	"flag"
	"os"
	"time"
)

// Config is the vault's full runtime configuration, resolved from CLI flags
// with environment-variable fallbacks.
type Config struct {
	Host string
	Port string

	DBPath string

	AuthTokenTTL       time.Duration
	MaxConcurrentUsers int

	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Endpoint        string
	S3UsePathStyle    bool

	PresignedURLTTL time.Duration

	CORSOrigin string

	MetricsAddr string

	Verbosity string

	// AtRestKeyHex is a hex-encoded 16/24/32-byte key. When set, the
	// challenge/answer columns are decrypted on read with AtRestCipher;
	// empty disables at-rest decryption.
	AtRestKeyHex string
}

// envOrDefault returns the environment variable's value, or def when unset.
func envOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// loadConfig parses CLI flags, falling back to environment variables for
// every flag's default.
func loadConfig() *Config {
	host := flag.String("host", envOrDefault("VAULT_HOST", "0.0.0.0"), "listen host")
	port := flag.String("port", envOrDefault("VAULT_PORT", "8080"), "listen port")
	dbPath := flag.String("db-path", envOrDefault("VAULT_DB_PATH", "./vault.db"), "path to the SQLite user database")
	authTokenTTLMinutes := flag.Int("auth-token-ttl-minutes", 60, "bearer token time-to-live, in minutes")
	maxConcurrentUsers := flag.Int("max-concurrent-users", 1024, "max concurrent DB-touching handlers / token cache capacity")
	s3Bucket := flag.String("s3-bucket", envOrDefault("VAULT_S3_BUCKET", ""), "S3 bucket name")
	s3Region := flag.String("s3-region", envOrDefault("VAULT_S3_REGION", ""), "S3 region")
	s3AccessKeyID := flag.String("s3-access-key-id", envOrDefault("VAULT_S3_ACCESS_KEY_ID", ""), "S3 access key ID")
	s3SecretAccessKey := flag.String("s3-secret-access-key", envOrDefault("VAULT_S3_SECRET_ACCESS_KEY", ""), "S3 secret access key")
	s3Endpoint := flag.String("s3-endpoint", envOrDefault("VAULT_S3_ENDPOINT", ""), "S3-compatible endpoint (empty = AWS default)")
	s3UsePathStyle := flag.Bool("s3-use-path-style", false, "use path-style S3 addressing (required by most non-AWS S3-compatible servers)")
	presignedURLTTLMinutes := flag.Int("presigned-url-ttl-minutes", 5, "presigned URL time-to-live, in minutes")
	corsOrigin := flag.String("cors-origin", envOrDefault("VAULT_CORS_ORIGIN", "*"), "allowed CORS origin, or \"*\"")
	metricsAddr := flag.String("metrics-addr", envOrDefault("VAULT_METRICS_ADDR", ""), "Prometheus metrics listen address (e.g. :9090); empty disables it")
	verbosity := flag.String("verbosity", envOrDefault("VAULT_VERBOSITY", "info"), "log verbosity: debug, info, warn, error")
	atRestKeyHex := flag.String("at-rest-key", envOrDefault("VAULT_AT_REST_KEY", ""), "hex-encoded 16/24/32-byte key; when set, challenge/answer columns are decrypted on read")

	flag.Parse()

	return &Config{
		Host:               *host,
		Port:               *port,
		DBPath:             *dbPath,
		AuthTokenTTL:       time.Duration(*authTokenTTLMinutes) * time.Minute,
		MaxConcurrentUsers: *maxConcurrentUsers,
		S3Bucket:           *s3Bucket,
		S3Region:           *s3Region,
		S3AccessKeyID:      *s3AccessKeyID,
		S3SecretAccessKey:  *s3SecretAccessKey,
		S3Endpoint:         *s3Endpoint,
		S3UsePathStyle:     *s3UsePathStyle,
		PresignedURLTTL:    time.Duration(*presignedURLTTLMinutes) * time.Minute,
		CORSOrigin:         *corsOrigin,
		MetricsAddr:        *metricsAddr,
		Verbosity:          *verbosity,
		AtRestKeyHex:       *atRestKeyHex,
	}
}
