package config

import (
	"os"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	TokenTTL      time.Duration

	// ConsentValidity is the window a consent decision remains valid after
	// the record is created. Modification does not extend it.
	ConsentValidity time.Duration

	// SignerMode selects the artifact signer: "mock" (deterministic content
	// hash, inspectable, not cryptographic) or "ed25519".
	SignerMode    string
	SignerKeyID   string
	SignerKeySeed string

	// SnapshotPath is where the consent snapshot store persists its record
	// set. Empty disables snapshot persistence.
	SnapshotPath string

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers string
	KafkaTopic   string
}

// DefaultConsentValidity mirrors the product rule of one year of validity
// from record creation.
const DefaultConsentValidity = 365 * 24 * time.Hour

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:            getEnv("COVENANT_ADDR", ":8080"),
		JWTSigningKey:   getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenTTL:        getDuration("TOKEN_TTL", 15*time.Minute),
		ConsentValidity: getDuration("CONSENT_VALIDITY", DefaultConsentValidity),
		SignerMode:      getEnv("SIGNER_MODE", "mock"),
		SignerKeyID:     getEnv("SIGNER_KEY_ID", "KeyID.1"),
		SignerKeySeed:   os.Getenv("SIGNER_KEY_SEED"),
		SnapshotPath:    os.Getenv("CONSENT_SNAPSHOT_PATH"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:      getEnv("KAFKA_CONSENT_TOPIC", "covenant.consent-log"),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
