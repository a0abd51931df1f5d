package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by CARGUARD_BACKEND.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

type Config struct {
	HTTPAddr string

	Env      string // "dev" | "prod"
	LogLevel string

	// Persistence
	Backend  string
	DataDir  string // file backend root, also holds the sqlite db by default
	DBPath   string // e.g. "./data/carguard.db"
	RedisURL string
	MongoURI string
	MongoDB  string

	// Encryption at rest. Secret is operator supplied; never defaulted.
	Secret             string
	KeySalt            string
	StrictCorruption   bool
	DescriptorDim      int
	MaxUploadBytes     int64
	MaxImagePixels     int
	ImageSide          int // fallback comparison resolution (square)
	FallbackMatching   bool
	EngineAddr         string // empty = no extraction engine in this deployment
	EngineTimeout      time.Duration
	EngineProbeTimeout time.Duration

	// Audit chain verification (0 = disabled)
	AuditVerifyIntervalMinutes int

	// SeedDev enrolls a demo driver at startup. Ignored outside dev.
	SeedDev bool
}

// FromEnv reads CARGUARD_* variables, after loading an optional .env file.
func FromEnv() Config {
	_ = godotenv.Load()

	addr := getenvDefault("CARGUARD_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("CARGUARD_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	backend := strings.ToLower(getenvDefault("CARGUARD_BACKEND", BackendSQLite))
	switch backend {
	case BackendMemory, BackendFile, BackendSQLite, BackendRedis, BackendMongo:
	default:
		backend = BackendSQLite
	}

	dataDir := getenvDefault("CARGUARD_DATA_DIR", "./data")

	return Config{
		HTTPAddr: addr,
		Env:      env,
		LogLevel: getenvDefault("CARGUARD_LOG_LEVEL", "info"),

		Backend:  backend,
		DataDir:  dataDir,
		DBPath:   getenvDefault("CARGUARD_DB_PATH", dataDir+"/carguard.db"),
		RedisURL: getenvDefault("CARGUARD_REDIS_URL", "redis://localhost:6379/0"),
		MongoURI: getenvDefault("CARGUARD_MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getenvDefault("CARGUARD_MONGO_DB", "carguard"),

		Secret:           os.Getenv("CARGUARD_SECRET"),
		KeySalt:          getenvDefault("CARGUARD_KEY_SALT", "carguard/documents/v1"),
		StrictCorruption: getenvBool("CARGUARD_STRICT_CORRUPTION", false),
		DescriptorDim:    getenvInt("CARGUARD_DESCRIPTOR_DIM", 128),
		MaxUploadBytes:   int64(getenvInt("CARGUARD_MAX_UPLOAD_BYTES", 8<<20)),
		MaxImagePixels:   getenvInt("CARGUARD_MAX_IMAGE_PIXELS", 40_000_000),
		ImageSide:        getenvInt("CARGUARD_FALLBACK_IMAGE_SIDE", 300),
		FallbackMatching: getenvBool("CARGUARD_FALLBACK_MATCHING", true),

		EngineAddr:         strings.TrimSpace(os.Getenv("CARGUARD_ENGINE_ADDR")),
		EngineTimeout:      time.Duration(getenvInt("CARGUARD_ENGINE_TIMEOUT_MS", 3000)) * time.Millisecond,
		EngineProbeTimeout: time.Duration(getenvInt("CARGUARD_ENGINE_PROBE_TIMEOUT_MS", 2000)) * time.Millisecond,

		AuditVerifyIntervalMinutes: getenvInt("CARGUARD_AUDIT_VERIFY_INTERVAL_MINUTES", 60),

		SeedDev: env == "dev" && getenvBool("CARGUARD_SEED_DEV", false),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
