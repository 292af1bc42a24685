package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by GUIDEITOR_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("GUIDEITOR_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// TenantsDir is the root directory holding per-tenant models, labels and
// coordinates. Defaults to "tenants".
func TenantsDir() string {
	d := os.Getenv("TENANTS_DIR")
	if d == "" {
		return "tenants"
	}
	return d
}

// DefaultTenant returns the tenant used when a request carries no tenant id.
func DefaultTenant() string {
	t := os.Getenv("DEFAULT_TENANT")
	if t == "" {
		return "museo_ferrocarril"
	}
	return t
}

// ONNXLibraryPath points at the onnxruntime shared library. Empty means the
// runtime default search path.
func ONNXLibraryPath() string {
	return os.Getenv("ONNX_LIB_PATH")
}

// ImageSize is the square input size models expect. Defaults to 224.
func ImageSize() int {
	n, err := strconv.Atoi(os.Getenv("IMG_SIZE"))
	if err != nil || n <= 0 {
		return 224
	}
	return n
}

// SimilarityThreshold is the primary model's confident-match gate.
// Defaults to 0.8.
func SimilarityThreshold() float64 {
	return floatEnv("SIMILARITY_THRESHOLD", 0.8)
}

// SimilarityThresholdSecondary is the secondary model's confident-match gate.
// Defaults to 0.7.
func SimilarityThresholdSecondary() float64 {
	return floatEnv("SIMILARITY_THRESHOLD_SECONDARY", 0.7)
}

// SuggestionThreshold is the floor below which no suggestions are offered.
// Defaults to 0.3.
func SuggestionThreshold() float64 {
	return floatEnv("SUGGESTION_THRESHOLD", 0.3)
}

// TopNSuggestions caps the suggestion list. Defaults to 3.
func TopNSuggestions() int {
	n, err := strconv.Atoi(os.Getenv("TOP_N_SUGGESTIONS"))
	if err != nil || n <= 0 {
		return 3
	}
	return n
}

// TriggerRadiusMeters is the default GPS activation radius. Defaults to 35.
func TriggerRadiusMeters() float64 {
	return floatEnv("GPS_TRIGGER_RADIUS_METERS", 35)
}

// PredictionCacheTTLSeconds bounds how long identical images reuse a cached
// classification. Defaults to 3600.
func PredictionCacheTTLSeconds() int {
	n, err := strconv.Atoi(os.Getenv("PREDICTION_CACHE_TTL_SECONDS"))
	if err != nil || n <= 0 {
		return 3600
	}
	return n
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

func floatEnv(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}
