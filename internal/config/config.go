package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ListenAddr string

	DBDriver    string
	DBPath      string
	DatabaseURL string

	PhotoBackend       string
	PhotoPath          string
	PhotoBucket        string
	PhotoPublicBaseURL string
	PhotoMaxWidth      int
	PhotoJPEGQuality   int
	PhotoMaxPixels     int
	GCSEndpoint        string

	NominatimURL       string
	NominatimUserAgent string
	GeocodeTimeout     time.Duration
	GeocodeCacheSize   int
	GeocodeCacheTTL    time.Duration
	RedisURL           string

	OpenMeteoURL   string
	WeatherTimeout time.Duration

	DistanceThreshold     float64
	UnknownPositionPolicy string
	DefaultLat            float64
	DefaultLng            float64
	RecentWindow          time.Duration
	SessionIdleTimeout    time.Duration

	DefaultLocale string
	LogLevel      string
	LogFormat     string
	LogFile       string
}

// Load reads configuration from environment variables, applying defaults where
// unset. Malformed numbers and durations are reported rather than ignored.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:            getEnv("LISTEN_ADDR", ":8080"),
		DBDriver:              getEnv("DB_DRIVER", "sqlite"),
		DBPath:                getEnv("DB_PATH", "/data/icewatch.db"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		PhotoBackend:          getEnv("PHOTO_BACKEND", "local"),
		PhotoPath:             getEnv("PHOTO_LOCAL_PATH", "/data/photos"),
		PhotoBucket:           getEnv("PHOTO_BUCKET", "photos"),
		PhotoPublicBaseURL:    getEnv("PHOTO_PUBLIC_BASE_URL", ""),
		GCSEndpoint:           getEnv("GCS_ENDPOINT", ""),
		NominatimURL:          getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent:    getEnv("NOMINATIM_USER_AGENT", "icewatch/1.0"),
		RedisURL:              getEnv("REDIS_URL", ""),
		OpenMeteoURL:          getEnv("OPEN_METEO_URL", "https://api.open-meteo.com"),
		UnknownPositionPolicy: getEnv("UNKNOWN_POSITION_POLICY", "reject"),
		DefaultLocale:         getEnv("DEFAULT_LOCALE", "pl"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
		LogFile:               getEnv("LOG_FILE", ""),
	}

	var err error
	if cfg.PhotoMaxWidth, err = getInt("PHOTO_MAX_WIDTH", 1000); err != nil {
		return nil, err
	}
	if cfg.PhotoJPEGQuality, err = getInt("PHOTO_JPEG_QUALITY", 70); err != nil {
		return nil, err
	}
	if cfg.PhotoMaxPixels, err = getInt("PHOTO_MAX_PIXELS", 50_000_000); err != nil {
		return nil, err
	}
	if cfg.GeocodeCacheSize, err = getInt("GEOCODE_CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.GeocodeTimeout, err = getDuration("GEOCODE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.GeocodeCacheTTL, err = getDuration("GEOCODE_CACHE_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.WeatherTimeout, err = getDuration("WEATHER_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RecentWindow, err = getDuration("RECENT_WINDOW", 72*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTimeout, err = getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DistanceThreshold, err = getFloat("DISTANCE_THRESHOLD_METERS", 200); err != nil {
		return nil, err
	}
	if cfg.DefaultLat, err = getFloat("DEFAULT_LAT", 53.757); err != nil {
		return nil, err
	}
	if cfg.DefaultLng, err = getFloat("DEFAULT_LNG", 21.735); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.PhotoBackend {
	case "local", "gcs":
	default:
		return fmt.Errorf("unsupported PHOTO_BACKEND %q", c.PhotoBackend)
	}
	if c.PhotoBucket == "" {
		return errors.New("PHOTO_BUCKET must not be empty")
	}

	switch c.UnknownPositionPolicy {
	case "reject", "warn":
	default:
		return fmt.Errorf("UNKNOWN_POSITION_POLICY must be reject or warn, got %q", c.UnknownPositionPolicy)
	}

	if c.DistanceThreshold <= 0 {
		return errors.New("DISTANCE_THRESHOLD_METERS must be positive")
	}
	if c.PhotoMaxWidth <= 0 {
		return errors.New("PHOTO_MAX_WIDTH must be positive")
	}
	if c.PhotoJPEGQuality < 1 || c.PhotoJPEGQuality > 100 {
		return errors.New("PHOTO_JPEG_QUALITY must be between 1 and 100")
	}
	if c.PhotoMaxPixels <= 0 {
		return errors.New("PHOTO_MAX_PIXELS must be positive")
	}
	if c.GeocodeCacheSize <= 0 {
		return errors.New("GEOCODE_CACHE_SIZE must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
