package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/vbonduro/icewatch/internal/config"
	"github.com/vbonduro/icewatch/internal/db"
	"github.com/vbonduro/icewatch/internal/domain"
	"github.com/vbonduro/icewatch/internal/geo"
	"github.com/vbonduro/icewatch/internal/geocode"
	"github.com/vbonduro/icewatch/internal/geocode/nominatim"
	"github.com/vbonduro/icewatch/internal/i18n"
	"github.com/vbonduro/icewatch/internal/imaging"
	"github.com/vbonduro/icewatch/internal/logging"
	"github.com/vbonduro/icewatch/internal/observability"
	"github.com/vbonduro/icewatch/internal/photostore"
	"github.com/vbonduro/icewatch/internal/photostore/gcs"
	"github.com/vbonduro/icewatch/internal/photostore/local"
	"github.com/vbonduro/icewatch/internal/service"
	"github.com/vbonduro/icewatch/internal/store"
	"github.com/vbonduro/icewatch/internal/submission"
	"github.com/vbonduro/icewatch/internal/weather"
	"github.com/vbonduro/icewatch/internal/web"
	"google.golang.org/api/option"
)

const (
	shutdownTimeout = 15 * time.Second
	sweepInterval   = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()
	logger.Info("database ready", "driver", cfg.DBDriver)

	photos, closePhotos, err := newPhotoStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePhotos()

	water, closeGeocode, err := newWaterVerifier(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer closeGeocode()

	policy, err := submission.ParsePolicy(cfg.UnknownPositionPolicy)
	if err != nil {
		return err
	}

	bundle, err := i18n.Load(cfg.DefaultLocale)
	if err != nil {
		return err
	}

	measurements := store.NewMeasurementStore(database)
	svc := service.NewMeasurementService(measurements, photos, clock, cfg.RecentWindow, metrics, logger)
	// A failed initial load is not fatal; clients can refresh later.
	if err := svc.Refresh(ctx); err != nil {
		logger.Error("initial measurement load failed", "error", err)
	}

	sessions := web.NewSessionRegistry(submission.Dependencies{
		Guard:      geo.NewGuard(cfg.DistanceThreshold),
		Policy:     policy,
		Water:      water,
		Normalizer: imaging.NewNormalizer(cfg.PhotoMaxWidth, cfg.PhotoJPEGQuality, cfg.PhotoMaxPixels),
		Photos:     photos,
		Store:      measurements,
		List:       svc,
		Namer:      submission.NewFileNamer(clock),
		Metrics:    metrics,
		Logger:     logger,
	}, clock, cfg.SessionIdleTimeout)
	go sessions.Run(ctx, sweepInterval)

	srv := web.NewServer(web.Deps{
		Measurements: svc,
		Photos:       photos,
		Weather:      weather.NewClient(cfg.OpenMeteoURL, cfg.WeatherTimeout),
		Ready:        measurements,
		Sessions:     sessions,
		Bundle:       bundle,
		Settings: web.ClientSettings{
			DefaultCenter:         domain.Coordinate{Lat: cfg.DefaultLat, Lng: cfg.DefaultLng},
			DistanceThreshold:     cfg.DistanceThreshold,
			UnknownPositionPolicy: string(policy),
			RecentWindow:          cfg.RecentWindow,
			DefaultLocale:         cfg.DefaultLocale,
		},
		Clock:   clock,
		Metrics: metrics,
		Logger:  logger,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func openDatabase(cfg *config.Config) (*db.DB, error) {
	if cfg.DBDriver == string(db.Postgres) {
		return db.Open(db.Postgres, cfg.DatabaseURL)
	}
	return db.Open(db.SQLite, db.SQLiteDSN(cfg.DBPath))
}

func newPhotoStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (photostore.PhotoStore, func(), error) {
	switch cfg.PhotoBackend {
	case "gcs":
		var opts []option.ClientOption
		if cfg.GCSEndpoint != "" {
			// Emulators such as fake-gcs-server take no credentials.
			opts = append(opts, option.WithEndpoint(cfg.GCSEndpoint), option.WithoutAuthentication())
		}
		s, err := gcs.NewGCSPhotoStore(ctx, cfg.PhotoBucket, cfg.PhotoPublicBaseURL, opts...)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using GCS photo store", "bucket", cfg.PhotoBucket, "endpoint", cfg.GCSEndpoint)
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Error("failed to close GCS client", "error", err)
			}
		}, nil
	default:
		base := cfg.PhotoPublicBaseURL
		if base == "" {
			base = "/photos"
		}
		s, err := local.NewLocalPhotoStore(cfg.PhotoPath, cfg.PhotoBucket, base)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using local photo store", "path", cfg.PhotoPath, "bucket", cfg.PhotoBucket)
		return s, func() {}, nil
	}
}

// newWaterVerifier puts a cache in front of Nominatim: Redis when REDIS_URL is
// set, otherwise an in-process LRU.
func newWaterVerifier(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*geocode.Verifier, func(), error) {
	client := nominatim.NewClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.GeocodeTimeout, metrics)

	var (
		cache   geocode.Cache
		closeFn = func() {}
	)
	if cfg.RedisURL != "" {
		rdb, err := geocode.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		cache = geocode.NewRedisCache(rdb, cfg.GeocodeCacheTTL)
		closeFn = func() {
			if err := rdb.Close(); err != nil {
				logger.Error("failed to close redis client", "error", err)
			}
		}
		logger.Info("geocode cache: redis", "ttl", cfg.GeocodeCacheTTL)
	} else {
		lru, err := geocode.NewLRUCache(cfg.GeocodeCacheSize)
		if err != nil {
			return nil, nil, err
		}
		cache = lru
		logger.Info("geocode cache: in-memory", "size", cfg.GeocodeCacheSize)
	}

	reverser := geocode.NewCachedReverser(client, cache, metrics, logger)
	return geocode.NewVerifier(reverser, metrics, logger), closeFn, nil
}
