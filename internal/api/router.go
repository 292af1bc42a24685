package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jsmcel/guideitor/internal/api/handlers"
	mw "github.com/jsmcel/guideitor/internal/api/middleware"
	"github.com/jsmcel/guideitor/internal/buildconfig"
	"github.com/jsmcel/guideitor/internal/config"
	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/jsmcel/guideitor/internal/model"
	"github.com/jsmcel/guideitor/internal/service"
	"github.com/jsmcel/guideitor/internal/store"
	"github.com/jsmcel/guideitor/internal/tenant"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router   *chi.Mux
	Sessions *service.SessionService
}

// NewApp wires stores, services and handlers into a router. db may be nil,
// in which case analytics and embeddings run disabled but the decision
// engine itself is fully functional.
func NewApp(db *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	registry, err := tenant.NewRegistry(config.TenantsDir(), config.TriggerRadiusMeters(), logger)
	if err != nil {
		return nil, err
	}

	provider := model.NewFSProvider(model.Options{
		TenantsDir:          config.TenantsDir(),
		ONNXLibraryPath:     config.ONNXLibraryPath(),
		InputSize:           config.ImageSize(),
		SimilarityThreshold: config.SimilarityThreshold(),
		SecondaryThreshold:  config.SimilarityThresholdSecondary(),
	}, logger)

	var analyticsStore domain.AnalyticsStore
	var embeddingStore domain.EmbeddingStore
	if db != nil {
		analyticsStore = store.NewAnalyticsStore(db)
		embeddingStore = store.NewEmbeddingStore(db)
	}

	thresholds := domain.Thresholds{
		Similarity:          config.SimilarityThreshold(),
		SimilaritySecondary: config.SimilarityThresholdSecondary(),
		Suggestion:          config.SuggestionThreshold(),
		TopNSuggestions:     config.TopNSuggestions(),
	}
	cacheTTL := time.Duration(config.PredictionCacheTTLSeconds()) * time.Second

	recognitionSvc := service.NewRecognitionService(registry, provider, analyticsStore, thresholds, cacheTTL, logger)
	landmarkSvc := service.NewLandmarkService(registry, logger)
	sessionSvc := service.NewSessionService(registry, analyticsStore, config.TriggerRadiusMeters(), logger)

	recognizeHandler := handlers.NewRecognizeHandler(recognitionSvc)
	coordinatesHandler := handlers.NewCoordinatesHandler(landmarkSvc)
	sessionHandler := handlers.NewSessionHandler(sessionSvc)
	streamHandler := handlers.NewStreamHandler(sessionSvc, logger)
	statusHandler := handlers.NewStatusHandler(registry, provider, landmarkSvc)

	metrics := mw.NewMetrics(prometheus.DefaultRegisterer)

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(db))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(mw.ResolveTenant(registry, config.DefaultTenant()))

		r.Post("/recognize", recognizeHandler.Recognize)
		r.Post("/recognize/invalidate", recognizeHandler.InvalidateModels)

		r.Get("/tenant-config", statusHandler.TenantConfig)
		r.Get("/tenants", statusHandler.ListTenants)
		r.Get("/status", statusHandler.Status)

		r.Route("/coordinates", func(r chi.Router) {
			r.Get("/all", coordinatesHandler.All)
			r.Get("/nearest", coordinatesHandler.Nearest)
			r.Get("/{id}", coordinatesHandler.GetByID)
		})
		r.Get("/itinerary", coordinatesHandler.Itinerary)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.State)
				r.Delete("/", sessionHandler.Delete)
				r.Post("/location", sessionHandler.PostLocation)
				r.Post("/playback", sessionHandler.PostPlayback)
				r.Post("/mode", sessionHandler.PostMode)
				r.Post("/select", sessionHandler.PostSelect)
				r.Get("/stream", streamHandler.Stream)
			})
		})

		if db != nil {
			analyticsSvc := service.NewAnalyticsService(registry, analyticsStore, logger)
			embeddingSvc := service.NewEmbeddingService(registry, embeddingStore, logger)
			analyticsHandler := handlers.NewAnalyticsHandler(analyticsSvc)
			embeddingsHandler := handlers.NewEmbeddingsHandler(embeddingSvc)

			r.Get("/analytics/summary", analyticsHandler.Summary)
			r.Route("/embeddings", func(r chi.Router) {
				r.Post("/import", embeddingsHandler.Import)
				r.Post("/similar", embeddingsHandler.Similar)
				r.Get("/count", embeddingsHandler.Count)
			})
		} else {
			r.Get("/analytics/summary", databaseDisabled)
			r.Route("/embeddings", func(r chi.Router) {
				r.Post("/import", databaseDisabled)
				r.Post("/similar", databaseDisabled)
				r.Get("/count", databaseDisabled)
			})
		}
	})

	return &App{Router: r, Sessions: sessionSvc}, nil
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{
			"status":   "ok",
			"database": "disabled",
			"version":  buildconfig.Version(),
			"commit":   buildconfig.Commit(),
			"built":    buildconfig.Date(),
		}
		if db != nil {
			status["database"] = "ok"
			if err := db.Ping(r.Context()); err != nil {
				status["status"] = "degraded"
				status["database"] = "unreachable"
				writeJSONStatus(w, http.StatusServiceUnavailable, status)
				return
			}
		}
		writeJSONStatus(w, http.StatusOK, status)
	}
}

func databaseDisabled(w http.ResponseWriter, r *http.Request) {
	writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"error": "database not configured"})
}
