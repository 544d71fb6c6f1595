package http

import (
	"context"
	"net/http"
	"time"

	_ "github.com/DRSN-tech/recommender/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck проверяет одну зависимость сервиса.
type HealthCheck func(ctx context.Context) error

// UseCases — зависимости обработчиков.
type UseCases struct {
	Recommend   usecase.RecommendUC
	Profile     usecase.ProfileUC
	Interaction usecase.InteractionUC
	Catalog     usecase.CatalogUC
	Embedding   usecase.EmbeddingUC
}

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

// Init регистрирует middleware и маршруты. requestsPerMinute <= 0 отключает лимит.
func (r *Router) Init(uc UseCases, checks map[string]HealthCheck, requestsPerMinute int) {
	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.RealIP)
	r.router.Use(middleware.Recoverer)
	r.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.router.Get("/healthz", healthHandler(checks))
	r.router.Handle("/metrics", promhttp.Handler())
	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"), // ссылка на JSON
	))

	r.router.Route("/api/v1", func(v1 chi.Router) {
		if requestsPerMinute > 0 {
			v1.Use(httprate.LimitByIP(requestsPerMinute, time.Minute))
		}

		registerRecommendRoutes(v1, NewRecommendHandler(uc.Recommend, uc.Profile, r.logger))
		registerInteractionRoutes(v1, NewInteractionHandler(uc.Interaction, r.logger))
		registerCatalogRoutes(v1, NewCatalogHandler(uc.Catalog, r.logger))
		registerEmbeddingRoutes(v1, NewEmbeddingHandler(uc.Embedding, r.logger))
	})
}

func registerRecommendRoutes(router chi.Router, h *RecommendHandler) {
	router.Post("/recommend", h.recommend)
	router.Route("/users/{userID}", func(u chi.Router) {
		u.Get("/recommendations", h.userRecommendations)
		u.Post("/profile/refresh", h.refreshProfile)
	})
}

func registerInteractionRoutes(router chi.Router, h *InteractionHandler) {
	router.Post("/interactions", h.record)
}

func registerCatalogRoutes(router chi.Router, h *CatalogHandler) {
	router.Get("/products", h.getProducts)
}

func registerEmbeddingRoutes(router chi.Router, h *EmbeddingHandler) {
	router.Post("/embeddings/reload", h.reload)
}

// healthHandler отвечает 200, если все проверки прошли, иначе 503 со списком ошибок.
func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		result := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}

		WriteSuccess(w, status, map[string]interface{}{
			"status": http.StatusText(status),
			"checks": result,
		})
	}
}
