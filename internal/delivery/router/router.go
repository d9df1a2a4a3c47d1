package router

import (
	"net/http"

	"ads-api/internal/delivery/handler"
	"ads-api/internal/delivery/middleware"
	"ads-api/internal/infrastructure/metrics"
	"ads-api/internal/service"
	"ads-api/pkg/logger"
	"ads-api/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// NewRouter builds the HTTP surface. CORS runs first so that every
// response, including 404 and 405, carries the cross-origin headers.
func NewRouter(adService service.AdvertisementService, loggers *logger.Loggers, handlerMetrics *metrics.HandlerMetrics, gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.CORS)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(loggers))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithErrorJSON(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithErrorJSON(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	SetupAdvertisementRoutes(r, adService, loggers, handlerMetrics)

	r.Handle("/metrics", metrics.HTTPHandler(gatherer))

	return r
}

func SetupAdvertisementRoutes(adRouter chi.Router, adService service.AdvertisementService, loggers *logger.Loggers, handlerMetrics *metrics.HandlerMetrics) {
	adHandler := handler.NewAdvertisementHandler(adService, loggers, handlerMetrics)

	adRouter.Get("/", adHandler.Index)
	adRouter.Get("/api/advertisements", adHandler.ListAdvertisements)
	adRouter.Post("/api/advertisements", adHandler.CreateAdvertisement)
	adRouter.Get("/api/advertisements/{id}", adHandler.GetAdvertisementByID)
	adRouter.Put("/api/advertisements/{id}", adHandler.UpdateAdvertisement)
	adRouter.Delete("/api/advertisements/{id}", adHandler.DeleteAdvertisement)
}
