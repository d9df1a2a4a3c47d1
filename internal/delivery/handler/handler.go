package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"ads-api/internal/domain"
	"ads-api/internal/infrastructure/metrics"
	"ads-api/internal/service"
	"ads-api/internal/validation"
	"ads-api/pkg/logger"
	"ads-api/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	collectionPath = "/api/advertisements"
	itemPath       = "/api/advertisements/{id}"

	maxBodyBytes = 1 << 20

	IndexText = "Advertisements API. Endpoints: " +
		"GET/POST /api/advertisements, " +
		"GET/PUT/DELETE /api/advertisements/<id>"
)

const (
	msgInvalidCreateBody = "Invalid JSON or missing fields"
	msgInvalidUpdateBody = "Invalid JSON"
	msgNotFound          = "Advertisement not found"
	msgInvalidID         = "Invalid advertisement id"
	msgInternal          = "Internal server error"
)

// ValidationErrorResponse is the body of a 400 caused by constraint violations.
type ValidationErrorResponse struct {
	Errors []validation.FieldError `json:"errors"`
}

type AdvertisementHandler struct {
	service service.AdvertisementService
	logger  *logger.Loggers
	metrics *metrics.HandlerMetrics
	tracer  trace.Tracer
}

func NewAdvertisementHandler(service service.AdvertisementService, logger *logger.Loggers, metrics *metrics.HandlerMetrics) *AdvertisementHandler {
	tracer := otel.Tracer("ads-api/handler")
	return &AdvertisementHandler{
		service: service,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}
}

func (h *AdvertisementHandler) observe(method, endpoint string, startTime time.Time, status *string) {
	duration := time.Since(startTime).Seconds()
	h.metrics.RequestCount.WithLabelValues(method, endpoint, *status).Inc()
	h.metrics.RequestDuration.WithLabelValues(method, endpoint, *status).Observe(duration)
}

func (h *AdvertisementHandler) Index(w http.ResponseWriter, r *http.Request) {
	status := "success"
	defer h.observe(http.MethodGet, "/", time.Now(), &status)

	utils.RespondWithText(w, http.StatusOK, IndexText)
}

func (h *AdvertisementHandler) ListAdvertisements(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListAdvertisements")
	defer span.End()

	status := "success"
	defer h.observe(http.MethodGet, collectionPath, time.Now(), &status)

	ads, err := h.service.ListAdvertisements(ctx)
	if err != nil {
		status = "error"
		h.logger.ErrorLogger.Error("failed to list advertisements", utils.Err(err))
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, msgInternal)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, ads)
}

func (h *AdvertisementHandler) CreateAdvertisement(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateAdvertisement")
	defer span.End()

	status := "success"
	defer h.observe(http.MethodPost, collectionPath, time.Now(), &status)

	var input domain.CreateAdvertisementInput
	if err := decodeBody(w, r, &input); err != nil {
		status = "invalid"
		span.RecordError(err)
		respondDecodeError(w, err, msgInvalidCreateBody)
		return
	}

	span.SetAttributes(
		attribute.String("advertisement.title", input.Title),
		attribute.String("advertisement.owner", input.Owner),
	)

	created, err := h.service.CreateAdvertisement(ctx, input)
	if err != nil {
		status = h.respondServiceError(w, err, "failed to create advertisement")
		span.RecordError(err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, created)
}

func (h *AdvertisementHandler) GetAdvertisementByID(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetAdvertisementByID")
	defer span.End()

	status := "success"
	defer h.observe(http.MethodGet, itemPath, time.Now(), &status)

	id, ok := parseID(r)
	if !ok {
		status = "invalid"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	span.SetAttributes(attribute.Int64("advertisement.id", id))

	ad, err := h.service.GetAdvertisementByID(ctx, id)
	if err != nil {
		status = h.respondServiceError(w, err, "failed to get advertisement")
		span.RecordError(err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, ad)
}

func (h *AdvertisementHandler) UpdateAdvertisement(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateAdvertisement")
	defer span.End()

	status := "success"
	defer h.observe(http.MethodPut, itemPath, time.Now(), &status)

	id, ok := parseID(r)
	if !ok {
		status = "invalid"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	span.SetAttributes(attribute.Int64("advertisement.id", id))

	var input domain.UpdateAdvertisementInput
	if err := decodeBody(w, r, &input); err != nil {
		status = "invalid"
		span.RecordError(err)
		respondDecodeError(w, err, msgInvalidUpdateBody)
		return
	}

	updated, err := h.service.UpdateAdvertisement(ctx, id, input)
	if err != nil {
		status = h.respondServiceError(w, err, "failed to update advertisement")
		span.RecordError(err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, updated)
}

func (h *AdvertisementHandler) DeleteAdvertisement(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteAdvertisement")
	defer span.End()

	status := "success"
	defer h.observe(http.MethodDelete, itemPath, time.Now(), &status)

	id, ok := parseID(r)
	if !ok {
		status = "invalid"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	span.SetAttributes(attribute.Int64("advertisement.id", id))

	if err := h.service.DeleteAdvertisement(ctx, id); err != nil {
		status = h.respondServiceError(w, err, "failed to delete advertisement")
		span.RecordError(err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// respondServiceError writes the response for err and returns the metrics status.
func (h *AdvertisementHandler) respondServiceError(w http.ResponseWriter, err error, logMsg string) string {
	var verrs *validation.Errors

	switch {
	case errors.As(err, &verrs):
		utils.RespondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{Errors: verrs.Fields})
		return "invalid"
	case errors.Is(err, service.ErrAdvertisementNotFound):
		utils.RespondWithErrorJSON(w, http.StatusNotFound, msgNotFound)
		return "not_found"
	default:
		h.logger.ErrorLogger.Error(logMsg, utils.Err(err))
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, msgInternal)
		return "error"
	}
}

// respondDecodeError reports a field of the wrong JSON type as a field error
// and anything else as a malformed body.
func respondDecodeError(w http.ResponseWriter, err error, msg string) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		utils.RespondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Errors: []validation.FieldError{{
				Field:   typeErr.Field,
				Rule:    "type",
				Message: fmt.Sprintf("must be of type %s", typeErr.Type),
			}},
		})
		return
	}

	utils.RespondWithErrorJSON(w, http.StatusBadRequest, msg)
}

var errNotObject = errors.New("request body must be a JSON object")

// decodeBody reads a JSON object into dest. A literal null is rejected along
// with every other non-object body.
func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errNotObject
	}
	return json.Unmarshal(trimmed, dest)
}

// parseID accepts any integer. Ids that storage never issued are reported
// as not found further down.
func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
