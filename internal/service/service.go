package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ads-api/internal/domain"
	"ads-api/internal/infrastructure/metrics"
	"ads-api/internal/repository"
	"ads-api/internal/validation"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrAdvertisementNotFound = errors.New("advertisement not found")

type AdvertisementService interface {
	ListAdvertisements(ctx context.Context) ([]*domain.Advertisement, error)
	GetAdvertisementByID(ctx context.Context, id int64) (*domain.Advertisement, error)
	CreateAdvertisement(ctx context.Context, input domain.CreateAdvertisementInput) (*domain.Advertisement, error)
	UpdateAdvertisement(ctx context.Context, id int64, input domain.UpdateAdvertisementInput) (*domain.Advertisement, error)
	DeleteAdvertisement(ctx context.Context, id int64) error
}

type advertisementService struct {
	repository repository.AdvertisementRepository
	validator  *validation.Validator
	metrics    *metrics.ServiceMetrics
	tracer     trace.Tracer
}

func NewAdvertisementService(repository repository.AdvertisementRepository, validator *validation.Validator, metrics *metrics.ServiceMetrics) AdvertisementService {
	tracer := otel.Tracer("ads-api/service")
	return &advertisementService{
		repository: repository,
		validator:  validator,
		metrics:    metrics,
		tracer:     tracer,
	}
}

// isAssignable reports whether storage could ever have issued id. Ids start at 1.
func isAssignable(id int64) bool {
	return id > 0
}

// observe records the outcome of a service method once it returns.
func (s *advertisementService) observe(method string, startTime time.Time, status *string) {
	duration := time.Since(startTime).Seconds()
	s.metrics.MethodCount.WithLabelValues(method, *status).Inc()
	s.metrics.MethodDuration.WithLabelValues(method, *status).Observe(duration)
}

func (s *advertisementService) ListAdvertisements(ctx context.Context) ([]*domain.Advertisement, error) {
	ctx, span := s.tracer.Start(ctx, "ListAdvertisements")
	defer span.End()

	status := "success"
	defer s.observe("ListAdvertisements", time.Now(), &status)

	ads, err := s.repository.ListAdvertisements(ctx)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("advertisements.count", len(ads)))
	return ads, nil
}

func (s *advertisementService) GetAdvertisementByID(ctx context.Context, id int64) (*domain.Advertisement, error) {
	ctx, span := s.tracer.Start(ctx, "GetAdvertisementByID")
	defer span.End()

	status := "success"
	defer s.observe("GetAdvertisementByID", time.Now(), &status)

	if !isAssignable(id) {
		status = "not_found"
		return nil, ErrAdvertisementNotFound
	}

	ad, err := s.repository.GetAdvertisementByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			status = "not_found"
			return nil, ErrAdvertisementNotFound
		}
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("advertisement.id", id))
	return ad, nil
}

func (s *advertisementService) CreateAdvertisement(ctx context.Context, input domain.CreateAdvertisementInput) (*domain.Advertisement, error) {
	ctx, span := s.tracer.Start(ctx, "CreateAdvertisement")
	defer span.End()

	status := "success"
	defer s.observe("CreateAdvertisement", time.Now(), &status)

	if err := s.validator.Struct(input); err != nil {
		status = "invalid"
		return nil, err
	}

	created, err := s.repository.CreateAdvertisement(ctx, input)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("advertisement.id", created.ID),
		attribute.String("advertisement.title", created.Title),
		attribute.String("advertisement.owner", created.Owner),
	)
	return created, nil
}

func (s *advertisementService) UpdateAdvertisement(ctx context.Context, id int64, input domain.UpdateAdvertisementInput) (*domain.Advertisement, error) {
	ctx, span := s.tracer.Start(ctx, "UpdateAdvertisement")
	defer span.End()

	status := "success"
	defer s.observe("UpdateAdvertisement", time.Now(), &status)

	if err := s.validator.Struct(input); err != nil {
		status = "invalid"
		return nil, err
	}

	if !isAssignable(id) {
		status = "not_found"
		return nil, ErrAdvertisementNotFound
	}

	updated, err := s.repository.UpdateAdvertisement(ctx, id, input)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			status = "not_found"
			return nil, ErrAdvertisementNotFound
		}
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("advertisement.id", updated.ID),
		attribute.String("advertisement.title", updated.Title),
	)
	return updated, nil
}

func (s *advertisementService) DeleteAdvertisement(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "DeleteAdvertisement")
	defer span.End()

	status := "success"
	defer s.observe("DeleteAdvertisement", time.Now(), &status)

	if !isAssignable(id) {
		status = "not_found"
		return ErrAdvertisementNotFound
	}

	if err := s.repository.DeleteAdvertisement(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			status = "not_found"
			return ErrAdvertisementNotFound
		}
		status = "error"
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.Int64("advertisement.id", id))
	return nil
}
