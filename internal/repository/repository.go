package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ads-api/internal/domain"
	"ads-api/internal/infrastructure/cache"
	"ads-api/internal/infrastructure/metrics"
	"ads-api/pkg/database"

	"github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const listCacheKey = "advertisements:all"

type AdvertisementRepository interface {
	ListAdvertisements(ctx context.Context) ([]*domain.Advertisement, error)
	GetAdvertisementByID(ctx context.Context, id int64) (*domain.Advertisement, error)
	CreateAdvertisement(ctx context.Context, input domain.CreateAdvertisementInput) (*domain.Advertisement, error)
	UpdateAdvertisement(ctx context.Context, id int64, input domain.UpdateAdvertisementInput) (*domain.Advertisement, error)
	DeleteAdvertisement(ctx context.Context, id int64) error
}

// sqlAdvertisementRepository runs every call in its own transaction. Missing
// rows are reported as sql.ErrNoRows.
type sqlAdvertisementRepository struct {
	db       *sql.DB
	dialect  database.Dialect
	builder  squirrel.StatementBuilderType
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.RepositoryMetrics
	tracer   trace.Tracer
}

func NewSQLAdvertisementRepository(db *sql.DB, dialect database.Dialect, cache cache.Cache, cacheTTL time.Duration, metrics *metrics.RepositoryMetrics) AdvertisementRepository {
	var placeholder squirrel.PlaceholderFormat = squirrel.Question
	if dialect == database.Postgres {
		placeholder = squirrel.Dollar
	}

	tracer := otel.Tracer("ads-api/repository")
	return &sqlAdvertisementRepository{
		db:       db,
		dialect:  dialect,
		builder:  squirrel.StatementBuilder.PlaceholderFormat(placeholder),
		cache:    cache,
		cacheTTL: cacheTTL,
		metrics:  metrics,
		tracer:   tracer,
	}
}

func advertisementCacheKey(id int64) string {
	return fmt.Sprintf("advertisement:%d", id)
}

// withinTx commits when fn succeeds and rolls back on error or panic.
func (r *sqlAdvertisementRepository) withinTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}

		if err != nil {
			_ = tx.Rollback()
			return
		}

		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	return fn(tx)
}

func (r *sqlAdvertisementRepository) selectByID(ctx context.Context, tx *sql.Tx, id int64, forUpdate bool) (*domain.Advertisement, error) {
	query := r.builder.Select(advertisementColumns...).
		From(advertisementsTable).
		Where(squirrel.Eq{"id": id})

	// SQLite has no row locks; its single writer serialises updates anyway.
	if forUpdate && r.dialect != database.SQLite {
		query = query.Suffix("FOR UPDATE")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	return scanAdvertisement(tx.QueryRowContext(ctx, stmt, args...))
}

func (r *sqlAdvertisementRepository) readCache(ctx context.Context, key string, dest any) bool {
	cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Cache Get")
	defer cacheSpan.End()

	cached, err := r.cache.Get(cacheSpanCtx, key)
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(cached), dest) == nil
}

func (r *sqlAdvertisementRepository) writeCache(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}

	cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Cache Set")
	defer cacheSpan.End()

	if err := r.cache.Set(cacheSpanCtx, key, string(payload), r.cacheTTL); err != nil {
		cacheSpan.RecordError(err)
	}
}

func (r *sqlAdvertisementRepository) invalidateCache(ctx context.Context, keys ...string) {
	cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Cache Delete")
	defer cacheSpan.End()

	if err := r.cache.Delete(cacheSpanCtx, keys...); err != nil {
		cacheSpan.RecordError(err)
	}
}

func (r *sqlAdvertisementRepository) ListAdvertisements(ctx context.Context) ([]*domain.Advertisement, error) {
	ctx, span := r.tracer.Start(ctx, "Repository ListAdvertisements")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("ListAdvertisements", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("ListAdvertisements", status).Observe(duration)
	}()

	var cached []*domain.Advertisement
	if r.readCache(ctx, listCacheKey, &cached) && cached != nil {
		status = "cache_hit"
		return cached, nil
	}

	query, args, err := r.builder.Select(advertisementColumns...).
		From(advertisementsTable).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	ads := make([]*domain.Advertisement, 0)
	err = r.withinTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to retrieve advertisements: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			ad, err := scanAdvertisement(rows)
			if err != nil {
				return fmt.Errorf("failed to scan advertisement: %w", err)
			}
			ads = append(ads, ad)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		return nil
	})
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("advertisements.count", len(ads)))
	r.writeCache(ctx, listCacheKey, ads)

	return ads, nil
}

func (r *sqlAdvertisementRepository) GetAdvertisementByID(ctx context.Context, id int64) (*domain.Advertisement, error) {
	ctx, span := r.tracer.Start(ctx, "Repository GetAdvertisementByID")
	defer span.End()

	span.SetAttributes(attribute.Int64("advertisement.id", id))

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("GetAdvertisementByID", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("GetAdvertisementByID", status).Observe(duration)
	}()

	cacheKey := advertisementCacheKey(id)

	var cached domain.Advertisement
	if r.readCache(ctx, cacheKey, &cached) {
		status = "cache_hit"
		return &cached, nil
	}

	var ad *domain.Advertisement
	err := r.withinTx(ctx, func(tx *sql.Tx) error {
		var err error
		ad, err = r.selectByID(ctx, tx, id, false)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			status = "not_found"
			return nil, err
		}
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get advertisement: %w", err)
	}

	r.writeCache(ctx, cacheKey, ad)

	return ad, nil
}

func (r *sqlAdvertisementRepository) CreateAdvertisement(ctx context.Context, input domain.CreateAdvertisementInput) (*domain.Advertisement, error) {
	ctx, span := r.tracer.Start(ctx, "Repository CreateAdvertisement")
	defer span.End()

	span.SetAttributes(
		attribute.String("advertisement.title", input.Title),
		attribute.String("advertisement.owner", input.Owner),
	)

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("CreateAdvertisement", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("CreateAdvertisement", status).Observe(duration)
	}()

	insert := r.builder.Insert(advertisementsTable).
		Columns("title", "description", "owner").
		Values(input.Title, input.Description, input.Owner)

	r.invalidateCache(ctx, listCacheKey)

	var created *domain.Advertisement
	err := r.withinTx(ctx, func(tx *sql.Tx) error {
		id, err := r.insert(ctx, tx, insert)
		if err != nil {
			return err
		}

		created, err = r.selectByID(ctx, tx, id, false)
		if err != nil {
			return fmt.Errorf("failed to fetch inserted advertisement: %w", err)
		}
		return nil
	})
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("advertisement.id", created.ID))
	r.invalidateCache(ctx, listCacheKey)

	return created, nil
}

// insert returns the generated id. pgx does not implement LastInsertId, so
// PostgreSQL uses RETURNING.
func (r *sqlAdvertisementRepository) insert(ctx context.Context, tx *sql.Tx, insert squirrel.InsertBuilder) (int64, error) {
	var id int64

	if r.dialect == database.Postgres {
		query, args, err := insert.Suffix("RETURNING id").ToSql()
		if err != nil {
			return 0, fmt.Errorf("failed to build insert query: %w", err)
		}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to insert advertisement: %w", err)
		}
		return id, nil
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build insert query: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert advertisement: %w", err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

func (r *sqlAdvertisementRepository) UpdateAdvertisement(ctx context.Context, id int64, input domain.UpdateAdvertisementInput) (*domain.Advertisement, error) {
	ctx, span := r.tracer.Start(ctx, "Repository UpdateAdvertisement")
	defer span.End()

	span.SetAttributes(attribute.Int64("advertisement.id", id))

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("UpdateAdvertisement", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("UpdateAdvertisement", status).Observe(duration)
	}()

	update := r.builder.Update(advertisementsTable).Where(squirrel.Eq{"id": id})
	if input.Title != nil {
		update = update.Set("title", *input.Title)
	}
	if input.Description != nil {
		update = update.Set("description", *input.Description)
	}
	if input.Owner != nil {
		update = update.Set("owner", *input.Owner)
	}

	// Cleared on both sides of the commit so a reader that cached the old row
	// while the transaction ran is evicted again.
	r.invalidateCache(ctx, advertisementCacheKey(id), listCacheKey)

	var updated *domain.Advertisement
	err := r.withinTx(ctx, func(tx *sql.Tx) error {
		if _, err := r.selectByID(ctx, tx, id, true); err != nil {
			return err
		}

		if !input.IsEmpty() {
			query, args, err := update.ToSql()
			if err != nil {
				return fmt.Errorf("failed to build update query: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to update advertisement: %w", err)
			}
		}

		var err error
		updated, err = r.selectByID(ctx, tx, id, false)
		if err != nil {
			return fmt.Errorf("failed to fetch updated advertisement: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			status = "not_found"
			return nil, err
		}
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	r.invalidateCache(ctx, advertisementCacheKey(id), listCacheKey)

	return updated, nil
}

func (r *sqlAdvertisementRepository) DeleteAdvertisement(ctx context.Context, id int64) error {
	ctx, span := r.tracer.Start(ctx, "Repository DeleteAdvertisement")
	defer span.End()

	span.SetAttributes(attribute.Int64("advertisement.id", id))

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("DeleteAdvertisement", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("DeleteAdvertisement", status).Observe(duration)
	}()

	query, args, err := r.builder.Delete(advertisementsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	r.invalidateCache(ctx, advertisementCacheKey(id), listCacheKey)

	err = r.withinTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to delete advertisement: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to retrieve rows affected: %w", err)
		}

		if rowsAffected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			status = "not_found"
			return err
		}
		status = "error"
		span.RecordError(err)
		return err
	}

	r.invalidateCache(ctx, advertisementCacheKey(id), listCacheKey)

	return nil
}
