package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/ecosort/internal/model"
)

// ClassificationRepository persists the ledger of classification calls.
// The ledger is write-mostly: rows are appended and aggregated, never updated,
// and never consulted to answer a classification.
//
// Go interfaces are implicit: any struct that has these methods satisfies it.
type ClassificationRepository interface {
	Create(ctx context.Context, rec *model.ClassificationRecord) error
	Count(ctx context.Context) (int64, error)
	CountFailures(ctx context.Context) (int64, error)
	CountByCategory(ctx context.Context) ([]model.CategoryCount, error)
	AverageDurationMs(ctx context.Context) (float64, error)
	Recent(ctx context.Context, limit int) ([]model.ClassificationRecord, error)
	GetByID(ctx context.Context, id int64) (*model.ClassificationRecord, error)
}

// ErrRecordNotFound is returned by GetByID for an unknown id.
var ErrRecordNotFound = errors.New("classification record not found")

// sqlClassificationRepository works on both SQLite and PostgreSQL.
// Queries are written with ? placeholders and passed through db.Rebind, which
// turns them into $1, $2, ... for the pgx driver.
type sqlClassificationRepository struct {
	db *sqlx.DB
}

// NewClassificationRepository creates a SQL-backed ClassificationRepository.
func NewClassificationRepository(db *sqlx.DB) ClassificationRepository {
	return &sqlClassificationRepository{db: db}
}

func (r *sqlClassificationRepository) Create(ctx context.Context, rec *model.ClassificationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	// RETURNING works on PostgreSQL and on SQLite >= 3.35, so one statement serves both.
	query := r.db.Rebind(`
		INSERT INTO classifications
			(provider, model, item_name, category, confidence, success, error_kind, duration_ms, image_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := r.db.QueryRowxContext(ctx, query,
		rec.Provider, rec.Model, rec.ItemName, rec.Category, rec.Confidence,
		rec.Success, rec.ErrorKind, rec.DurationMs, rec.ImagePath, rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("creating classification record: %w", err)
	}
	return nil
}

func (r *sqlClassificationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM classifications")
	return count, err
}

func (r *sqlClassificationRepository) CountFailures(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, r.db.Rebind("SELECT COUNT(*) FROM classifications WHERE success = ?"), false)
	return count, err
}

// CountByCategory aggregates successful classifications per category, most frequent first.
func (r *sqlClassificationRepository) CountByCategory(ctx context.Context) ([]model.CategoryCount, error) {
	var counts []model.CategoryCount
	err := r.db.SelectContext(ctx, &counts, r.db.Rebind(`
		SELECT category, COUNT(*) AS count
		FROM classifications
		WHERE success = ? AND category IS NOT NULL
		GROUP BY category
		ORDER BY count DESC, category ASC
	`), true)
	if err != nil {
		return nil, fmt.Errorf("counting by category: %w", err)
	}
	return counts, nil
}

func (r *sqlClassificationRepository) AverageDurationMs(ctx context.Context) (float64, error) {
	// COALESCE turns the NULL of an empty table into 0.
	var avg float64
	err := r.db.GetContext(ctx, &avg, "SELECT COALESCE(AVG(duration_ms), 0) FROM classifications")
	if err != nil {
		return 0, fmt.Errorf("averaging duration: %w", err)
	}
	return avg, nil
}

func (r *sqlClassificationRepository) Recent(ctx context.Context, limit int) ([]model.ClassificationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var recs []model.ClassificationRecord
	err := r.db.SelectContext(ctx, &recs, r.db.Rebind(`
		SELECT id, provider, model, item_name, category, confidence, success, error_kind, duration_ms, image_path, created_at
		FROM classifications
		ORDER BY id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent classifications: %w", err)
	}
	return recs, nil
}

func (r *sqlClassificationRepository) GetByID(ctx context.Context, id int64) (*model.ClassificationRecord, error) {
	var rec model.ClassificationRecord
	err := r.db.GetContext(ctx, &rec, r.db.Rebind(`
		SELECT id, provider, model, item_name, category, confidence, success, error_kind, duration_ms, image_path, created_at
		FROM classifications
		WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting classification %d: %w", id, err)
	}
	return &rec, nil
}
