// Package service contains the classification pipeline shared by every surface
// (HTTP, terminal UI, Telegram). ClassificationService wraps the configured
// llm.Classifier with the concerns that sit around a paid external call:
//
//	Throttle: a token bucket caps outbound calls per minute
//	Timeout:  each call gets its own deadline
//	Ledger:   every call is recorded (provider, model, outcome, latency)
//	Archive:  optionally keep a copy of each classified image
//
// It never caches and never retries: one Classify is one external call.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/ecosort/internal/capture"
	"github.com/fleveque/ecosort/internal/llm"
	"github.com/fleveque/ecosort/internal/model"
	"github.com/fleveque/ecosort/internal/storage"
)

// ErrNoArchivedImage means the ledger row exists but no image was kept for it.
var ErrNoArchivedImage = errors.New("no archived image for this classification")

// Options configure the decorators. Zero values disable the matching concern.
type Options struct {
	RatePerMinute int
	Timeout       time.Duration
}

// ClassificationService is the main entry point for classifying an image.
type ClassificationService struct {
	classifier llm.Classifier
	limiter    *rate.Limiter // nil = unlimited
	timeout    time.Duration
	repo       storage.ClassificationRepository // nil = no ledger
	archive    *storage.ImageArchive            // nil = images are not kept
	logger     *zap.Logger
}

// NewClassificationService wires the classifier with its decorators.
// repo and archive can be nil; the service then skips those steps.
func NewClassificationService(
	classifier llm.Classifier,
	repo storage.ClassificationRepository,
	archive *storage.ImageArchive,
	opts Options,
	logger *zap.Logger,
) *ClassificationService {
	s := &ClassificationService{
		classifier: classifier,
		timeout:    opts.Timeout,
		repo:       repo,
		archive:    archive,
		logger:     logger,
	}

	if opts.RatePerMinute > 0 {
		// rate.Every returns a rate.Limit from the interval between events.
		// Burst of 1: strict spacing, no saved-up bursts of paid calls.
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), 1)
	}
	return s
}

func (s *ClassificationService) ProviderName() string { return s.classifier.ProviderName() }
func (s *ClassificationService) ModelName() string    { return s.classifier.ModelName() }

// Classify sends the image to the external service exactly once and records the outcome.
func (s *ClassificationService) Classify(ctx context.Context, img model.Image) (model.ClassificationResult, error) {
	// Wait blocks until a token is available or the context is cancelled.
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return model.ClassificationResult{}, err
		}
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.classifier.Classify(callCtx, img.Data, img.MIMEType)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		s.logger.Warn("classification failed",
			zap.String("provider", s.classifier.ProviderName()),
			zap.String("kind", llm.ErrorKind(err)),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
	} else {
		s.logger.Info("classified image",
			zap.String("provider", s.classifier.ProviderName()),
			zap.String("category", string(result.Category)),
			zap.Float64("confidence", result.Confidence),
			zap.Int64("duration_ms", duration),
		)
	}

	// Recording uses a fresh context: a caller that gave up must not lose the ledger row.
	s.record(context.WithoutCancel(ctx), img, result, err, duration)

	return result, err
}

func (s *ClassificationService) record(ctx context.Context, img model.Image, result model.ClassificationResult, callErr error, durationMs int64) {
	if s.repo == nil {
		return
	}

	rec := &model.ClassificationRecord{
		Provider:   s.classifier.ProviderName(),
		Model:      s.classifier.ModelName(),
		Success:    callErr == nil,
		DurationMs: durationMs,
	}
	if callErr == nil {
		category := string(result.Category)
		rec.ItemName = &result.ItemName
		rec.Category = &category
		rec.Confidence = &result.Confidence
	} else {
		kind := llm.ErrorKind(callErr)
		rec.ErrorKind = &kind
	}

	if s.archive != nil && len(img.Data) > 0 {
		path, err := s.archive.Save(img)
		if err != nil {
			s.logger.Error("archiving image", zap.Error(err))
		} else {
			rec.ImagePath = &path
		}
	}

	// Ledger failures are logged, never surfaced: the user still gets the answer.
	if err := s.repo.Create(ctx, rec); err != nil {
		s.logger.Error("recording classification", zap.Error(err))
	}
}

// Stats summarizes the ledger.
type Stats struct {
	Provider      string                `json:"provider"`
	Model         string                `json:"model"`
	Total         int64                 `json:"total"`
	Failures      int64                 `json:"failures"`
	AvgDurationMs float64               `json:"avg_duration_ms"`
	ByCategory    []model.CategoryCount `json:"by_category"`
}

// Stats aggregates the ledger. It returns zero counts when no ledger is configured.
func (s *ClassificationService) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Provider:   s.classifier.ProviderName(),
		Model:      s.classifier.ModelName(),
		ByCategory: []model.CategoryCount{},
	}
	if s.repo == nil {
		return stats, nil
	}

	var err error
	if stats.Total, err = s.repo.Count(ctx); err != nil {
		return nil, err
	}
	if stats.Failures, err = s.repo.CountFailures(ctx); err != nil {
		return nil, err
	}
	if stats.AvgDurationMs, err = s.repo.AverageDurationMs(ctx); err != nil {
		return nil, err
	}
	byCat, err := s.repo.CountByCategory(ctx)
	if err != nil {
		return nil, err
	}
	if byCat != nil {
		stats.ByCategory = byCat
	}
	return stats, nil
}

// Recent returns the latest ledger rows, newest first.
func (s *ClassificationService) Recent(ctx context.Context, limit int) ([]model.ClassificationRecord, error) {
	if s.repo == nil {
		return []model.ClassificationRecord{}, nil
	}
	return s.repo.Recent(ctx, limit)
}

// ArchivedImage returns the image kept for ledger row id.
func (s *ClassificationService) ArchivedImage(ctx context.Context, id int64) (model.Image, error) {
	if s.repo == nil || s.archive == nil {
		return model.Image{}, ErrNoArchivedImage
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return model.Image{}, err
	}
	if rec.ImagePath == nil || !s.archive.Exists(*rec.ImagePath) {
		return model.Image{}, ErrNoArchivedImage
	}

	data, err := s.archive.Read(*rec.ImagePath)
	if err != nil {
		return model.Image{}, err
	}
	mimeType, err := capture.DetectMIMEType(data)
	if err != nil {
		mimeType = "application/octet-stream"
	}
	return model.Image{Data: data, MIMEType: mimeType}, nil
}

// PruneArchive deletes archived images older than retention. It is a no-op
// without an archive or with a non-positive retention.
func (s *ClassificationService) PruneArchive(retention time.Duration) (int, error) {
	if s.archive == nil || retention <= 0 {
		return 0, nil
	}
	removed, err := s.archive.PruneBefore(time.Now().Add(-retention))
	if removed > 0 {
		s.logger.Info("pruned image archive", zap.Int("days_removed", removed))
	}
	return removed, err
}
