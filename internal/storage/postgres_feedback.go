package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/servio/api/station-feedback-service/internal/apperrors"
	"gitlab.com/servio/api/station-feedback-service/internal/model"
	"gitlab.com/servio/api/station-feedback-service/internal/observer"
	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
	"gitlab.com/servio/api/station-feedback-service/pkg/utils"
)

// --- Feedback Repository Methods ---

// CreateFeedback inserts a new feedback record. The generated ID and
// creation timestamp are written back onto the passed record.
func (r *PostgresRepo) CreateFeedback(ctx context.Context, feedback *model.Feedback) error {
	loggerCtx := logger.FromContext(ctx)

	operation := func() error {
		result := r.db.WithContext(ctx).Create(feedback)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			loggerCtx.Warn("CreateFeedback resulted in 0 rows affected", zap.String("phone", feedback.Phone))
			return fmt.Errorf("%w: create operation affected 0 rows", apperrors.ErrDatabase)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "CreateFeedback", operation)
	observer.ObserveDbOperationDuration("create", "feedback", time.Since(startTime), commitErr)

	if commitErr != nil {
		loggerCtx.Error("Failed to create feedback after retries",
			zap.String("phone", feedback.Phone),
			zap.Error(commitErr))
		return commitErr // Already wrapped
	}
	return nil
}

// FindFeedbackByID finds a feedback record by its primary key.
func (r *PostgresRepo) FindFeedbackByID(ctx context.Context, id int64) (*model.Feedback, error) {
	loggerCtx := logger.FromContext(ctx)

	var feedback model.Feedback
	operation := func() error {
		result := r.db.WithContext(ctx).First(&feedback, id)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindFeedbackByID", operation)
	observer.ObserveDbOperationDuration("find_by_id", "feedback", time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find feedback by id after retries",
			zap.Int64("feedback_id", id),
			zap.Error(findErr))
		return nil, findErr // Already wrapped
	}
	return &feedback, nil
}

// UpdateFeedback applies column changes to an existing record inside a
// transaction with a row lock. A record already in resolved status is
// terminal and rejects any further mutation with ErrConflict.
func (r *PostgresRepo) UpdateFeedback(ctx context.Context, id int64, changes map[string]interface{}) error {
	loggerCtx := logger.FromContext(ctx)

	// created_at is immutable once assigned
	delete(changes, "created_at")

	operation := func() error {
		tx := r.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return fmt.Errorf("%w: failed to begin transaction: %w", apperrors.ErrDatabase, tx.Error)
		}
		var txErr error
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			} else if txErr != nil {
				if rbErr := tx.Rollback().Error; rbErr != nil {
					loggerCtx.Error("Failed to rollback transaction after error", zap.Error(rbErr), zap.NamedError("originalTxError", txErr))
				}
			}
		}()

		var existing model.Feedback
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&existing, id)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				txErr = fmt.Errorf("%w: feedback not found for update (ID: %d)", apperrors.ErrNotFound, id)
				return backoff.Permanent(txErr)
			}
			txErr = fmt.Errorf("%w: failed to lock feedback row: %w", apperrors.ErrDatabase, result.Error)
			return txErr
		}

		if existing.Status == model.StatusResolved {
			txErr = fmt.Errorf("%w: feedback %d is resolved and immutable", apperrors.ErrConflict, id)
			return backoff.Permanent(txErr)
		}

		if updateErr := tx.Model(&existing).Updates(changes).Error; updateErr != nil {
			txErr = checkConstraintViolation(updateErr)
			return txErr
		}

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit update transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateFeedback", operation)
	observer.ObserveDbOperationDuration("update", "feedback", time.Since(startTime), commitErr)

	if commitErr != nil {
		loggerCtx.Error("Failed to update feedback after retries",
			zap.Int64("feedback_id", id),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// UpdateFeedbackStatus transitions a record's status. The resolved guard of
// UpdateFeedback applies.
func (r *PostgresRepo) UpdateFeedbackStatus(ctx context.Context, id int64, status string) error {
	return r.UpdateFeedback(ctx, id, map[string]interface{}{"status": status})
}

// DeleteFeedback removes a feedback record. Binary photo payloads live on
// the row and are discarded with it.
func (r *PostgresRepo) DeleteFeedback(ctx context.Context, id int64) error {
	loggerCtx := logger.FromContext(ctx)

	operation := func() error {
		result := r.db.WithContext(ctx).Delete(&model.Feedback{}, id)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return backoff.Permanent(fmt.Errorf("%w: feedback %d", apperrors.ErrNotFound, id))
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "DeleteFeedback", operation)
	observer.ObserveDbOperationDuration("delete", "feedback", time.Since(startTime), commitErr)

	if commitErr != nil {
		if errors.Is(commitErr, apperrors.ErrNotFound) {
			return apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to delete feedback after retries",
			zap.Int64("feedback_id", id),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindAllFeedback returns all feedback records ordered by creation time,
// newest first. Used by the administrative viewer.
func (r *PostgresRepo) FindAllFeedback(ctx context.Context) ([]model.Feedback, error) {
	loggerCtx := logger.FromContext(ctx)

	var records []model.Feedback
	operation := func() error {
		result := r.db.WithContext(ctx).Order("created_at DESC").Find(&records)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil // Success, even if no records found
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindAllFeedback", operation)
	observer.ObserveDbOperationDuration("find_all", "feedback", time.Since(startTime), findErr)

	if findErr != nil {
		loggerCtx.Error("Failed to list feedback after retries", zap.Error(findErr))
		return nil, findErr
	}
	return records, nil
}

// FindFeedbackCreatedWithin returns feedback records created inside the
// given time range, ordered by creation time ascending.
func (r *PostgresRepo) FindFeedbackCreatedWithin(ctx context.Context, start, end time.Time) ([]model.Feedback, error) {
	loggerCtx := logger.FromContext(ctx)

	var records []model.Feedback
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("created_at >= ? AND created_at < ?", start, end).
			Order("created_at ASC").
			Find(&records)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindFeedbackCreatedWithin", operation)
	observer.ObserveDbOperationDuration("find_within_range", "feedback", time.Since(startTime), findErr)

	if findErr != nil {
		loggerCtx.Error("Failed to query feedback time range after retries",
			zap.Time("start", start),
			zap.Time("end", end),
			zap.Error(findErr))
		return nil, findErr
	}
	return records, nil
}
