package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"gitlab.com/servio/api/station-feedback-service/internal/apperrors"
	"gitlab.com/servio/api/station-feedback-service/internal/model"
	"gitlab.com/servio/api/station-feedback-service/internal/observer"
	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
	"gitlab.com/servio/api/station-feedback-service/pkg/utils"
)

// --- Conversation Repository Methods ---

// FindConversationByPhone loads the conversation state for a sender.
// Returns apperrors.ErrNotFound when no conversation exists.
func (r *PostgresRepo) FindConversationByPhone(ctx context.Context, phone string) (*model.Conversation, error) {
	loggerCtx := logger.FromContext(ctx)

	var conv model.Conversation
	operation := func() error {
		result := r.db.WithContext(ctx).Where("phone = ?", phone).First(&conv)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindConversationByPhone", operation)
	observer.ObserveDbOperationDuration("find_by_phone", "conversation", time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find conversation after retries",
			zap.String("phone", utils.MaskPhone(phone)),
			zap.Error(findErr))
		return nil, findErr
	}
	return &conv, nil
}

// UpsertConversation saves conversation state keyed by phone, replacing the
// step and scratch payload of any existing row.
func (r *PostgresRepo) UpsertConversation(ctx context.Context, conv model.Conversation) error {
	loggerCtx := logger.FromContext(ctx)

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone"}},
			DoUpdates: clause.AssignmentColumns([]string{"step", "scratch", "updated_at"}),
		}).Create(&conv)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpsertConversation", operation)
	observer.ObserveDbOperationDuration("upsert", "conversation", time.Since(startTime), commitErr)

	if commitErr != nil {
		loggerCtx.Error("Failed to upsert conversation after retries",
			zap.String("phone", utils.MaskPhone(conv.Phone)),
			zap.String("step", string(conv.Step)),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// DeleteConversation clears the conversation state for a sender. Deleting a
// conversation that does not exist is a no-op.
func (r *PostgresRepo) DeleteConversation(ctx context.Context, phone string) error {
	loggerCtx := logger.FromContext(ctx)

	operation := func() error {
		result := r.db.WithContext(ctx).Where("phone = ?", phone).Delete(&model.Conversation{})
		if result.Error != nil {
			return fmt.Errorf("%w: delete failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "DeleteConversation", operation)
	observer.ObserveDbOperationDuration("delete", "conversation", time.Since(startTime), commitErr)

	if commitErr != nil {
		loggerCtx.Error("Failed to delete conversation after retries",
			zap.String("phone", utils.MaskPhone(phone)),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}
