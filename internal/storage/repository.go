package storage

import (
	"context"
	"time"

	"gitlab.com/servio/api/station-feedback-service/internal/model"
)

// FeedbackRepo defines feedback record storage operations
type FeedbackRepo interface {
	Create(ctx context.Context, feedback *model.Feedback) error
	FindByID(ctx context.Context, id int64) (*model.Feedback, error)
	// Update applies the given column changes to a record. Mutating a record
	// already in resolved status fails with apperrors.ErrConflict.
	Update(ctx context.Context, id int64, changes map[string]interface{}) error
	UpdateStatus(ctx context.Context, id int64, status string) error
	Delete(ctx context.Context, id int64) error
	FindAll(ctx context.Context) ([]model.Feedback, error)
	FindCreatedWithin(ctx context.Context, start, end time.Time) ([]model.Feedback, error)
	Close(ctx context.Context) error
}

// ConversationRepo defines conversation state storage operations
type ConversationRepo interface {
	FindByPhone(ctx context.Context, phone string) (*model.Conversation, error)
	Upsert(ctx context.Context, conv model.Conversation) error
	Delete(ctx context.Context, phone string) error
	Close(ctx context.Context) error
}
