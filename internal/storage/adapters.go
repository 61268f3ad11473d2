package storage

import (
	"context"
	"time"

	"gitlab.com/servio/api/station-feedback-service/internal/model"
)

// FeedbackRepoAdapter adapts the PostgresRepo to the FeedbackRepo interface
type FeedbackRepoAdapter struct {
	postgres *PostgresRepo
}

// NewFeedbackRepoAdapter creates a new feedback repository adapter
func NewFeedbackRepoAdapter(postgres *PostgresRepo) FeedbackRepo {
	return &FeedbackRepoAdapter{postgres: postgres}
}

// Create inserts a new feedback record
func (a *FeedbackRepoAdapter) Create(ctx context.Context, feedback *model.Feedback) error {
	return a.postgres.CreateFeedback(ctx, feedback)
}

// FindByID finds a feedback record by ID
func (a *FeedbackRepoAdapter) FindByID(ctx context.Context, id int64) (*model.Feedback, error) {
	return a.postgres.FindFeedbackByID(ctx, id)
}

// Update applies column changes to a feedback record
func (a *FeedbackRepoAdapter) Update(ctx context.Context, id int64, changes map[string]interface{}) error {
	return a.postgres.UpdateFeedback(ctx, id, changes)
}

// UpdateStatus transitions a feedback record's status
func (a *FeedbackRepoAdapter) UpdateStatus(ctx context.Context, id int64, status string) error {
	return a.postgres.UpdateFeedbackStatus(ctx, id, status)
}

// Delete removes a feedback record
func (a *FeedbackRepoAdapter) Delete(ctx context.Context, id int64) error {
	return a.postgres.DeleteFeedback(ctx, id)
}

// FindAll lists all feedback records, newest first
func (a *FeedbackRepoAdapter) FindAll(ctx context.Context) ([]model.Feedback, error) {
	return a.postgres.FindAllFeedback(ctx)
}

// FindCreatedWithin lists feedback records created in a time range
func (a *FeedbackRepoAdapter) FindCreatedWithin(ctx context.Context, start, end time.Time) ([]model.Feedback, error) {
	return a.postgres.FindFeedbackCreatedWithin(ctx, start, end)
}

func (a *FeedbackRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// ConversationRepoAdapter adapts the PostgresRepo to the ConversationRepo interface
type ConversationRepoAdapter struct {
	postgres *PostgresRepo
}

// NewConversationRepoAdapter creates a new conversation repository adapter
func NewConversationRepoAdapter(postgres *PostgresRepo) ConversationRepo {
	return &ConversationRepoAdapter{postgres: postgres}
}

// FindByPhone loads conversation state for a sender
func (a *ConversationRepoAdapter) FindByPhone(ctx context.Context, phone string) (*model.Conversation, error) {
	return a.postgres.FindConversationByPhone(ctx, phone)
}

// Upsert saves conversation state keyed by phone
func (a *ConversationRepoAdapter) Upsert(ctx context.Context, conv model.Conversation) error {
	return a.postgres.UpsertConversation(ctx, conv)
}

// Delete clears conversation state for a sender
func (a *ConversationRepoAdapter) Delete(ctx context.Context, phone string) error {
	return a.postgres.DeleteConversation(ctx, phone)
}

func (a *ConversationRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// Ensure adapters implement the interfaces
var (
	_ FeedbackRepo     = (*FeedbackRepoAdapter)(nil)
	_ ConversationRepo = (*ConversationRepoAdapter)(nil)
)
