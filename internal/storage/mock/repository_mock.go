package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"gitlab.com/servio/api/station-feedback-service/internal/model"
)

// --- FeedbackRepo Mock ---

// FeedbackRepoMock mocks the FeedbackRepo interface
type FeedbackRepoMock struct {
	mock.Mock
}

// Create mocks the Create method
func (m *FeedbackRepoMock) Create(ctx context.Context, feedback *model.Feedback) error {
	args := m.Called(ctx, feedback)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *FeedbackRepoMock) FindByID(ctx context.Context, id int64) (*model.Feedback, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Feedback), args.Error(1)
}

// Update mocks the Update method
func (m *FeedbackRepoMock) Update(ctx context.Context, id int64, changes map[string]interface{}) error {
	args := m.Called(ctx, id, changes)
	return args.Error(0)
}

// UpdateStatus mocks the UpdateStatus method
func (m *FeedbackRepoMock) UpdateStatus(ctx context.Context, id int64, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// Delete mocks the Delete method
func (m *FeedbackRepoMock) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// FindAll mocks the FindAll method
func (m *FeedbackRepoMock) FindAll(ctx context.Context) ([]model.Feedback, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Feedback), args.Error(1)
}

// FindCreatedWithin mocks the FindCreatedWithin method
func (m *FeedbackRepoMock) FindCreatedWithin(ctx context.Context, start, end time.Time) ([]model.Feedback, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Feedback), args.Error(1)
}

func (m *FeedbackRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- ConversationRepo Mock ---

// ConversationRepoMock mocks the ConversationRepo interface
type ConversationRepoMock struct {
	mock.Mock
}

// FindByPhone mocks the FindByPhone method
func (m *ConversationRepoMock) FindByPhone(ctx context.Context, phone string) (*model.Conversation, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

// Upsert mocks the Upsert method
func (m *ConversationRepoMock) Upsert(ctx context.Context, conv model.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

// Delete mocks the Delete method
func (m *ConversationRepoMock) Delete(ctx context.Context, phone string) error {
	args := m.Called(ctx, phone)
	return args.Error(0)
}

func (m *ConversationRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
