package report

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "gitlab.com/servio/api/station-feedback-service/internal/apperrors"
	"gitlab.com/servio/api/station-feedback-service/internal/mailer"
	mailermock "gitlab.com/servio/api/station-feedback-service/internal/mailer/mock"
	"gitlab.com/servio/api/station-feedback-service/internal/model"
	storagemock "gitlab.com/servio/api/station-feedback-service/internal/storage/mock"
	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *storagemock.FeedbackRepoMock, *mailermock.MailerMock, string) {
	repoMock := new(storagemock.FeedbackRepoMock)
	mailMock := new(mailermock.MailerMock)
	d := NewDispatcher(repoMock, mailMock, 24*time.Hour)
	tempDir := t.TempDir()
	d.tempDir = tempDir
	return d, repoMock, mailMock, tempDir
}

func sampleFeedback(id int64) model.Feedback {
	return model.Feedback{
		ID:             id,
		Phone:          "15551234567",
		RatingAir:      model.IntPtr(2),
		RatingWashroom: model.IntPtr(1),
		Comment:        "slow pump",
		Status:         model.StatusSubmitted,
		Method:         model.MethodWhatsApp,
		CreatedAt:      time.Now().Add(-time.Hour),
	}
}

func assertNoArtifacts(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "report artifacts must not survive a dispatch")
}

func TestDispatchScheduled_SendsAndCleansUp(t *testing.T) {
	d, repoMock, mailMock, tempDir := newTestDispatcher(t)

	records := []model.Feedback{sampleFeedback(1), sampleFeedback(2)}
	repoMock.On("FindCreatedWithin", mock.Anything, mock.Anything, mock.Anything).Return(records, nil)
	mailMock.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		// The attachment must exist while the mail is in flight.
		msg := args.Get(1).(mailer.Message)
		require.Len(t, msg.AttachmentPaths, 1)
		_, statErr := os.Stat(msg.AttachmentPaths[0])
		assert.NoError(t, statErr)
	}).Return(nil)

	err := d.DispatchScheduled(context.Background())
	require.NoError(t, err)

	repoMock.AssertExpectations(t)
	mailMock.AssertExpectations(t)
	assertNoArtifacts(t, tempDir)
}

func TestDispatchScheduled_EmptyWindowSkips(t *testing.T) {
	d, repoMock, mailMock, tempDir := newTestDispatcher(t)

	repoMock.On("FindCreatedWithin", mock.Anything, mock.Anything, mock.Anything).Return([]model.Feedback{}, nil)

	err := d.DispatchScheduled(context.Background())
	require.NoError(t, err)

	mailMock.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	assertNoArtifacts(t, tempDir)
}

func TestDispatchScheduled_MailFailureSwallowedAndCleansUp(t *testing.T) {
	d, repoMock, mailMock, tempDir := newTestDispatcher(t)

	repoMock.On("FindCreatedWithin", mock.Anything, mock.Anything, mock.Anything).Return([]model.Feedback{sampleFeedback(1)}, nil)
	mailMock.On("Send", mock.Anything, mock.Anything).Return(fmt.Errorf("%w: relay down", apperrors.ErrTransport))

	err := d.DispatchScheduled(context.Background())
	assert.NoError(t, err, "mail failures must not fail the schedule")
	assertNoArtifacts(t, tempDir)
}

func TestDispatchScheduled_QueryFailurePropagates(t *testing.T) {
	d, repoMock, mailMock, tempDir := newTestDispatcher(t)

	repoMock.On("FindCreatedWithin", mock.Anything, mock.Anything, mock.Anything).Return(nil, apperrors.ErrDatabase)

	err := d.DispatchScheduled(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
	mailMock.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	assertNoArtifacts(t, tempDir)
}

func TestDispatchImmediate_SendsUrgentAndCleansUp(t *testing.T) {
	d, repoMock, mailMock, tempDir := newTestDispatcher(t)

	fb := sampleFeedback(7)
	fb.RatingAir = model.IntPtr(1)
	repoMock.On("FindByID", mock.Anything, int64(7)).Return(&fb, nil)

	var captured mailer.Message
	mailMock.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(mailer.Message)
	}).Return(nil)

	err := d.DispatchImmediate(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, "URGENT: Negative Feedback Received", captured.Subject)
	assert.Contains(t, captured.HTMLBody, "Negative Feedback Alert")
	assert.Contains(t, captured.HTMLBody, "15551234567")
	assertNoArtifacts(t, tempDir)
}

func TestDispatchImmediate_MissingRecordFails(t *testing.T) {
	d, repoMock, mailMock, tempDir := newTestDispatcher(t)

	repoMock.On("FindByID", mock.Anything, int64(99)).Return(nil, apperrors.ErrNotFound)

	err := d.DispatchImmediate(context.Background(), 99)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	mailMock.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	assertNoArtifacts(t, tempDir)
}

func TestDispatchImmediate_MailFailureSwallowedAndCleansUp(t *testing.T) {
	d, repoMock, mailMock, tempDir := newTestDispatcher(t)

	fb := sampleFeedback(3)
	repoMock.On("FindByID", mock.Anything, int64(3)).Return(&fb, nil)
	mailMock.On("Send", mock.Anything, mock.Anything).Return(fmt.Errorf("%w: relay down", apperrors.ErrTransport))

	err := d.DispatchImmediate(context.Background(), 3)
	assert.NoError(t, err)
	assertNoArtifacts(t, tempDir)
}
