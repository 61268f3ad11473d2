package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gitlab.com/servio/api/station-feedback-service/internal/whatsapp"
)

// ClientMock mocks the whatsapp.Client interface
type ClientMock struct {
	mock.Mock
}

// SendText mocks the SendText method
func (m *ClientMock) SendText(ctx context.Context, to, body string) error {
	args := m.Called(ctx, to, body)
	return args.Error(0)
}

// SendButtons mocks the SendButtons method
func (m *ClientMock) SendButtons(ctx context.Context, to, body string, buttons []whatsapp.Button) error {
	args := m.Called(ctx, to, body, buttons)
	return args.Error(0)
}

// DownloadMedia mocks the DownloadMedia method
func (m *ClientMock) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	args := m.Called(ctx, mediaID)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}
