package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gitlab.com/servio/api/station-feedback-service/internal/mailer"
)

// MailerMock mocks the mailer.Mailer interface
type MailerMock struct {
	mock.Mock
}

// Send mocks the Send method
func (m *MailerMock) Send(ctx context.Context, msg mailer.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
