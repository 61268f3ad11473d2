package mailer

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	apperrors "gitlab.com/servio/api/station-feedback-service/internal/apperrors"
	"gitlab.com/servio/api/station-feedback-service/internal/config"
	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

func testMailConfig() config.MailConfig {
	return config.MailConfig{
		Host:     "127.0.0.1",
		Port:     1, // nothing listens here
		From:     "reports@example.com",
		FromName: "Feedback Reports",
		To:       []string{"ops@example.com"},
	}
}

func TestSMTPMailer_NoRecipientsRejected(t *testing.T) {
	cfg := testMailConfig()
	cfg.To = nil
	m := NewSMTPMailer(cfg)

	err := m.Send(context.Background(), Message{Subject: "s", HTMLBody: "b"})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestSMTPMailer_CancelledContextRejected(t *testing.T) {
	m := NewSMTPMailer(testMailConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Send(ctx, Message{Subject: "s", HTMLBody: "b"})
	assert.ErrorIs(t, err, apperrors.ErrTransport)
}

func TestSMTPMailer_DialFailureIsTransportError(t *testing.T) {
	m := NewSMTPMailer(testMailConfig())

	start := time.Now()
	err := m.Send(context.Background(), Message{Subject: "s", HTMLBody: "b"})
	assert.ErrorIs(t, err, apperrors.ErrTransport)
	assert.Less(t, time.Since(start), 10*time.Second, "a refused connection must fail fast")
}
