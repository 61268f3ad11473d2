package mailer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"gitlab.com/servio/api/station-feedback-service/internal/apperrors"
	"gitlab.com/servio/api/station-feedback-service/internal/config"
	"gitlab.com/servio/api/station-feedback-service/internal/observer"
	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
	"gitlab.com/servio/api/station-feedback-service/pkg/utils"
)

// Message is one outbound email. Attachments reference files on disk so the
// SMTP layer can stream them without holding the payload in memory.
type Message struct {
	Subject         string
	HTMLBody        string
	AttachmentPaths []string
}

// Mailer delivers report emails to the configured operator recipients.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends mail over SMTP with STARTTLS.
type SMTPMailer struct {
	cfg    config.MailConfig
	dialer *gomail.Dialer
}

// NewSMTPMailer builds a mailer from SMTP configuration.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send delivers the message to all configured recipients. The context is
// checked before dialing; gomail itself does not support cancellation
// mid-send.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	loggerCtx := logger.FromContext(ctx)

	if len(m.cfg.To) == 0 {
		return fmt.Errorf("%w: no mail recipients configured", apperrors.ErrBadRequest)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrTransport, err)
	}

	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.cfg.From, m.cfg.FromName)
	gm.SetHeader("To", m.cfg.To...)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTMLBody)
	for _, path := range msg.AttachmentPaths {
		gm.Attach(path)
	}

	startTime := utils.Now()
	err := m.dialer.DialAndSend(gm)
	observer.ObserveMailSendDuration(time.Since(startTime), err)

	if err != nil {
		loggerCtx.Error("Failed to send mail",
			zap.String("subject", msg.Subject),
			zap.Int("recipients", len(m.cfg.To)),
			zap.Error(err))
		return fmt.Errorf("%w: smtp send failed: %w", apperrors.ErrTransport, err)
	}

	loggerCtx.Info("Mail sent",
		zap.String("subject", msg.Subject),
		zap.Int("recipients", len(m.cfg.To)),
		zap.Int("attachments", len(msg.AttachmentPaths)))
	return nil
}

var _ Mailer = (*SMTPMailer)(nil)
