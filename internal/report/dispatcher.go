package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"gitlab.com/servio/api/station-feedback-service/internal/mailer"
	"gitlab.com/servio/api/station-feedback-service/internal/model"
	"gitlab.com/servio/api/station-feedback-service/internal/observer"
	"gitlab.com/servio/api/station-feedback-service/internal/storage"
	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
	"gitlab.com/servio/api/station-feedback-service/pkg/utils"
)

const (
	scheduledSubject = "Daily Feedback Report"
	scheduledBody    = "Attached is the daily feedback report."
	urgentSubject    = "URGENT: Negative Feedback Received"
)

// Dispatcher composes feedback reports and delivers them by mail. Report
// artifacts are written to the system temp directory and removed before the
// dispatch returns, whether or not delivery succeeded.
type Dispatcher struct {
	repo       storage.FeedbackRepo
	mail       mailer.Mailer
	compositor *Compositor
	interval   time.Duration
	// tempDir is overridable for tests; defaults to os.TempDir().
	tempDir string
}

// NewDispatcher creates a report dispatcher. The interval defines the
// lookback window of a scheduled dispatch.
func NewDispatcher(repo storage.FeedbackRepo, mail mailer.Mailer, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		repo:       repo,
		mail:       mail,
		compositor: NewCompositor(),
		interval:   interval,
		tempDir:    os.TempDir(),
	}
}

// DispatchScheduled composes and mails the report covering the trailing
// interval window. An empty window is a no-op: nothing is composed and
// nothing is sent. Mail delivery failures are logged and swallowed so a
// flaky SMTP relay never fails the schedule; composition failures propagate.
func (d *Dispatcher) DispatchScheduled(ctx context.Context) error {
	loggerCtx := logger.FromContext(ctx)

	end := utils.Now()
	start := end.Add(-d.interval)
	records, err := d.repo.FindCreatedWithin(ctx, start, end)
	if err != nil {
		observer.IncReportDispatch("scheduled", "query_failed")
		return fmt.Errorf("failed to query report window: %w", err)
	}
	if len(records) == 0 {
		loggerCtx.Info("No feedback to report", zap.Time("window_start", start), zap.Time("window_end", end))
		observer.IncReportDispatch("scheduled", "skipped_empty")
		return nil
	}

	path := filepath.Join(d.tempDir, fmt.Sprintf("report_%s.pdf", end.Format("20060102_150405")))
	defer d.removeArtifact(ctx, path)

	if err := d.compositor.Generate(records, path); err != nil {
		observer.IncReportDispatch("scheduled", "compose_failed")
		return fmt.Errorf("failed to compose scheduled report: %w", err)
	}
	d.logArtifactSize(ctx, path)

	msg := mailer.Message{
		Subject:         scheduledSubject,
		HTMLBody:        scheduledBody,
		AttachmentPaths: []string{path},
	}
	if err := d.mail.Send(ctx, msg); err != nil {
		// Swallowed: the report window will be covered again operationally,
		// and a mail outage must not crash the schedule.
		loggerCtx.Error("Failed to send scheduled report", zap.Error(err))
		observer.IncReportDispatch("scheduled", "mail_failed")
		return nil
	}

	loggerCtx.Info("Scheduled report sent", zap.Int("records", len(records)))
	observer.IncReportDispatch("scheduled", "sent")
	return nil
}

// DispatchImmediate composes and mails an urgent single-record report for a
// negative submission. The record must exist; mail failures are swallowed
// the same way as on the scheduled path.
func (d *Dispatcher) DispatchImmediate(ctx context.Context, feedbackID int64) error {
	loggerCtx := logger.FromContext(ctx).With(zap.Int64("feedback_id", feedbackID))

	feedback, err := d.repo.FindByID(ctx, feedbackID)
	if err != nil {
		observer.IncReportDispatch("immediate", "query_failed")
		return fmt.Errorf("failed to load feedback for urgent report: %w", err)
	}

	path := filepath.Join(d.tempDir, fmt.Sprintf("urgent_report_%d_%s.pdf", feedbackID, utils.Now().Format("20060102_150405")))
	defer d.removeArtifact(ctx, path)

	if err := d.compositor.Generate([]model.Feedback{*feedback}, path); err != nil {
		observer.IncReportDispatch("immediate", "compose_failed")
		return fmt.Errorf("failed to compose urgent report: %w", err)
	}
	d.logArtifactSize(ctx, path)

	msg := mailer.Message{
		Subject:         urgentSubject,
		HTMLBody:        renderUrgentHTML(feedback),
		AttachmentPaths: []string{path},
	}
	if err := d.mail.Send(ctx, msg); err != nil {
		loggerCtx.Error("Failed to send urgent report", zap.Error(err))
		observer.IncReportDispatch("immediate", "mail_failed")
		return nil
	}

	loggerCtx.Info("Urgent report sent")
	observer.IncReportDispatch("immediate", "sent")
	return nil
}

// removeArtifact deletes a composed report file. A file that was never
// written is fine; anything else failing to delete is logged.
func (d *Dispatcher) removeArtifact(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.FromContext(ctx).Warn("Failed to remove report artifact",
			zap.String("path", path),
			zap.Error(err))
	}
}

func (d *Dispatcher) logArtifactSize(ctx context.Context, path string) {
	if info, err := os.Stat(path); err == nil {
		logger.FromContext(ctx).Debug("Composed report artifact",
			zap.String("path", path),
			zap.String("size", utils.ByteCountSI(info.Size())))
	}
}
