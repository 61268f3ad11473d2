package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "gitlab.com/servio/api/station-feedback-service/internal/apperrors"
	"gitlab.com/servio/api/station-feedback-service/internal/model"
	"gitlab.com/servio/api/station-feedback-service/internal/observer"
	"gitlab.com/servio/api/station-feedback-service/internal/storage"
	"gitlab.com/servio/api/station-feedback-service/internal/whatsapp"
	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
	"gitlab.com/servio/api/station-feedback-service/pkg/utils"
)

// WebSubmission is one feedback form post from the web channel.
type WebSubmission struct {
	Phone          string `validate:"required"`
	IsTestimonial  bool
	RatingAir      *int `validate:"omitempty,min=1,max=3"`
	RatingWashroom *int `validate:"omitempty,min=1,max=3"`
	Comment        string
	TermsAccepted  bool
	RONumber       string
	// SourceID is the legacy field name for RONumber, kept for older forms.
	SourceID      string
	PhotoAir      []byte
	PhotoWashroom []byte
	PhotoReceipt  []byte
}

// FeedbackService handles web-channel intake and record access.
type FeedbackService struct {
	repo       storage.FeedbackRepo
	wa         whatsapp.Client
	dispatcher ImmediateDispatcher
	validate   *validator.Validate
}

// NewFeedbackService creates the web intake service.
func NewFeedbackService(repo storage.FeedbackRepo, wa whatsapp.Client, dispatcher ImmediateDispatcher) *FeedbackService {
	return &FeedbackService{
		repo:       repo,
		wa:         wa,
		dispatcher: dispatcher,
		validate:   validator.New(),
	}
}

// Submit validates and persists a web submission, then kicks off the
// notification side effects in the background. The returned record carries
// the assigned ID and timestamp.
func (s *FeedbackService) Submit(ctx context.Context, sub WebSubmission) (*model.Feedback, error) {
	loggerCtx := logger.FromContext(ctx)

	if err := s.validate.Struct(sub); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrBadRequest, err)
	}
	if !sub.TermsAccepted {
		return nil, fmt.Errorf("%w: terms and conditions must be accepted", apperrors.ErrBadRequest)
	}
	if sub.RatingAir == nil && sub.RatingWashroom == nil {
		return nil, fmt.Errorf("%w: at least one rating (air or washroom) is required", apperrors.ErrBadRequest)
	}
	cleanPhone := utils.CleanPhone(sub.Phone)
	if len(cleanPhone) < 10 || len(cleanPhone) > 15 {
		return nil, fmt.Errorf("%w: invalid phone number format", apperrors.ErrBadRequest)
	}

	roNumber := sub.RONumber
	if roNumber == "" {
		roNumber = sub.SourceID
	}

	feedback := &model.Feedback{
		Phone:          sub.Phone,
		IsTestimonial:  sub.IsTestimonial,
		RatingAir:      sub.RatingAir,
		RatingWashroom: sub.RatingWashroom,
		Comment:        sub.Comment,
		TermsAccepted:  sub.TermsAccepted,
		RONumber:       roNumber,
		Status:         model.StatusPending,
		Method:         model.MethodWeb,
		SessionID:      uuid.New().String(),
		PhotoAir:       sub.PhotoAir,
		PhotoWashroom:  sub.PhotoWashroom,
		PhotoReceipt:   sub.PhotoReceipt,
	}
	if err := s.repo.Create(ctx, feedback); err != nil {
		return nil, fmt.Errorf("failed to store feedback: %w", err)
	}

	loggerCtx.Info("New web feedback received",
		zap.Int64("feedback_id", feedback.ID),
		zap.String("phone", utils.MaskPhone(cleanPhone)),
		zap.Bool("negative", feedback.IsNegative()))
	observer.IncEventsReceived("web")

	// Side effects run detached from the request: a slow Graph API or SMTP
	// relay must not hold the form response.
	id := feedback.ID
	negative := feedback.IsNegative()
	utils.SafeGo(func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := s.wa.SendText(bgCtx, cleanPhone, "Thank you for your feedback! We appreciate your time."); err != nil {
			logger.Log.Warn("Failed to send web thank-you message",
				zap.Int64("feedback_id", id),
				zap.Error(err))
		}
		if negative {
			if err := s.dispatcher.DispatchImmediate(bgCtx, id); err != nil {
				logger.Log.Error("Immediate report dispatch failed",
					zap.Int64("feedback_id", id),
					zap.Error(err))
			}
		}
	}, nil)

	return feedback, nil
}

// GetImage returns the raw photo bytes of the given type for a record.
func (s *FeedbackService) GetImage(ctx context.Context, feedbackID int64, imageType string) ([]byte, error) {
	feedback, err := s.repo.FindByID(ctx, feedbackID)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch imageType {
	case "air":
		data = feedback.PhotoAir
	case "washroom":
		data = feedback.PhotoWashroom
	case "receipt":
		data = feedback.PhotoReceipt
	default:
		return nil, fmt.Errorf("%w: unknown image type %q", apperrors.ErrBadRequest, imageType)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no %s image on record %d", apperrors.ErrNotFound, imageType, feedbackID)
	}
	return data, nil
}

// List returns every record with photos encoded for the read model.
func (s *FeedbackService) List(ctx context.Context) ([]model.FeedbackRead, error) {
	records, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.FeedbackRead, 0, len(records))
	for i := range records {
		out = append(out, toRead(&records[i]))
	}
	return out, nil
}

// toRead converts a stored record to the API read model, encoding photo
// payloads as base64.
func toRead(f *model.Feedback) model.FeedbackRead {
	read := model.FeedbackRead{
		ID:             f.ID,
		Phone:          f.Phone,
		IsTestimonial:  f.IsTestimonial,
		RatingAir:      f.RatingAir,
		RatingWashroom: f.RatingWashroom,
		Comment:        f.Comment,
		TermsAccepted:  f.TermsAccepted,
		RONumber:       f.RONumber,
		Status:         f.Status,
		Method:         f.Method,
		SessionID:      f.SessionID,
		CreatedAt:      f.CreatedAt,
	}
	if len(f.PhotoAir) > 0 {
		read.PhotoAir = base64.StdEncoding.EncodeToString(f.PhotoAir)
	}
	if len(f.PhotoWashroom) > 0 {
		read.PhotoWashroom = base64.StdEncoding.EncodeToString(f.PhotoWashroom)
	}
	if len(f.PhotoReceipt) > 0 {
		read.PhotoReceipt = base64.StdEncoding.EncodeToString(f.PhotoReceipt)
	}
	return read
}

// Delete removes a record and its embedded photos.
func (s *FeedbackService) Delete(ctx context.Context, feedbackID int64) error {
	return s.repo.Delete(ctx, feedbackID)
}

// UpdateStatus transitions a record between pending and resolved. Records
// already resolved are locked and reject the change with ErrConflict.
func (s *FeedbackService) UpdateStatus(ctx context.Context, feedbackID int64, status string) (*model.Feedback, error) {
	if status != model.StatusPending && status != model.StatusResolved {
		return nil, fmt.Errorf("%w: invalid status %q", apperrors.ErrBadRequest, status)
	}
	if err := s.repo.UpdateStatus(ctx, feedbackID, status); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, feedbackID)
}
