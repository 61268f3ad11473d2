package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	apperrors "gitlab.com/servio/api/station-feedback-service/internal/apperrors"
	"gitlab.com/servio/api/station-feedback-service/internal/model"
	"gitlab.com/servio/api/station-feedback-service/internal/observer"
	"gitlab.com/servio/api/station-feedback-service/internal/storage"
	"gitlab.com/servio/api/station-feedback-service/internal/whatsapp"
	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
	"gitlab.com/servio/api/station-feedback-service/pkg/utils"
)

// Prompts sent back to the customer at each step.
const (
	promptGreeting      = "Welcome to our Feedback Service! \U0001F44B\n\nPlease rate our *Air Filling Service*:"
	promptWashroom      = "Now, please rate our *Washroom Cleanliness*:"
	promptPhotoAir      = "Thanks! Would you like to upload a photo of the Air Filling area? (Send photo or type 'skip')"
	promptPhotoWashroom = "Thanks! Would you like to upload a photo of the Washroom? (Send photo or type 'skip')"
	promptComment       = "Almost done! Any additional comments? (Type your comment or 'skip')"
	promptRatingRetry   = "Please select a rating using the buttons above."
	promptPhotoRetry    = "Please send a photo or type 'skip' to continue."
	promptPhotoReceived = "Photo received! \U0001F4F8"
	promptThankYou      = "Thank you for your feedback! Have a great day! \U0001F31F"

	skipKeyword = "skip"
)

func airRatingButtons() []whatsapp.Button {
	return []whatsapp.Button{
		{ID: "air_1", Title: "1 Star \U0001F61E"},
		{ID: "air_2", Title: "2 Stars \U0001F610"},
		{ID: "air_3", Title: "3 Stars \U0001F603"},
	}
}

func washroomRatingButtons() []whatsapp.Button {
	return []whatsapp.Button{
		{ID: "wash_1", Title: "1 Star \U0001F61E"},
		{ID: "wash_2", Title: "2 Stars \U0001F610"},
		{ID: "wash_3", Title: "3 Stars \U0001F603"},
	}
}

// ImmediateDispatcher triggers the urgent report path for a negative
// submission.
type ImmediateDispatcher interface {
	DispatchImmediate(ctx context.Context, feedbackID int64) error
}

// ConversationService drives the step-by-step feedback dialogue. Events for
// the same sender are serialized through a per-phone lock so concurrent
// webhook deliveries cannot interleave state transitions.
type ConversationService struct {
	convRepo     storage.ConversationRepo
	feedbackRepo storage.FeedbackRepo
	wa           whatsapp.Client
	dispatcher   ImmediateDispatcher

	senderLocks sync.Map // phone -> *sync.Mutex
}

// NewConversationService creates the dialogue engine.
func NewConversationService(
	convRepo storage.ConversationRepo,
	feedbackRepo storage.FeedbackRepo,
	wa whatsapp.Client,
	dispatcher ImmediateDispatcher,
) *ConversationService {
	return &ConversationService{
		convRepo:     convRepo,
		feedbackRepo: feedbackRepo,
		wa:           wa,
		dispatcher:   dispatcher,
	}
}

// ProcessEvent handles one inbound message. The sender's conversation is
// loaded (or started), the step handler runs, and the resulting state is
// persisted before returning.
func (s *ConversationService) ProcessEvent(ctx context.Context, event model.InboundEvent) error {
	phone := utils.CleanPhone(event.Phone)
	if phone == "" {
		return fmt.Errorf("%w: event carries no usable sender phone", apperrors.ErrBadRequest)
	}
	event.Phone = phone

	lock := s.lockFor(phone)
	lock.Lock()
	defer lock.Unlock()

	loggerCtx := logger.FromContext(ctx).With(zap.String("phone", utils.MaskPhone(phone)))

	conv, scratch, err := s.loadState(ctx, phone)
	if err != nil {
		return err
	}

	loggerCtx.Info("Processing conversation event",
		zap.String("step", string(conv.Step)),
		zap.String("input", event.Input),
		zap.Bool("has_media", event.MediaID != ""))

	switch conv.Step {
	case model.StepGreeting:
		err = s.handleGreeting(ctx, conv)
	case model.StepRatingAir:
		err = s.handleRatingAir(ctx, conv, &scratch, event)
	case model.StepPhotoAir:
		err = s.handlePhotoAir(ctx, conv, &scratch, event)
	case model.StepRatingWashroom:
		err = s.handleRatingWashroom(ctx, conv, &scratch, event)
	case model.StepPhotoWashroom:
		err = s.handlePhotoWashroom(ctx, conv, &scratch, event)
	case model.StepComment:
		return s.handleComment(ctx, conv, &scratch, event)
	default:
		// Unknown step means the stored state predates this build or was
		// corrupted. Reset and greet again.
		loggerCtx.Warn("Unknown conversation step, resetting", zap.String("step", string(conv.Step)))
		return s.resetAndGreet(ctx, phone)
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrStateCorrupt) {
			loggerCtx.Warn("Conversation state corrupt, resetting", zap.Error(err))
			return s.resetAndGreet(ctx, phone)
		}
		return err
	}

	return s.saveState(ctx, conv, scratch)
}

// lockFor returns the serialization lock for a sender, creating it on first
// contact. Locks are never evicted; the key space is bounded by the set of
// distinct senders.
func (s *ConversationService) lockFor(phone string) *sync.Mutex {
	actual, _ := s.senderLocks.LoadOrStore(phone, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// loadState fetches the sender's conversation, starting a fresh greeting
// state for an unseen sender. A malformed scratch payload resets the row.
func (s *ConversationService) loadState(ctx context.Context, phone string) (*model.Conversation, model.Scratch, error) {
	conv, err := s.convRepo.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return &model.Conversation{Phone: phone, Step: model.StepGreeting}, model.Scratch{}, nil
		}
		return nil, model.Scratch{}, fmt.Errorf("failed to load conversation state: %w", err)
	}

	scratch, err := conv.DecodeScratch()
	if err != nil {
		logger.FromContext(ctx).Warn("Malformed conversation scratch, starting over",
			zap.String("phone", utils.MaskPhone(phone)),
			zap.Error(err))
		if delErr := s.convRepo.Delete(ctx, phone); delErr != nil {
			return nil, model.Scratch{}, fmt.Errorf("failed to clear corrupt conversation: %w", delErr)
		}
		return &model.Conversation{Phone: phone, Step: model.StepGreeting}, model.Scratch{}, nil
	}
	return conv, scratch, nil
}

func (s *ConversationService) saveState(ctx context.Context, conv *model.Conversation, scratch model.Scratch) error {
	if err := conv.EncodeScratch(scratch); err != nil {
		return err
	}
	if err := s.convRepo.Upsert(ctx, *conv); err != nil {
		return fmt.Errorf("failed to persist conversation state: %w", err)
	}
	return nil
}

// resetAndGreet clears broken state and restarts the dialogue as if the
// sender had just arrived.
func (s *ConversationService) resetAndGreet(ctx context.Context, phone string) error {
	if err := s.convRepo.Delete(ctx, phone); err != nil {
		return fmt.Errorf("failed to reset conversation: %w", err)
	}
	conv := &model.Conversation{Phone: phone, Step: model.StepGreeting}
	if err := s.handleGreeting(ctx, conv); err != nil {
		return err
	}
	return s.saveState(ctx, conv, model.Scratch{})
}

// handleGreeting welcomes the sender and asks for the air rating. Any input
// triggers it, including media.
func (s *ConversationService) handleGreeting(ctx context.Context, conv *model.Conversation) error {
	if err := s.wa.SendButtons(ctx, conv.Phone, promptGreeting, airRatingButtons()); err != nil {
		return err
	}
	s.transition(conv, model.StepRatingAir)
	return nil
}

func (s *ConversationService) handleRatingAir(ctx context.Context, conv *model.Conversation, scratch *model.Scratch, event model.InboundEvent) error {
	rating, ok := parseRating(event.Input, "air_")
	if !ok {
		return s.wa.SendText(ctx, conv.Phone, promptRatingRetry)
	}
	scratch.RatingAir = rating
	if err := s.wa.SendText(ctx, conv.Phone, promptPhotoAir); err != nil {
		return err
	}
	s.transition(conv, model.StepPhotoAir)
	return nil
}

// handlePhotoAir lazily creates the draft feedback record, attaches the
// photo when one arrived, and moves on. Repeated deliveries of the same
// step reuse the record already linked in scratch instead of creating
// another.
func (s *ConversationService) handlePhotoAir(ctx context.Context, conv *model.Conversation, scratch *model.Scratch, event model.InboundEvent) error {
	if event.MediaID == "" && !isSkip(event.Input) {
		return s.wa.SendText(ctx, conv.Phone, promptPhotoRetry)
	}

	if scratch.FeedbackID == 0 {
		draft := &model.Feedback{
			Phone:     conv.Phone,
			Method:    model.MethodWhatsApp,
			Status:    model.StatusDraft,
			RatingAir: model.IntPtr(scratch.RatingAir),
			SessionID: conv.Phone,
		}
		if err := s.feedbackRepo.Create(ctx, draft); err != nil {
			return fmt.Errorf("failed to create draft feedback: %w", err)
		}
		scratch.FeedbackID = draft.ID
	}

	if event.MediaID != "" {
		s.attachPhoto(ctx, conv.Phone, scratch.FeedbackID, event.MediaID, "photo_air")
	}

	if err := s.wa.SendButtons(ctx, conv.Phone, promptWashroom, washroomRatingButtons()); err != nil {
		return err
	}
	s.transition(conv, model.StepRatingWashroom)
	return nil
}

func (s *ConversationService) handleRatingWashroom(ctx context.Context, conv *model.Conversation, scratch *model.Scratch, event model.InboundEvent) error {
	rating, ok := parseRating(event.Input, "wash_")
	if !ok {
		return s.wa.SendText(ctx, conv.Phone, promptRatingRetry)
	}
	if scratch.FeedbackID == 0 {
		return fmt.Errorf("%w: washroom rating step without linked record", apperrors.ErrStateCorrupt)
	}

	changes := map[string]interface{}{"rating_washroom": rating}
	if err := s.feedbackRepo.Update(ctx, scratch.FeedbackID, changes); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: linked record %d vanished: %w", apperrors.ErrStateCorrupt, scratch.FeedbackID, err)
		}
		return fmt.Errorf("failed to store washroom rating: %w", err)
	}

	if err := s.wa.SendText(ctx, conv.Phone, promptPhotoWashroom); err != nil {
		return err
	}
	s.transition(conv, model.StepPhotoWashroom)
	return nil
}

// handlePhotoWashroom attaches media when it arrived and advances on any
// input. Unlike the air photo step there is nothing left to guard: the
// record already exists, so even stray text moves the dialogue forward.
func (s *ConversationService) handlePhotoWashroom(ctx context.Context, conv *model.Conversation, scratch *model.Scratch, event model.InboundEvent) error {
	if scratch.FeedbackID == 0 {
		return fmt.Errorf("%w: washroom photo step without linked record", apperrors.ErrStateCorrupt)
	}

	if event.MediaID != "" {
		s.attachPhoto(ctx, conv.Phone, scratch.FeedbackID, event.MediaID, "photo_washroom")
	}

	if err := s.wa.SendText(ctx, conv.Phone, promptComment); err != nil {
		return err
	}
	s.transition(conv, model.StepComment)
	return nil
}

// handleComment finalizes the record and tears the conversation down. This
// is the only handler that deletes the state row instead of saving it.
func (s *ConversationService) handleComment(ctx context.Context, conv *model.Conversation, scratch *model.Scratch, event model.InboundEvent) error {
	loggerCtx := logger.FromContext(ctx).With(zap.Int64("feedback_id", scratch.FeedbackID))

	if scratch.FeedbackID == 0 {
		loggerCtx.Warn("Comment step without linked record, resetting")
		return s.resetAndGreet(ctx, conv.Phone)
	}

	changes := map[string]interface{}{
		"status": model.StatusSubmitted,
		// Proceeding through the dialogue is the acceptance act on this channel.
		"terms_accepted": true,
	}
	if !isSkip(event.Input) && event.Input != "" {
		changes["comment"] = event.Input
	}
	if err := s.feedbackRepo.Update(ctx, scratch.FeedbackID, changes); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			loggerCtx.Warn("Linked record vanished at comment step, resetting")
			return s.resetAndGreet(ctx, conv.Phone)
		}
		return fmt.Errorf("failed to finalize feedback: %w", err)
	}

	feedback, err := s.feedbackRepo.FindByID(ctx, scratch.FeedbackID)
	if err != nil {
		return fmt.Errorf("failed to reload finalized feedback: %w", err)
	}
	if feedback.IsNegative() {
		// The urgent report must not block or fail the customer-facing flow.
		if dispatchErr := s.dispatcher.DispatchImmediate(ctx, feedback.ID); dispatchErr != nil {
			loggerCtx.Error("Immediate report dispatch failed", zap.Error(dispatchErr))
		}
	}

	if err := s.wa.SendText(ctx, conv.Phone, promptThankYou); err != nil {
		loggerCtx.Warn("Failed to send thank-you message", zap.Error(err))
	}

	observer.IncConversationTransition(string(model.StepComment), "DONE")
	if err := s.convRepo.Delete(ctx, conv.Phone); err != nil {
		return fmt.Errorf("failed to clear finished conversation: %w", err)
	}
	loggerCtx.Info("Conversation completed", zap.String("phone", utils.MaskPhone(conv.Phone)))
	return nil
}

// attachPhoto downloads inbound media and stores it on the record. Failures
// degrade to a skip: the dialogue advances without the photo.
func (s *ConversationService) attachPhoto(ctx context.Context, phone string, feedbackID int64, mediaID, column string) {
	loggerCtx := logger.FromContext(ctx).With(
		zap.Int64("feedback_id", feedbackID),
		zap.String("column", column))

	data, _, err := s.wa.DownloadMedia(ctx, mediaID)
	if err != nil {
		loggerCtx.Warn("Failed to download photo, continuing without it", zap.Error(err))
		return
	}
	if err := s.feedbackRepo.Update(ctx, feedbackID, map[string]interface{}{column: data}); err != nil {
		loggerCtx.Warn("Failed to store photo, continuing without it", zap.Error(err))
		return
	}
	if err := s.wa.SendText(ctx, phone, promptPhotoReceived); err != nil {
		loggerCtx.Warn("Failed to acknowledge photo", zap.Error(err))
	}
}

func (s *ConversationService) transition(conv *model.Conversation, to model.ConversationStep) {
	if conv.Step != to {
		observer.IncConversationTransition(string(conv.Step), string(to))
	}
	conv.Step = to
}

// parseRating extracts the 1-3 rating from a button reply id like "air_2".
func parseRating(input, prefix string) (int, bool) {
	if !strings.HasPrefix(input, prefix) {
		return 0, false
	}
	switch strings.TrimPrefix(input, prefix) {
	case "1":
		return 1, true
	case "2":
		return 2, true
	case "3":
		return 3, true
	default:
		return 0, false
	}
}

func isSkip(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), skipKeyword)
}
