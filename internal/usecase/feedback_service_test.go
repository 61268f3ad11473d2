package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "gitlab.com/servio/api/station-feedback-service/internal/apperrors"
	"gitlab.com/servio/api/station-feedback-service/internal/model"
)

type webHarness struct {
	svc        *FeedbackService
	repo       *fakeFeedbackRepo
	wa         *fakeWaClient
	dispatcher *fakeDispatcher
}

func newWebHarness() *webHarness {
	h := &webHarness{
		repo:       newFakeFeedbackRepo(),
		wa:         newFakeWaClient(),
		dispatcher: &fakeDispatcher{},
	}
	h.svc = NewFeedbackService(h.repo, h.wa, h.dispatcher)
	return h
}

func validSubmission() WebSubmission {
	return WebSubmission{
		Phone:         "+1 555 123 4567",
		RatingAir:     model.IntPtr(3),
		Comment:       gofakeit.Sentence(4),
		TermsAccepted: true,
		RONumber:      "RO-42",
	}
}

func TestSubmit_CreatesPendingRecord(t *testing.T) {
	h := newWebHarness()

	f, err := h.svc.Submit(context.Background(), validSubmission())
	require.NoError(t, err)

	assert.NotZero(t, f.ID)
	assert.Equal(t, model.StatusPending, f.Status)
	assert.Equal(t, model.MethodWeb, f.Method)
	assert.NotEmpty(t, f.SessionID)
	assert.Equal(t, "RO-42", f.RONumber)
	assert.True(t, f.TermsAccepted)

	// Thank-you message goes out in the background.
	assert.Eventually(t, func() bool {
		return h.wa.lastMessage() != ""
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, h.wa.lastMessage(), "Thank you for your feedback")
}

func TestSubmit_SourceIDFallback(t *testing.T) {
	h := newWebHarness()

	sub := validSubmission()
	sub.RONumber = ""
	sub.SourceID = "legacy-7"
	f, err := h.svc.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, "legacy-7", f.RONumber)
}

func TestSubmit_ValidationFailures(t *testing.T) {
	h := newWebHarness()

	cases := []struct {
		name   string
		mutate func(*WebSubmission)
	}{
		{"terms not accepted", func(s *WebSubmission) { s.TermsAccepted = false }},
		{"no ratings", func(s *WebSubmission) { s.RatingAir = nil; s.RatingWashroom = nil }},
		{"phone too short", func(s *WebSubmission) { s.Phone = "12345" }},
		{"phone too long", func(s *WebSubmission) { s.Phone = "1234567890123456789" }},
		{"rating out of range", func(s *WebSubmission) { s.RatingAir = model.IntPtr(5) }},
		{"rating below range", func(s *WebSubmission) { s.RatingAir = model.IntPtr(0) }},
		{"empty phone", func(s *WebSubmission) { s.Phone = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := validSubmission()
			tc.mutate(&sub)
			_, err := h.svc.Submit(context.Background(), sub)
			assert.ErrorIs(t, err, apperrors.ErrBadRequest)
		})
	}
	assert.Empty(t, h.repo.all(), "rejected submissions must not be stored")
}

func TestSubmit_NegativeRatingTriggersImmediateDispatch(t *testing.T) {
	h := newWebHarness()

	sub := validSubmission()
	sub.RatingAir = model.IntPtr(1)
	f, err := h.svc.Submit(context.Background(), sub)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return h.dispatcher.count() == 1
	}, time.Second, 10*time.Millisecond)
	h.dispatcher.mu.Lock()
	assert.Equal(t, f.ID, h.dispatcher.calls[0])
	h.dispatcher.mu.Unlock()
}

func TestSubmit_PositiveRatingNoDispatch(t *testing.T) {
	h := newWebHarness()

	_, err := h.svc.Submit(context.Background(), validSubmission())
	require.NoError(t, err)

	// Wait for the background side effects to finish, then confirm no dispatch.
	assert.Eventually(t, func() bool {
		return h.wa.lastMessage() != ""
	}, time.Second, 10*time.Millisecond)
	assert.Zero(t, h.dispatcher.count())
}

func TestGetImage(t *testing.T) {
	h := newWebHarness()

	f := &model.Feedback{Phone: "15551234567", PhotoAir: []byte{1, 2, 3}, Status: model.StatusPending}
	require.NoError(t, h.repo.Create(context.Background(), f))

	data, err := h.svc.GetImage(context.Background(), f.ID, "air")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, err = h.svc.GetImage(context.Background(), f.ID, "washroom")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = h.svc.GetImage(context.Background(), f.ID, "selfie")
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = h.svc.GetImage(context.Background(), 999, "air")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	h := newWebHarness()

	f := &model.Feedback{Phone: "15551234567", Status: model.StatusPending}
	require.NoError(t, h.repo.Create(context.Background(), f))

	updated, err := h.svc.UpdateStatus(context.Background(), f.ID, model.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, updated.Status)

	// Resolved records are locked.
	_, err = h.svc.UpdateStatus(context.Background(), f.ID, model.StatusPending)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = h.svc.UpdateStatus(context.Background(), f.ID, "archived")
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestList_EncodesPhotos(t *testing.T) {
	h := newWebHarness()

	f := &model.Feedback{Phone: "15551234567", PhotoAir: []byte{0xFF}, Status: model.StatusPending}
	require.NoError(t, h.repo.Create(context.Background(), f))

	reads, err := h.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, reads, 1)
	assert.NotEmpty(t, reads[0].PhotoAir)
	assert.Empty(t, reads[0].PhotoWashroom)
}
