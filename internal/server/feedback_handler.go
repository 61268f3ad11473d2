package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "gitlab.com/servio/api/station-feedback-service/internal/apperrors"
	"gitlab.com/servio/api/station-feedback-service/internal/usecase"
	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
)

// maxUploadBytes caps each uploaded photo.
const maxUploadBytes = 10 << 20

// handleSubmitFeedback accepts a multipart feedback form from the web channel.
func (s *Server) handleSubmitFeedback(c *gin.Context) {
	ctx := c.Request.Context()

	sub := usecase.WebSubmission{
		Phone:         c.PostForm("phone"),
		IsTestimonial: parseFormBool(c.PostForm("is_testimonial")),
		Comment:       c.PostForm("comment"),
		TermsAccepted: parseFormBool(c.PostForm("terms_accepted")),
		RONumber:      c.PostForm("ro_number"),
		SourceID:      c.PostForm("source_id"),
	}

	var err error
	if sub.RatingAir, err = parseFormRating(c.PostForm("rating_air")); err != nil {
		respondError(c, err)
		return
	}
	if sub.RatingWashroom, err = parseFormRating(c.PostForm("rating_washroom")); err != nil {
		respondError(c, err)
		return
	}

	if sub.PhotoAir, err = readFormFile(c, "photo_air"); err != nil {
		respondError(c, err)
		return
	}
	if sub.PhotoWashroom, err = readFormFile(c, "photo_washroom"); err != nil {
		respondError(c, err)
		return
	}
	if sub.PhotoReceipt, err = readFormFile(c, "photo_receipt"); err != nil {
		respondError(c, err)
		return
	}

	record, err := s.feedbackSvc.Submit(ctx, sub)
	if err != nil {
		logger.FromContext(ctx).Warn("feedback submission rejected", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":      record.ID,
		"status":  record.Status,
		"message": "Feedback submitted successfully",
	})
}

// handleFeedbackImage streams one stored photo. The type segment selects
// which column: air, washroom or receipt.
func (s *Server) handleFeedbackImage(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	data, err := s.feedbackSvc.GetImage(c.Request.Context(), id, c.Param("type"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

func parseFormBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

func parseFormRating(value string) (*int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	rating, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("%w: rating must be a number", apperrors.ErrBadRequest)
	}
	return &rating, nil
}

// readFormFile returns the named upload, or nil when the field is absent.
func readFormFile(c *gin.Context, field string) ([]byte, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile || err == http.ErrNotMultipart {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: malformed upload for %s", apperrors.ErrBadRequest, field)
	}
	if fileHeader.Size > maxUploadBytes {
		return nil, fmt.Errorf("%w: %s exceeds the upload size limit", apperrors.ErrBadRequest, field)
	}
	return readAll(fileHeader)
}

func readAll(fh *multipart.FileHeader) ([]byte, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open upload", apperrors.ErrBadRequest)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read upload", apperrors.ErrBadRequest)
	}
	return data, nil
}
