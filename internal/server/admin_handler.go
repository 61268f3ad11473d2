package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "gitlab.com/servio/api/station-feedback-service/internal/apperrors"
	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
)

// handleAdminLogin exchanges form credentials for a bearer token.
func (s *Server) handleAdminLogin(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	token, err := s.authenticator.Login(username, password)
	if err != nil {
		logger.FromContext(c.Request.Context()).Warn("admin login rejected",
			zap.String("username", username))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// handleAdminReports lists all feedback records, newest first, with photos
// inlined as base64.
func (s *Server) handleAdminReports(c *gin.Context) {
	records, err := s.feedbackSvc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// handleAdminDeleteFeedback removes one record permanently.
func (s *Server) handleAdminDeleteFeedback(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := s.feedbackSvc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "feedback deleted"})
}

// handleAdminUpdateStatus transitions a record between pending and resolved.
// Resolved records are terminal; attempts to reopen them conflict.
func (s *Server) handleAdminUpdateStatus(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, fmt.Errorf("%w: invalid request body", apperrors.ErrBadRequest))
		return
	}

	record, err := s.feedbackSvc.UpdateStatus(c.Request.Context(), id, body.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func parseIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid feedback id", apperrors.ErrBadRequest)
	}
	return id, nil
}
