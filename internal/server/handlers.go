package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

type publishRequest struct {
	Text string `json:"text"`
}

// Health reports that the process is up.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// SyncAccount runs the pipeline once for the account in the path and returns what got published.
func (s *Server) SyncAccount(c *gin.Context) {
	accountID := strings.TrimSpace(c.Param("accountId"))
	if accountID == "" {
		AbortWithError(c, invalidRequestError("accountId is required"))
		return
	}

	report, err := s.syncer.SyncAccount(c.Request.Context(), accountID)
	if err != nil {
		s.log.Error("manual sync failed", zap.String("account_id", accountID), zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report.Published, "report": report})
}

// PublishPost publishes the given text as is.
func (s *Server) PublishPost(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError("invalid request body"))
		return
	}

	res, err := s.syncer.PublishText(c.Request.Context(), req.Text)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !res.Present {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res.Value})
}

// ListRecords returns persisted records, newest first.
func (s *Server) ListRecords(c *gin.Context) {
	limit := defaultLimit
	if raw := c.Query("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset := 0
	if raw := c.Query("offset"); raw != "" {
		if o, err := strconv.Atoi(raw); err == nil && o >= 0 {
			offset = o
		}
	}

	records, err := s.storage.ListRecords(c.Request.Context(), limit, offset)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
		"limit":   limit,
		"offset":  offset,
	})
}

// Status returns the outcome of the latest sync run.
func (s *Server) Status(c *gin.Context) {
	c.JSON(http.StatusOK, s.syncer.Status())
}
