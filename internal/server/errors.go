package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luizpinheirodev/twitter-translate-bot/internal/ingestion"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/resilience"
)

var errInvalidRequest = errors.New("invalid request")

type requestError struct {
	message string
}

func (e *requestError) Error() string { return e.message }

func (e *requestError) Unwrap() error { return errInvalidRequest }

func invalidRequestError(message string) error {
	return &requestError{message: message}
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AbortWithError writes the error response matching err and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	status, kind := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: errorBody{Type: kind, Message: message}})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errInvalidRequest), errors.Is(err, ingestion.ErrEmptyText):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ingestion.ErrRunInProgress):
		return http.StatusConflict, "run_in_progress"
	case errors.Is(err, resilience.ErrTimeout):
		return http.StatusGatewayTimeout, "upstream_timeout"
	case errors.Is(err, resilience.ErrInfrastructure), errors.Is(err, resilience.ErrNotFound):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
