package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cleared-dev/dedupe/internal/resolve"
	"github.com/cleared-dev/dedupe/internal/store"
)

// classify maps an error to a status and a message safe to show clients.
// Store failures are logged and reported generically.
func (s *Server) classify(err error) (int, string) {
	var (
		resolveErr *resolve.ValidationError
		storeErrs  store.ValidationErrors
	)
	switch {
	case errors.As(err, &resolveErr), errors.As(err, &storeErrs):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, resolve.ErrBusy):
		return http.StatusConflict, err.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, err.Error()
	}
	s.log.WithError(err).Error("store operation failed")
	return http.StatusBadGateway, "store operation failed"
}

func (s *Server) fail(c *gin.Context, err error) {
	status, msg := s.classify(err)
	c.JSON(status, gin.H{"error": msg})
}
