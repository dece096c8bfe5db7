package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cleared-dev/dedupe/internal/id"
	"github.com/cleared-dev/dedupe/internal/model"
	"github.com/cleared-dev/dedupe/internal/store"
)

func (s *Server) listTransactions(c *gin.Context) {
	sort, err := store.ParseSort(c.Query("sort"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
	}

	txs, err := s.store.List(c.Request.Context(), store.ListOptions{Sort: sort, Limit: limit})
	if err != nil {
		s.fail(c, err)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"data": txs})
}

func (s *Server) createTransaction(c *gin.Context) {
	var payload model.Transaction
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	tx, err := s.store.Create(c.Request.Context(), payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": tx})
}

func (s *Server) updateTransaction(c *gin.Context) {
	txID, ok := s.pathID(c)
	if !ok {
		return
	}

	var patch model.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	tx, err := s.store.Update(c.Request.Context(), txID, patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tx})
}

func (s *Server) deleteTransaction(c *gin.Context) {
	txID, ok := s.pathID(c)
	if !ok {
		return
	}

	if err := s.store.Delete(c.Request.Context(), txID); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) pathID(c *gin.Context) (string, bool) {
	txID, err := id.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return "", false
	}
	return txID, true
}
