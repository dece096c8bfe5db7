package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/dedupe/internal/duplicates"
	"github.com/cleared-dev/dedupe/internal/model"
	"github.com/cleared-dev/dedupe/internal/resolve"
)

// GroupResponse is one duplicate group in a scan result.
type GroupResponse struct {
	IDs          []string            `json:"ids"`
	Total        decimal.Decimal     `json:"total"`
	Transactions []model.Transaction `json:"transactions"`
}

// ScanResponse is the body of GET /api/duplicates.
type ScanResponse struct {
	Count  int             `json:"count"`
	Groups []GroupResponse `json:"groups"`
}

// ResolveRequest is the body of POST /api/duplicates/resolve.
type ResolveRequest struct {
	DeleteIDs []string `json:"delete_ids"`
}

// IgnoreRequest is the body of POST /api/duplicates/ignore.
type IgnoreRequest struct {
	IDs []string `json:"ids"`
}

// ResultResponse reports the mutations a batch applied.
type ResultResponse struct {
	Deleted []string `json:"deleted"`
	Marked  []string `json:"marked"`
	Error   string   `json:"error,omitempty"`
}

// NewScanResponse converts detector output for JSON encoding.
func NewScanResponse(groups []duplicates.Group) ScanResponse {
	resp := ScanResponse{Count: len(groups), Groups: make([]GroupResponse, len(groups))}
	for i, g := range groups {
		resp.Groups[i] = GroupResponse{IDs: g.IDs(), Total: g.Total(), Transactions: g.Transactions}
	}
	return resp
}

func newResultResponse(res resolve.Result) ResultResponse {
	out := ResultResponse{Deleted: res.Deleted, Marked: res.Marked}
	if out.Deleted == nil {
		out.Deleted = []string{}
	}
	if out.Marked == nil {
		out.Marked = []string{}
	}
	return out
}

func (s *Server) scan(c *gin.Context) ([]duplicates.Group, bool) {
	groups, err := s.detector.Scan(c.Request.Context(), s.store, s.opts.ScanLimit)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return groups, true
}

func (s *Server) scanDuplicates(c *gin.Context) {
	groups, ok := s.scan(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, NewScanResponse(groups))
}

func (s *Server) resolveDuplicates(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(req.DeleteIDs) == 0 {
		s.fail(c, resolve.ErrNothingSelected)
		return
	}
	if s.resolver.Busy() {
		s.fail(c, resolve.ErrBusy)
		return
	}

	groups, ok := s.scan(c)
	if !ok {
		return
	}
	res, err := s.resolver.DeleteSelected(c.Request.Context(), groups, req.DeleteIDs, nil)
	s.respondResult(c, res, err)
}

func (s *Server) ignoreDuplicates(c *gin.Context) {
	var req IgnoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if s.resolver.Busy() {
		s.fail(c, resolve.ErrBusy)
		return
	}

	groups, ok := s.scan(c)
	if !ok {
		return
	}
	group, err := resolve.MatchGroup(groups, req.IDs)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.resolver.Ignore(c.Request.Context(), group, nil)
	s.respondResult(c, res, err)
}

func (s *Server) respondResult(c *gin.Context, res resolve.Result, err error) {
	body := newResultResponse(res)
	if err != nil {
		status, msg := s.classify(err)
		body.Error = msg
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
