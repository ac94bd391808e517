package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/clientdesk/internal/ledger/domain"
	obligationdomain "github.com/smallbiznis/clientdesk/internal/obligation/domain"
)

type generateRequest struct {
	AsOf     string `json:"as_of"`
	ClientID string `json:"client_id"`
}

type reconcileRequest struct {
	AsOf string `json:"as_of"`
}

// bindOptionalJSON accepts an empty body as the zero request.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return invalidRequestError()
	}
	return nil
}

// GenerateObligations runs a generation pass. Per-client failures are part
// of the response body; the pass itself still answers 200.
func (s *Server) GenerateObligations(c *gin.Context) {
	var req generateRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}
	asOf, err := parseOptionalTime(req.AsOf)
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of"))
		return
	}

	resp, err := s.generator.Generate(c.Request.Context(), obligationdomain.GenerateRequest{
		AsOf:     asOf,
		ClientID: strings.TrimSpace(req.ClientID),
	})
	if err != nil && len(resp.Failures) == 0 {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReconcileStatuses(c *gin.Context) {
	var req reconcileRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}
	asOf, err := parseOptionalTime(req.AsOf)
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of"))
		return
	}

	resp, err := s.ledgerSvc.Reconcile(c.Request.Context(), ledgerdomain.ReconcileRequest{AsOf: asOf})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
