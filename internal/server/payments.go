package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/clientdesk/internal/ledger/domain"
)

type createPaymentRequest struct {
	ClientID      string          `json:"client_id"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       string          `json:"due_date"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes"`
}

type updatePaymentRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	Status        *string          `json:"status"`
	PaymentMethod *string          `json:"payment_method"`
	Notes         *string          `json:"notes"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dueDate, err := parseOptionalTime(req.DueDate)
	if err != nil || dueDate == nil {
		AbortWithError(c, ledgerdomain.ErrInvalidDueDate)
		return
	}

	resp, err := s.ledgerSvc.Create(c.Request.Context(), ledgerdomain.CreateObligationRequest{
		ClientID:      strings.TrimSpace(req.ClientID),
		Amount:        req.Amount,
		DueDate:       *dueDate,
		Status:        req.Status,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

// ListPayments filters by month (2006-01) or by an explicit from/to range.
// An explicit bound wins over the month's.
func (s *Server) ListPayments(c *gin.Context) {
	var query struct {
		Month         string `form:"month"`
		From          string `form:"from"`
		To            string `form:"to"`
		Status        string `form:"status"`
		ClientID      string `form:"client_id"`
		AutoGenerated string `form:"auto_generated"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, to, err := parseMonthRange(query.Month)
	if err != nil {
		AbortWithError(c, newValidationError("month", "invalid_month", "invalid month"))
		return
	}
	explicitFrom, err := parseOptionalTime(query.From)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	explicitTo, err := parseOptionalTime(query.To)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}
	if explicitFrom != nil {
		from = explicitFrom
	}
	if explicitTo != nil {
		to = explicitTo
	}
	if from != nil && to != nil && from.After(*to) {
		AbortWithError(c, newValidationError("range", "invalid_range", "from must be before to"))
		return
	}
	autoGenerated, err := parseOptionalBool(query.AutoGenerated)
	if err != nil {
		AbortWithError(c, newValidationError("auto_generated", "invalid_auto_generated", "invalid auto_generated flag"))
		return
	}

	resp, err := s.ledgerSvc.List(c.Request.Context(), ledgerdomain.ListObligationRequest{
		ClientID:      strings.TrimSpace(query.ClientID),
		Status:        strings.TrimSpace(query.Status),
		DueFrom:       from,
		DueTo:         to,
		AutoGenerated: autoGenerated,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPaymentByID(c *gin.Context) {
	resp, err := s.ledgerSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePayment(c *gin.Context) {
	var req updatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.Update(c.Request.Context(), strings.TrimSpace(c.Param("id")), ledgerdomain.UpdateObligationRequest{
		Amount:        req.Amount,
		Status:        req.Status,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePayment(c *gin.Context) {
	if err := s.ledgerSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
