package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	clientdomain "github.com/smallbiznis/clientdesk/internal/client/domain"
	"github.com/smallbiznis/clientdesk/pkg/db/pagination"
)

type billingRequest struct {
	Enabled    bool            `json:"enabled"`
	Amount     decimal.Decimal `json:"amount"`
	Frequency  string          `json:"frequency"`
	BillingDay int             `json:"billing_day"`
	StartDate  string          `json:"start_date"`
	Active     *bool           `json:"active"`
}

func (r billingRequest) toInput() (clientdomain.BillingInput, error) {
	input := clientdomain.BillingInput{
		Enabled:    r.Enabled,
		Amount:     r.Amount,
		Frequency:  strings.TrimSpace(r.Frequency),
		BillingDay: r.BillingDay,
		Active:     r.Active,
	}
	start, err := parseOptionalTime(r.StartDate)
	if err != nil {
		return clientdomain.BillingInput{}, newValidationError("start_date", "invalid_start_date", "invalid start_date")
	}
	if start != nil {
		input.StartDate = *start
	}
	return input, nil
}

type createClientRequest struct {
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	Website       string          `json:"website"`
	ContactPerson string          `json:"contact_person"`
	Status        string          `json:"status"`
	Notes         string          `json:"notes"`
	Billing       *billingRequest `json:"billing"`
}

type updateClientRequest struct {
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	Phone         *string `json:"phone"`
	Website       *string `json:"website"`
	ContactPerson *string `json:"contact_person"`
	Status        *string `json:"status"`
	Notes         *string `json:"notes"`
}

type updateBillingRequest struct {
	billingRequest
	AsOf string `json:"as_of"`
}

func (s *Server) CreateClient(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	create := clientdomain.CreateClientRequest{
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.TrimSpace(req.Email),
		Phone:         req.Phone,
		Website:       req.Website,
		ContactPerson: req.ContactPerson,
		Status:        req.Status,
		Notes:         req.Notes,
	}
	if req.Billing != nil {
		input, err := req.Billing.toInput()
		if err != nil {
			AbortWithError(c, err)
			return
		}
		create.Billing = &input
	}

	resp, err := s.clientSvc.Create(c.Request.Context(), create)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListClients(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Name   string `form:"name"`
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.clientSvc.List(c.Request.Context(), clientdomain.ListClientRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		Name:      strings.TrimSpace(query.Name),
		Status:    strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetClientByID(c *gin.Context) {
	resp, err := s.clientSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateClient(c *gin.Context) {
	var req updateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.clientSvc.Update(c.Request.Context(), strings.TrimSpace(c.Param("id")), clientdomain.UpdateClientRequest{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		Website:       req.Website,
		ContactPerson: req.ContactPerson,
		Status:        req.Status,
		Notes:         req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// UpdateClientBilling saves the billing configuration and runs generation
// for the client before responding.
func (s *Server) UpdateClientBilling(c *gin.Context) {
	var req updateBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	input, err := req.billingRequest.toInput()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	asOf, err := parseOptionalTime(req.AsOf)
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of"))
		return
	}

	resp, err := s.clientSvc.UpdateBilling(c.Request.Context(), clientdomain.UpdateBillingRequest{
		ClientID: strings.TrimSpace(c.Param("id")),
		Billing:  input,
		AsOf:     asOf,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteClient(c *gin.Context) {
	if err := s.clientSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
