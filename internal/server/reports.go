package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	dashboarddomain "github.com/smallbiznis/clientdesk/internal/billingdashboard/domain"
	"github.com/smallbiznis/clientdesk/internal/billingdashboard/rollup"
)

func parseReportRequest(c *gin.Context) (dashboarddomain.ReportRequest, error) {
	asOf, err := parseOptionalTime(c.Query("as_of"))
	if err != nil {
		return dashboarddomain.ReportRequest{}, newValidationError("as_of", "invalid_as_of", "invalid as_of")
	}
	return dashboarddomain.ReportRequest{
		Month:    strings.TrimSpace(c.Query("month")),
		ClientID: strings.TrimSpace(c.Query("client_id")),
		AsOf:     asOf,
	}, nil
}

func (s *Server) GetReportOverview(c *gin.Context) {
	if s.dashboardSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	req, err := parseReportRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.dashboardSvc.Overview(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReportMonthly(c *gin.Context) {
	if s.dashboardSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	req, err := parseReportRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.dashboardSvc.Monthly(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReportGrowth(c *gin.Context) {
	if s.dashboardSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	req, err := parseReportRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.dashboardSvc.Growth(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReportUpcoming(c *gin.Context) {
	if s.dashboardSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	req, err := parseReportRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.dashboardSvc.Upcoming(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReportTopClients(c *gin.Context) {
	if s.dashboardSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	req, err := parseReportRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.dashboardSvc.TopClients(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReportCompletion(c *gin.Context) {
	if s.dashboardSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	req, err := parseReportRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.dashboardSvc.Completion(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReportTrend(c *gin.Context) {
	if s.dashboardSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	req, err := parseReportRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.dashboardSvc.Trend(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ExportReportCSV renders the overview for the requested month as CSV.
func (s *Server) ExportReportCSV(c *gin.Context) {
	if s.dashboardSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	req, err := parseReportRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	overview, err := s.dashboardSvc.Overview(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := rollup.WriteCSV(&buf, overview); err != nil {
		AbortWithError(c, err)
		return
	}

	filename := fmt.Sprintf("clientdesk-report-%s.csv", overview.Month)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
