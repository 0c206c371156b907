package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/chatlyhq/chatly/internal/subscription/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListPlans(c *gin.Context) {
	plans, err := s.planSvc.ListPublic(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": plans})
}

func (s *Server) GetSubscription(c *gin.Context) {
	companyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	sub, err := s.subSvc.GetByCompany(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sub})
}

type checkoutRequest struct {
	PlanCode string `json:"plan_code"`
	Quantity int64  `json:"quantity"`
}

func (s *Server) Checkout(c *gin.Context) {
	companyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	result, err := s.subSvc.Checkout(c.Request.Context(), subscriptiondomain.CheckoutRequest{
		CompanyID: companyID,
		PlanCode:  strings.TrimSpace(req.PlanCode),
		Quantity:  req.Quantity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListInvoices(c *gin.Context) {
	companyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	invoices, err := s.invoiceSvc.ListByCompany(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoices})
}

func (s *Server) PayInvoice(c *gin.Context) {
	invoiceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.Pay(c.Request.Context(), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) InvoicePDF(c *gin.Context) {
	invoiceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	doc, err := s.invoiceSvc.RenderPDF(c.Request.Context(), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	buf, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/pdf", buf)
}

func pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil {
		AbortWithError(c, newValidationError(name, "invalid_id", "invalid id"))
		return 0, false
	}
	return id, true
}
