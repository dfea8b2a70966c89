package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"vat-service/internal/events"
	"vat-service/internal/models"
	"vat-service/internal/repository"
	"vat-service/internal/services"
	"gorm.io/gorm"
)

// VATHandler handles VAT HTTP requests
type VATHandler struct {
	calculator *services.VATCalculator
	repo       *repository.VATRepository
}

// NewVATHandler creates a new VAT handler
func NewVATHandler(calculator *services.VATCalculator, repo *repository.VATRepository) *VATHandler {
	return &VATHandler{
		calculator: calculator,
		repo:       repo,
	}
}

// ListVATRates handles GET /api/v1/vat/rates
func (h *VATHandler) ListVATRates(c *gin.Context) {
	country := c.DefaultQuery("country", "Ireland")
	activeOnly, err := strconv.ParseBool(c.DefaultQuery("active_only", "true"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": "active_only must be a boolean",
		})
		return
	}

	rates, err := h.repo.ListRates(c.Request.Context(), country, activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list VAT rates",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, rates)
}

// CalculateVAT handles POST /api/v1/vat/calculate
func (h *VATHandler) CalculateVAT(c *gin.Context) {
	netAmount, err := requiredDecimalQuery(c, "net_amount")
	if err != nil {
		badRequest(c, err)
		return
	}

	req := models.CalculateVATRequest{NetAmount: netAmount}
	req.VATRateID, req.VATRatePercentage, req.BusinessUsagePercentage, err = rateQueryParams(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	calc, err := h.calculator.CalculateVAT(c.Request.Context(), req)
	if err != nil {
		calculationError(c, err)
		return
	}

	if pub := events.GetPublisher(); pub != nil {
		_ = pub.PublishCalculationCompleted(c.Request.Context(), "net", calc)
	}

	c.JSON(http.StatusOK, calc)
}

// CalculateVATFromGross handles POST /api/v1/vat/calculate-from-gross
func (h *VATHandler) CalculateVATFromGross(c *gin.Context) {
	grossAmount, err := requiredDecimalQuery(c, "gross_amount")
	if err != nil {
		badRequest(c, err)
		return
	}

	req := models.CalculateFromGrossRequest{GrossAmount: grossAmount}
	req.VATRateID, req.VATRatePercentage, req.BusinessUsagePercentage, err = rateQueryParams(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	calc, err := h.calculator.CalculateVATFromGross(c.Request.Context(), req)
	if err != nil {
		calculationError(c, err)
		return
	}

	if pub := events.GetPublisher(); pub != nil {
		_ = pub.PublishCalculationCompleted(c.Request.Context(), "gross", calc)
	}

	c.JSON(http.StatusOK, calc)
}

// GetExpenseCategories handles GET /api/v1/vat/expense-categories
func (h *VATHandler) GetExpenseCategories(c *gin.Context) {
	ctx := c.Request.Context()

	categories, err := h.repo.ListExpenseCategories(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list expense categories",
			"message": err.Error(),
		})
		return
	}

	rates, err := h.repo.ListRates(ctx, "Ireland", true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list VAT rates",
			"message": err.Error(),
		})
		return
	}

	options, err := h.repo.ListBusinessUsageOptions(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list business usage options",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.ExpenseCategoryResponse{
		Categories:           categories,
		VATRates:             rates,
		BusinessUsageOptions: options,
	})
}

// GetVATSummary handles GET /api/v1/vat/summary/:companyId
func (h *VATHandler) GetVATSummary(c *gin.Context) {
	companyID := c.Param("companyId")

	start, err := time.Parse("2006-01-02", c.Query("start_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": "start_date must be YYYY-MM-DD",
		})
		return
	}
	end, err := time.Parse("2006-01-02", c.Query("end_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": "end_date must be YYYY-MM-DD",
		})
		return
	}

	summary, err := h.calculator.SummaryForPeriod(c.Request.Context(), companyID, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to calculate VAT summary",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ==================== VAT Rate CRUD ====================

// CreateVATRate handles POST /api/v1/vat/rates
func (h *VATHandler) CreateVATRate(c *gin.Context) {
	var req models.CreateVATRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.RatePercentage.IsNegative() {
		badRequest(c, services.ErrNegativeRate)
		return
	}

	effectiveFrom, err := time.Parse("2006-01-02", req.EffectiveFrom)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": "effective_from must be YYYY-MM-DD",
		})
		return
	}
	var effectiveUntil *time.Time
	if req.EffectiveUntil != "" {
		t, err := time.Parse("2006-01-02", req.EffectiveUntil)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request",
				"message": "effective_until must be YYYY-MM-DD",
			})
			return
		}
		effectiveUntil = &t
	}

	rate := models.VATRate{
		Country:        req.Country,
		RateName:       req.RateName,
		RatePercentage: req.RatePercentage,
		Description:    req.Description,
		IsActive:       true,
		EffectiveFrom:  effectiveFrom,
		EffectiveUntil: effectiveUntil,
	}
	if err := h.repo.CreateRate(c.Request.Context(), &rate); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to create VAT rate",
			"message": err.Error(),
		})
		return
	}

	if pub := events.GetPublisher(); pub != nil {
		_ = pub.PublishRateChanged(c.Request.Context(), events.VATRateCreated, &rate)
	}

	c.JSON(http.StatusCreated, rate)
}

// UpdateVATRate handles PUT /api/v1/vat/rates/:id
func (h *VATHandler) UpdateVATRate(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid rate ID",
			"message": err.Error(),
		})
		return
	}

	rate, err := h.repo.GetRate(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "VAT rate not found",
			"message": err.Error(),
		})
		return
	}

	var req models.CreateVATRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.RatePercentage.IsNegative() {
		badRequest(c, services.ErrNegativeRate)
		return
	}

	rate.Country = req.Country
	rate.RateName = req.RateName
	rate.RatePercentage = req.RatePercentage
	rate.Description = req.Description
	if t, err := time.Parse("2006-01-02", req.EffectiveFrom); err == nil {
		rate.EffectiveFrom = t
	}
	if req.EffectiveUntil != "" {
		if t, err := time.Parse("2006-01-02", req.EffectiveUntil); err == nil {
			rate.EffectiveUntil = &t
		}
	} else {
		rate.EffectiveUntil = nil
	}

	if err := h.repo.UpdateRate(c.Request.Context(), rate); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to update VAT rate",
			"message": err.Error(),
		})
		return
	}

	if pub := events.GetPublisher(); pub != nil {
		_ = pub.PublishRateChanged(c.Request.Context(), events.VATRateUpdated, rate)
	}

	c.JSON(http.StatusOK, rate)
}

// DeleteVATRate handles DELETE /api/v1/vat/rates/:id
func (h *VATHandler) DeleteVATRate(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid rate ID",
			"message": err.Error(),
		})
		return
	}

	if err := h.repo.DeleteRate(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "VAT rate not found",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to delete VAT rate",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "VAT rate deactivated"})
}

// ==================== Expenses ====================

// CreateExpense handles POST /api/v1/expenses
func (h *VATHandler) CreateExpense(c *gin.Context) {
	var req models.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	expenseDate, err := time.Parse("2006-01-02", req.ExpenseDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": "expense_date must be YYYY-MM-DD",
		})
		return
	}

	expenseType := req.ExpenseType
	if expenseType == "" {
		expenseType = models.ExpenseTypeGeneral
	}

	netAmount := req.NetAmount
	var mileageRate *decimal.Decimal

	// E-worker and mileage expenses derive their net amount instead of
	// taking it from the request.
	switch expenseType {
	case models.ExpenseTypeEWorker:
		if req.EWorkerDays != nil && req.EWorkerRate != nil {
			netAmount = services.EWorkerExpense(*req.EWorkerDays, *req.EWorkerRate)
		}
	case models.ExpenseTypeMileage:
		if req.MileageKM != nil {
			rate := services.IrishMileageRate()
			mileageRate = &rate
			netAmount = services.MileageExpense(*req.MileageKM, rate)
		}
	}

	businessUsage := decimal.NewFromInt(100)
	if req.BusinessUsagePercentage != nil {
		businessUsage = *req.BusinessUsagePercentage
	}

	calcReq := models.CalculateVATRequest{
		NetAmount:               netAmount,
		VATRateID:               req.VATRateID,
		BusinessUsagePercentage: businessUsage,
	}
	if req.VATRateID == nil {
		// No rate reference means no VAT applies (mileage, e-worker allowances)
		zero := decimal.Zero
		calcReq.VATRatePercentage = &zero
	}

	calc, err := h.calculator.CalculateVAT(c.Request.Context(), calcReq)
	if err != nil {
		calculationError(c, err)
		return
	}

	expense := models.Expense{
		ID:                      uuid.New(),
		CompanyID:               req.CompanyID,
		ExpenseDate:             expenseDate,
		CategoryID:              req.CategoryID,
		Description:             req.Description,
		NetAmount:               netAmount,
		VATRateID:               req.VATRateID,
		VATAmount:               calc.VATAmount,
		GrossAmount:             calc.GrossAmount,
		SupplierName:            req.SupplierName,
		BusinessUsagePercentage: calc.BusinessUsagePercentage,
		DeductibleAmount:        calc.DeductibleAmount,
		ExpenseType:             expenseType,
		EWorkerDays:             req.EWorkerDays,
		EWorkerRate:             req.EWorkerRate,
		MileageKM:               req.MileageKM,
		MileageRate:             mileageRate,
		Notes:                   req.Notes,
		ReceiptRequired:         true,
	}
	if err := h.repo.CreateExpense(c.Request.Context(), &expense); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to create expense",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":              expense.ID,
		"vat_calculation": calc,
	})
}

// ListExpenses handles GET /api/v1/expenses/:companyId
func (h *VATHandler) ListExpenses(c *gin.Context) {
	expenses, err := h.repo.ListExpenses(c.Request.Context(), c.Param("companyId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list expenses",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, expenses)
}

// ==================== Invoices ====================

// CreateInvoice handles POST /api/v1/invoices
func (h *VATHandler) CreateInvoice(c *gin.Context) {
	var req models.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	issueDate, err := time.Parse("2006-01-02", req.IssueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": "issue_date must be YYYY-MM-DD",
		})
		return
	}
	var dueDate *time.Time
	if req.DueDate != "" {
		t, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request",
				"message": "due_date must be YYYY-MM-DD",
			})
			return
		}
		dueDate = &t
	}

	calcReq := models.CalculateVATRequest{
		NetAmount:               req.NetAmount,
		VATRateID:               req.VATRateID,
		BusinessUsagePercentage: decimal.NewFromInt(100),
	}
	if req.VATRateID == nil {
		zero := decimal.Zero
		calcReq.VATRatePercentage = &zero
	}

	calc, err := h.calculator.CalculateVAT(c.Request.Context(), calcReq)
	if err != nil {
		calculationError(c, err)
		return
	}

	invoiceType := req.InvoiceType
	if invoiceType == "" {
		invoiceType = models.InvoiceTypeStandard
	}
	customerCountry := req.CustomerCountry
	if customerCountry == "" {
		customerCountry = "Ireland"
	}

	invoice := models.Invoice{
		ID:                uuid.New(),
		CompanyID:         req.CompanyID,
		InvoiceNumber:     req.InvoiceNumber,
		IssueDate:         issueDate,
		DueDate:           dueDate,
		CustomerName:      req.CustomerName,
		NetAmount:         req.NetAmount,
		VATRateID:         req.VATRateID,
		VATAmount:         calc.VATAmount,
		GrossAmount:       calc.GrossAmount,
		InvoiceType:       invoiceType,
		CustomerVATNumber: req.CustomerVATNumber,
		CustomerCountry:   customerCountry,
	}
	if err := h.repo.CreateInvoice(c.Request.Context(), &invoice); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to create invoice",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":              invoice.ID,
		"vat_calculation": calc,
	})
}

// ListInvoices handles GET /api/v1/invoices/:companyId
func (h *VATHandler) ListInvoices(c *gin.Context) {
	invoices, err := h.repo.ListInvoices(c.Request.Context(), c.Param("companyId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list invoices",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, invoices)
}

// ==================== Helpers ====================

func requiredDecimalQuery(c *gin.Context, name string) (decimal.Decimal, error) {
	raw := c.Query(name)
	if raw == "" {
		return decimal.Zero, errors.New(name + " is required")
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.New(name + " must be a decimal number")
	}
	return value, nil
}

// rateQueryParams parses the shared rate/business-usage query parameters of
// the calculation endpoints. Business usage defaults to 100.
func rateQueryParams(c *gin.Context) (*int, *decimal.Decimal, decimal.Decimal, error) {
	var rateID *int
	if raw := c.Query("vat_rate_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return nil, nil, decimal.Zero, errors.New("vat_rate_id must be an integer")
		}
		rateID = &id
	}

	var percentage *decimal.Decimal
	if raw := c.Query("vat_rate_percentage"); raw != "" {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, nil, decimal.Zero, errors.New("vat_rate_percentage must be a decimal number")
		}
		percentage = &p
	}

	businessUsage := decimal.NewFromInt(100)
	if raw := c.Query("business_usage_percentage"); raw != "" {
		u, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, nil, decimal.Zero, errors.New("business_usage_percentage must be a decimal number")
		}
		businessUsage = u
	}

	return rateID, percentage, businessUsage, nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"message": err.Error(),
	})
}

// calculationError maps calculator failures: domain validation errors and
// unresolvable rate references are the caller's fault, everything else is ours
func calculationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNegativeAmount),
		errors.Is(err, services.ErrNegativeRate),
		errors.Is(err, services.ErrRateRequired),
		errors.Is(err, services.ErrInvalidBusinessUsage),
		errors.Is(err, gorm.ErrRecordNotFound):
		badRequest(c, err)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to calculate VAT",
			"message": err.Error(),
		})
	}
}
