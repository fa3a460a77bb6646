package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/expenseflow/expenseflow/internal/application/port"
	"github.com/expenseflow/expenseflow/internal/application/service"
	"github.com/expenseflow/expenseflow/internal/application/workflow"
	"github.com/expenseflow/expenseflow/internal/currency"
	"github.com/expenseflow/expenseflow/internal/domain/apperr"
	"github.com/expenseflow/expenseflow/internal/domain/entity"
	"github.com/expenseflow/expenseflow/internal/export"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	expenseService service.ExpenseService
	policyService  service.PolicyService
	engine         workflow.Engine
	companyRepo    port.CompanyRepository
	reports        *export.ReportWriter
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	expenseService service.ExpenseService,
	policyService service.PolicyService,
	engine workflow.Engine,
	companyRepo port.CompanyRepository,
	reports *export.ReportWriter,
	logger Logger,
) *Handlers {
	return &Handlers{
		expenseService: expenseService,
		policyService:  policyService,
		engine:         engine,
		companyRepo:    companyRepo,
		reports:        reports,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateExpenseRequest is the payload for creating a draft. Amount is free
// text ("125.50", "USD 100", "5000 rs"); an embedded currency code wins over
// the currency field.
type CreateExpenseRequest struct {
	Description string          `json:"description"`
	Amount      string          `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	ExpenseDate string          `json:"expense_date"`
	PaidBy      string          `json:"paid_by"`
	Remarks     string          `json:"remarks"`
	Receipt     *entity.Receipt `json:"receipt,omitempty"`
	OCRData     *entity.OCRData `json:"ocr_data,omitempty"`
}

// UpdateExpenseRequest carries a partial draft update.
type UpdateExpenseRequest struct {
	Description *string         `json:"description,omitempty"`
	Amount      *string         `json:"amount,omitempty"`
	Currency    *string         `json:"currency,omitempty"`
	Category    *string         `json:"category,omitempty"`
	ExpenseDate *string         `json:"expense_date,omitempty"`
	PaidBy      *string         `json:"paid_by,omitempty"`
	Remarks     *string         `json:"remarks,omitempty"`
	Receipt     *entity.Receipt `json:"receipt,omitempty"`
}

// DecisionRequest carries an approval or rejection comment.
type DecisionRequest struct {
	Comment string `json:"comment"`
}

// PolicyRequest is the payload for replacing the company approval policy.
// Levels is a legacy alias for ApprovalRules.
type PolicyRequest struct {
	IsManagerApprover     *bool                    `json:"is_manager_approver,omitempty"`
	ApprovalSequence      *bool                    `json:"approval_sequence,omitempty"`
	MinApprovalPercentage *int                     `json:"min_approval_percentage,omitempty"`
	ConditionalRules      *entity.ConditionalRules `json:"conditional_rules,omitempty"`
	ApprovalRules         []entity.ApprovalRule    `json:"approval_rules,omitempty"`
	Levels                []entity.ApprovalRule    `json:"levels,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateExpense handles POST /api/expenses
func (h *Handlers) CreateExpense(c *gin.Context) {
	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	amount, code := currency.ParseAmount(req.Amount, req.Currency)

	input := service.CreateExpenseInput{
		Description: req.Description,
		Amount:      amount,
		Currency:    code,
		Category:    req.Category,
		PaidBy:      req.PaidBy,
		Remarks:     req.Remarks,
		Receipt:     req.Receipt,
		OCRData:     req.OCRData,
	}
	if req.ExpenseDate != "" {
		date, err := parseDate(req.ExpenseDate)
		if err != nil {
			h.badRequest(c, "invalid expense_date")
			return
		}
		input.ExpenseDate = date
	}

	expense, err := h.expenseService.CreateDraft(c.Request.Context(), currentActor(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: expense})
}

// GetExpense handles GET /api/expenses/:id
func (h *Handlers) GetExpense(c *gin.Context) {
	expense, err := h.expenseService.Get(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: expense})
}

// UpdateExpense handles PUT /api/expenses/:id
func (h *Handlers) UpdateExpense(c *gin.Context) {
	var req UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	input := service.UpdateExpenseInput{
		Description: req.Description,
		Currency:    req.Currency,
		Category:    req.Category,
		PaidBy:      req.PaidBy,
		Remarks:     req.Remarks,
		Receipt:     req.Receipt,
	}
	if req.Amount != nil {
		fallback := ""
		if req.Currency != nil {
			fallback = *req.Currency
		}
		amount, code := currency.ParseAmount(*req.Amount, fallback)
		input.Amount = &amount
		if code != "" {
			input.Currency = &code
		}
	}
	if req.ExpenseDate != nil {
		date, err := parseDate(*req.ExpenseDate)
		if err != nil {
			h.badRequest(c, "invalid expense_date")
			return
		}
		input.ExpenseDate = &date
	}

	expense, err := h.expenseService.EditDraft(c.Request.Context(), currentActor(c), c.Param("id"), input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: expense})
}

// DeleteExpense handles DELETE /api/expenses/:id
func (h *Handlers) DeleteExpense(c *gin.Context) {
	if err := h.expenseService.Delete(c.Request.Context(), currentActor(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// ListExpenses handles GET /api/expenses
func (h *Handlers) ListExpenses(c *gin.Context) {
	filter, err := listFilterFromQuery(c)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	expenses, err := h.expenseService.List(c.Request.Context(), currentActor(c), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: expenses})
}

// ListPending handles GET /api/expenses/pending
func (h *Handlers) ListPending(c *gin.Context) {
	expenses, err := h.expenseService.ListPendingFor(c.Request.Context(), currentActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: expenses})
}

// ListApproved handles GET /api/expenses/approved
func (h *Handlers) ListApproved(c *gin.Context) {
	filter, err := listFilterFromQuery(c)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	summary, err := h.expenseService.ListApproved(c.Request.Context(), currentActor(c), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: summary})
}

// ListRejected handles GET /api/expenses/rejected
func (h *Handlers) ListRejected(c *gin.Context) {
	filter, err := listFilterFromQuery(c)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	expenses, err := h.expenseService.ListRejected(c.Request.Context(), currentActor(c), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: expenses})
}

// ExportApproved handles GET /api/expenses/approved/export
func (h *Handlers) ExportApproved(c *gin.Context) {
	actor := currentActor(c)

	filter, err := listFilterFromQuery(c)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	summary, err := h.expenseService.ListApproved(c.Request.Context(), actor, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	company, err := h.companyRepo.GetByID(c.Request.Context(), actor.CompanyID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	filename := fmt.Sprintf("approved-expenses-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := h.reports.WriteApproved(c.Writer, company, summary.Expenses); err != nil {
		h.logger.Error("Failed to export approved expenses", "error", err, "company_id", actor.CompanyID)
	}
}

// SubmitExpense handles POST /api/expenses/:id/submit
func (h *Handlers) SubmitExpense(c *gin.Context) {
	expense, err := h.engine.Submit(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: expense})
}

// ApproveExpense handles POST /api/expenses/:id/approve
func (h *Handlers) ApproveExpense(c *gin.Context) {
	var req DecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "invalid request body")
			return
		}
	}

	expense, err := h.engine.Approve(c.Request.Context(), currentActor(c), c.Param("id"), req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: expense})
}

// RejectExpense handles POST /api/expenses/:id/reject
func (h *Handlers) RejectExpense(c *gin.Context) {
	var req DecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "invalid request body")
			return
		}
	}

	expense, err := h.engine.Reject(c.Request.Context(), currentActor(c), c.Param("id"), req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: expense})
}

// GetHistory handles GET /api/expenses/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	history, err := h.expenseService.History(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

// GetStatistics handles GET /api/statistics
func (h *Handlers) GetStatistics(c *gin.Context) {
	stats, err := h.expenseService.Statistics(c.Request.Context(), currentActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: stats})
}

// GetPolicy handles GET /api/policy
func (h *Handlers) GetPolicy(c *gin.Context) {
	policy, err := h.policyService.Get(c.Request.Context(), currentActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: policy})
}

// SetPolicy handles PUT /api/policy
func (h *Handlers) SetPolicy(c *gin.Context) {
	var req PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	policy, err := h.policyService.Set(c.Request.Context(), currentActor(c), service.PolicyInput{
		IsManagerApprover:     req.IsManagerApprover,
		ApprovalSequence:      req.ApprovalSequence,
		MinApprovalPercentage: req.MinApprovalPercentage,
		ConditionalRules:      req.ConditionalRules,
		ApprovalRules:         req.ApprovalRules,
		Levels:                req.Levels,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: policy})
}

// respondError maps the error taxonomy onto HTTP statuses.
func (h *Handlers) respondError(c *gin.Context, err error) {
	kind := apperr.Kind(err)

	status := http.StatusInternalServerError
	switch kind {
	case "not_found":
		status = http.StatusNotFound
	case "unauthorized":
		status = http.StatusForbidden
	case "validation":
		status = http.StatusBadRequest
	case "invalid_state", "conflict":
		status = http.StatusConflict
	case "external_unavailable":
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err, "path", c.Request.URL.Path)
		c.JSON(status, Response{Success: false, Error: "internal error", ErrorKind: kind})
		return
	}

	c.JSON(status, Response{Success: false, Error: err.Error(), ErrorKind: kind})
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg, ErrorKind: "validation"})
}

func listFilterFromQuery(c *gin.Context) (service.ListFilter, error) {
	filter := service.ListFilter{
		Status:     c.Query("status"),
		Category:   c.Query("category"),
		EmployeeID: c.Query("employee_id"),
	}

	if from := c.Query("from"); from != "" {
		date, err := parseDate(from)
		if err != nil {
			return filter, fmt.Errorf("invalid from date")
		}
		filter.DateFrom = &date
	}
	if to := c.Query("to"); to != "" {
		date, err := parseDate(to)
		if err != nil {
			return filter, fmt.Errorf("invalid to date")
		}
		filter.DateTo = &date
	}

	return filter, nil
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}
