package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expenseflow/expenseflow/internal/application/service"
	"github.com/expenseflow/expenseflow/internal/domain/apperr"
	"github.com/expenseflow/expenseflow/internal/domain/entity"
	"github.com/expenseflow/expenseflow/internal/export"
)

type stubExpenseService struct {
	createDraftFunc func(ctx context.Context, actor entity.Actor, input service.CreateExpenseInput) (*entity.Expense, error)
	getFunc         func(ctx context.Context, actor entity.Actor, expenseID string) (*entity.Expense, error)
	deleteFunc      func(ctx context.Context, actor entity.Actor, expenseID string) error
	listFunc        func(ctx context.Context, actor entity.Actor, filter service.ListFilter) ([]*entity.Expense, error)
}

func (s *stubExpenseService) CreateDraft(ctx context.Context, actor entity.Actor, input service.CreateExpenseInput) (*entity.Expense, error) {
	if s.createDraftFunc != nil {
		return s.createDraftFunc(ctx, actor, input)
	}
	return &entity.Expense{ExpenseID: "EXP-ACME-20260115-A1B2", Status: entity.StatusDraft}, nil
}

func (s *stubExpenseService) Get(ctx context.Context, actor entity.Actor, expenseID string) (*entity.Expense, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, actor, expenseID)
	}
	return &entity.Expense{ExpenseID: expenseID, Status: entity.StatusDraft}, nil
}

func (s *stubExpenseService) EditDraft(ctx context.Context, actor entity.Actor, expenseID string, input service.UpdateExpenseInput) (*entity.Expense, error) {
	return &entity.Expense{ExpenseID: expenseID, Status: entity.StatusDraft}, nil
}

func (s *stubExpenseService) Delete(ctx context.Context, actor entity.Actor, expenseID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, actor, expenseID)
	}
	return nil
}

func (s *stubExpenseService) List(ctx context.Context, actor entity.Actor, filter service.ListFilter) ([]*entity.Expense, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, actor, filter)
	}
	return []*entity.Expense{}, nil
}

func (s *stubExpenseService) ListPendingFor(ctx context.Context, actor entity.Actor) ([]*entity.Expense, error) {
	return []*entity.Expense{}, nil
}

func (s *stubExpenseService) ListApproved(ctx context.Context, actor entity.Actor, filter service.ListFilter) (*service.ApprovedSummary, error) {
	return &service.ApprovedSummary{Expenses: []*entity.Expense{}, Currency: "USD", Normalized: true}, nil
}

func (s *stubExpenseService) ListRejected(ctx context.Context, actor entity.Actor, filter service.ListFilter) ([]*entity.Expense, error) {
	return []*entity.Expense{}, nil
}

func (s *stubExpenseService) History(ctx context.Context, actor entity.Actor, expenseID string) ([]entity.ApprovalEntry, error) {
	return []entity.ApprovalEntry{}, nil
}

func (s *stubExpenseService) Statistics(ctx context.Context, actor entity.Actor) (*service.Statistics, error) {
	return &service.Statistics{Currency: "USD"}, nil
}

type stubPolicyService struct {
	getFunc func(ctx context.Context, actor entity.Actor) (*entity.ApprovalPolicy, error)
	setFunc func(ctx context.Context, actor entity.Actor, input service.PolicyInput) (*entity.ApprovalPolicy, error)
}

func (s *stubPolicyService) Get(ctx context.Context, actor entity.Actor) (*entity.ApprovalPolicy, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, actor)
	}
	return entity.DefaultApprovalPolicy(actor.CompanyID), nil
}

func (s *stubPolicyService) Set(ctx context.Context, actor entity.Actor, input service.PolicyInput) (*entity.ApprovalPolicy, error) {
	if s.setFunc != nil {
		return s.setFunc(ctx, actor, input)
	}
	return entity.DefaultApprovalPolicy(actor.CompanyID), nil
}

type stubEngine struct {
	submitFunc  func(ctx context.Context, actor entity.Actor, expenseID string) (*entity.Expense, error)
	approveFunc func(ctx context.Context, actor entity.Actor, expenseID, comment string) (*entity.Expense, error)
	rejectFunc  func(ctx context.Context, actor entity.Actor, expenseID, comment string) (*entity.Expense, error)
}

func (s *stubEngine) Submit(ctx context.Context, actor entity.Actor, expenseID string) (*entity.Expense, error) {
	if s.submitFunc != nil {
		return s.submitFunc(ctx, actor, expenseID)
	}
	return &entity.Expense{ExpenseID: expenseID, Status: entity.StatusWaitingApproval, CurrentApprovalLevel: 1}, nil
}

func (s *stubEngine) Approve(ctx context.Context, actor entity.Actor, expenseID, comment string) (*entity.Expense, error) {
	if s.approveFunc != nil {
		return s.approveFunc(ctx, actor, expenseID, comment)
	}
	return &entity.Expense{ExpenseID: expenseID, Status: entity.StatusApproved}, nil
}

func (s *stubEngine) Reject(ctx context.Context, actor entity.Actor, expenseID, comment string) (*entity.Expense, error) {
	if s.rejectFunc != nil {
		return s.rejectFunc(ctx, actor, expenseID, comment)
	}
	return &entity.Expense{ExpenseID: expenseID, Status: entity.StatusRejected}, nil
}

type stubCompanyRepo struct{}

func (s *stubCompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	return &entity.Company{ID: id, Name: "Acme Corp", Currency: "USD"}, nil
}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type serverFixture struct {
	expenses *stubExpenseService
	policies *stubPolicyService
	engine   *stubEngine
	server   *Server
}

func newServerFixture() *serverFixture {
	f := &serverFixture{
		expenses: &stubExpenseService{},
		policies: &stubPolicyService{},
		engine:   &stubEngine{},
	}
	f.server = NewServer(
		DefaultServerConfig(),
		f.expenses,
		f.policies,
		f.engine,
		&stubCompanyRepo{},
		export.NewReportWriter(zap.NewNop()),
		nopLogger{},
	)
	return f
}

func (f *serverFixture) do(method, path, body string, identified bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if identified {
		req.Header.Set("X-User-ID", "u-emp1")
		req.Header.Set("X-User-Role", "employee")
		req.Header.Set("X-Company-ID", "c-acme")
	}

	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	f := newServerFixture()

	w := f.do(http.MethodGet, "/health", "", false)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
}

func TestIdentityMiddleware_RejectsMissingHeaders(t *testing.T) {
	f := newServerFixture()

	w := f.do(http.MethodGet, "/api/expenses", "", false)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
}

func TestIdentityMiddleware_RejectsUnknownRole(t *testing.T) {
	f := newServerFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	req.Header.Set("X-User-ID", "u-1")
	req.Header.Set("X-User-Role", "superuser")
	req.Header.Set("X-Company-ID", "c-1")

	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateExpense_ParsesFreeTextAmount(t *testing.T) {
	f := newServerFixture()

	var captured service.CreateExpenseInput
	f.expenses.createDraftFunc = func(ctx context.Context, actor entity.Actor, input service.CreateExpenseInput) (*entity.Expense, error) {
		captured = input
		return &entity.Expense{ExpenseID: "EXP-ACME-20260115-A1B2", Status: entity.StatusDraft}, nil
	}

	body := `{"description":"Taxi","amount":"USD 100","currency":"EUR","category":"Transport","expense_date":"2026-01-10"}`
	w := f.do(http.MethodPost, "/api/expenses", body, true)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, captured.Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "USD", captured.Currency, "the code embedded in the amount wins")
	assert.Equal(t, "Taxi", captured.Description)
	assert.Equal(t, "2026-01-10", captured.ExpenseDate.Format("2006-01-02"))
}

func TestCreateExpense_RejectsMalformedBody(t *testing.T) {
	f := newServerFixture()

	w := f.do(http.MethodPost, "/api/expenses", `{"description":`, true)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "validation", resp.ErrorKind)
}

func TestErrorTaxonomyMapsToStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"not found", apperr.NotFound("expense x"), http.StatusNotFound, "not_found"},
		{"unauthorized", apperr.Unauthorized("wrong company"), http.StatusForbidden, "unauthorized"},
		{"invalid state", apperr.InvalidState("expense is Approved"), http.StatusConflict, "invalid_state"},
		{"conflict", apperr.Conflict("changed concurrently"), http.StatusConflict, "conflict"},
		{"validation", apperr.Validation("comment required"), http.StatusBadRequest, "validation"},
		{"external unavailable", apperr.ExternalUnavailable("rates down"), http.StatusServiceUnavailable, "external_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServerFixture()
			f.expenses.getFunc = func(ctx context.Context, actor entity.Actor, expenseID string) (*entity.Expense, error) {
				return nil, tt.err
			}

			w := f.do(http.MethodGet, "/api/expenses/EXP-1", "", true)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.Equal(t, tt.wantKind, resp.ErrorKind)
			assert.Contains(t, resp.Error, tt.err.Error())
		})
	}
}

func TestInternalErrorsAreMasked(t *testing.T) {
	f := newServerFixture()
	f.expenses.getFunc = func(ctx context.Context, actor entity.Actor, expenseID string) (*entity.Expense, error) {
		return nil, errors.New("sqlite: database is locked")
	}

	w := f.do(http.MethodGet, "/api/expenses/EXP-1", "", true)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "internal error", resp.Error)
	assert.NotContains(t, w.Body.String(), "sqlite")
}

func TestApproveExpense_ForwardsComment(t *testing.T) {
	f := newServerFixture()

	var gotComment string
	f.engine.approveFunc = func(ctx context.Context, actor entity.Actor, expenseID, comment string) (*entity.Expense, error) {
		gotComment = comment
		return &entity.Expense{ExpenseID: expenseID, Status: entity.StatusApproved}, nil
	}

	w := f.do(http.MethodPost, "/api/expenses/EXP-1/approve", `{"comment":"looks good"}`, true)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "looks good", gotComment)
}

func TestApproveExpense_EmptyBodyAllowed(t *testing.T) {
	f := newServerFixture()

	w := f.do(http.MethodPost, "/api/expenses/EXP-1/approve", "", true)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRejectExpense_BlankCommentSurfacesValidation(t *testing.T) {
	f := newServerFixture()
	f.engine.rejectFunc = func(ctx context.Context, actor entity.Actor, expenseID, comment string) (*entity.Expense, error) {
		return nil, apperr.Validation("a comment is required to reject")
	}

	w := f.do(http.MethodPost, "/api/expenses/EXP-1/reject", `{"comment":"  "}`, true)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitExpense(t *testing.T) {
	f := newServerFixture()

	w := f.do(http.MethodPost, "/api/expenses/EXP-1/submit", "", true)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var expense entity.Expense
	require.NoError(t, json.Unmarshal(data, &expense))
	assert.Equal(t, entity.StatusWaitingApproval, expense.Status)
	assert.Equal(t, 1, expense.CurrentApprovalLevel)
}

func TestListExpenses_RejectsBadDateFilter(t *testing.T) {
	f := newServerFixture()

	w := f.do(http.MethodGet, "/api/expenses?from=yesterday", "", true)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportApproved_SetsAttachmentHeaders(t *testing.T) {
	f := newServerFixture()

	w := f.do(http.MethodGet, "/api/expenses/approved/export", "", true)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.NotZero(t, w.Body.Len())
}

func TestSetPolicy_ForwardsLevelsAlias(t *testing.T) {
	f := newServerFixture()

	var captured service.PolicyInput
	f.policies.setFunc = func(ctx context.Context, actor entity.Actor, input service.PolicyInput) (*entity.ApprovalPolicy, error) {
		captured = input
		return entity.DefaultApprovalPolicy(actor.CompanyID), nil
	}

	body := `{"levels":[{"level":1,"approver_id":"cfo","required":true,"is_active":true}]}`
	w := f.do(http.MethodPut, "/api/policy", body, true)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, captured.Levels, 1)
	assert.Equal(t, "cfo", captured.Levels[0].ApproverID)
}
