package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/expenseflow/expenseflow/internal/domain/entity"
)

func approvedExpense(id, currency, amount string) *entity.Expense {
	return &entity.Expense{
		ExpenseID:            id,
		EmployeeID:           "u-emp1",
		Description:          "Client dinner",
		Category:             entity.CategoryFood,
		Amount:               decimal.RequireFromString(amount),
		Currency:             currency,
		ExpenseDate:          time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		PaidBy:               "Self",
		Status:               entity.StatusApproved,
		CurrentApprovalLevel: 2,
	}
}

func TestReportWriter_WriteApproved(t *testing.T) {
	w := NewReportWriter(zap.NewNop())
	company := &entity.Company{ID: "c-1", Name: "Acme Corp", Currency: "USD"}

	expenses := []*entity.Expense{
		approvedExpense("EXP-ACME-20260110-AAAA", "USD", "120.50"),
		approvedExpense("EXP-ACME-20260110-BBBB", "USD", "79.50"),
		approvedExpense("EXP-ACME-20260110-CCCC", "EUR", "40"),
	}

	var buf bytes.Buffer
	if err := w.WriteApproved(&buf, company, expenses); err != nil {
		t.Fatalf("WriteApproved() failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	if f.GetSheetName(0) != "Approved Expenses" {
		t.Errorf("sheet name = %q, want Approved Expenses", f.GetSheetName(0))
	}

	title, _ := f.GetCellValue(sheetName, "A1")
	if title != "Acme Corp - Approved Expenses" {
		t.Errorf("title = %q", title)
	}

	for i, want := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		got, _ := f.GetCellValue(sheetName, cell)
		if got != want {
			t.Errorf("header %s = %q, want %q", cell, got, want)
		}
	}

	firstID, _ := f.GetCellValue(sheetName, "A4")
	if firstID != "EXP-ACME-20260110-AAAA" {
		t.Errorf("first data row id = %q", firstID)
	}
	firstDate, _ := f.GetCellValue(sheetName, "G4")
	if firstDate != "2026-01-10" {
		t.Errorf("first data row date = %q", firstDate)
	}

	// The totals block starts one blank row below the last data row and
	// carries one line per currency.
	totals := map[string]string{}
	for row := 8; row <= 9; row++ {
		label, _ := f.GetCellValue(sheetName, excelCell("D", row))
		value, _ := f.GetCellValue(sheetName, excelCell("E", row))
		if label != "" {
			totals[label] = value
		}
	}
	if totals["Total (USD)"] != "200" {
		t.Errorf("USD total = %q, want 200", totals["Total (USD)"])
	}
	if totals["Total (EUR)"] != "40" {
		t.Errorf("EUR total = %q, want 40", totals["Total (EUR)"])
	}
}

func TestReportWriter_WriteApproved_SkipsNonApproved(t *testing.T) {
	w := NewReportWriter(zap.NewNop())
	company := &entity.Company{ID: "c-1", Name: "Acme Corp", Currency: "USD"}

	pending := approvedExpense("EXP-ACME-20260110-DDDD", "USD", "10")
	pending.Status = entity.StatusWaitingApproval

	var buf bytes.Buffer
	if err := w.WriteApproved(&buf, company, []*entity.Expense{pending}); err != nil {
		t.Fatalf("WriteApproved() failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	got, _ := f.GetCellValue(sheetName, "A4")
	if got != "" {
		t.Errorf("row 4 = %q, want empty when nothing is approved", got)
	}
}

func excelCell(col string, row int) string {
	cell, _ := excelize.JoinCellName(col, row)
	return cell
}
