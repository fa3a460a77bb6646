// Package export renders approved expense reports as Excel workbooks for the
// finance team.
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/expenseflow/expenseflow/internal/domain/entity"
)

const sheetName = "Approved Expenses"

var headers = []string{
	"Expense ID", "Employee", "Description", "Category",
	"Amount", "Currency", "Expense Date", "Paid By", "Approved Level",
}

// ReportWriter builds approved expense workbooks.
type ReportWriter struct {
	logger *zap.Logger
}

// NewReportWriter creates a new report writer
func NewReportWriter(logger *zap.Logger) *ReportWriter {
	return &ReportWriter{logger: logger}
}

// WriteApproved streams a workbook of approved expenses. The final row totals
// the amounts per currency; cross-currency normalization is the caller's job.
func (w *ReportWriter) WriteApproved(out io.Writer, company *entity.Company, expenses []*entity.Expense) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	w.setCell(f, "A1", fmt.Sprintf("%s - Approved Expenses", company.Name))
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		w.setCell(f, cell, header)
	}

	totals := make(map[string]decimal.Decimal)
	row := 4
	for _, expense := range expenses {
		if expense.Status != entity.StatusApproved {
			continue
		}

		values := []interface{}{
			expense.ExpenseID,
			expense.EmployeeID,
			expense.Description,
			expense.Category,
			expense.Amount.InexactFloat64(),
			expense.Currency,
			expense.ExpenseDate.Format("2006-01-02"),
			expense.PaidBy,
			expense.CurrentApprovalLevel,
		}
		for i, value := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			w.setCell(f, cell, value)
		}

		totals[expense.Currency] = totals[expense.Currency].Add(expense.Amount)
		row++
	}

	row++
	for currency, total := range totals {
		w.setCell(f, fmt.Sprintf("D%d", row), fmt.Sprintf("Total (%s)", currency))
		w.setCell(f, fmt.Sprintf("E%d", row), total.InexactFloat64())
		row++
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	w.logger.Info("Approved expense report written",
		zap.String("company_id", company.ID),
		zap.Int("rows", row))
	return nil
}

func (w *ReportWriter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		w.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
