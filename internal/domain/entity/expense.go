package entity

import (
	"math/rand"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// Expense represents a single expense record and its workflow fields.
type Expense struct {
	ID                   string          `json:"id"`
	ExpenseID            string          `json:"expense_id"`
	EmployeeID           string          `json:"employee_id"`
	CompanyID            string          `json:"company_id"`
	Description          string          `json:"description"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	Category             string          `json:"category"`
	ExpenseDate          time.Time       `json:"expense_date"`
	PaidBy               string          `json:"paid_by"`
	Remarks              string          `json:"remarks,omitempty"`
	Receipt              *Receipt        `json:"receipt,omitempty"`
	OCRData              *OCRData        `json:"ocr_data,omitempty"`
	Status               string          `json:"status"`
	CurrentApprovalLevel int             `json:"current_approval_level"`
	ApprovalHistory      []ApprovalEntry `json:"approval_history"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// IsTerminal reports whether the expense reached a terminal status.
// Terminal expenses reject all further mutation except read access.
func (e *Expense) IsTerminal() bool {
	return e.Status == StatusApproved || e.Status == StatusRejected
}

// Receipt holds metadata about an attached receipt file. Upload handling
// itself is external; only the metadata is stored.
type Receipt struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	MimeType string `json:"mimetype"`
	Size     int64  `json:"size"`
}

// OCRData holds fields extracted from a receipt by an external OCR service.
// Used only to pre-fill the expense form, never authoritative.
type OCRData struct {
	Merchant          string     `json:"merchant,omitempty"`
	ExtractedAmount   string     `json:"extracted_amount,omitempty"`
	ExtractedCurrency string     `json:"extracted_currency,omitempty"`
	ExtractedDate     *time.Time `json:"extracted_date,omitempty"`
	RawText           string     `json:"raw_text,omitempty"`
}

// ApprovalEntry is one record in the append-only approval history.
// Entries are never edited or reordered once appended.
type ApprovalEntry struct {
	ID           int64     `json:"id"`
	ExpenseID    string    `json:"expense_id"`
	ApproverID   string    `json:"approver_id"`
	ApproverName string    `json:"approver_name"`
	Action       string    `json:"action"`
	Comment      string    `json:"comment"`
	Level        int       `json:"level"`
	Timestamp    time.Time `json:"timestamp"`
}

const idSuffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewExpenseID builds the human-readable expense identifier,
// format EXP-<COMPANYCODE>-YYYYMMDD-XXXX (e.g. EXP-ACME-20251004-A3F9).
// Randomness is injected for testability; collisions are handled by the
// registry's uniqueness constraint at write time, not prevented here.
func NewExpenseID(companyName string, date time.Time, rnd *rand.Rand) string {
	code := companyCode(companyName)

	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = idSuffixAlphabet[rnd.Intn(len(idSuffixAlphabet))]
	}

	return "EXP-" + code + "-" + date.Format("20060102") + "-" + string(suffix)
}

// companyCode derives a short prefix from the company name: alphanumerics
// only, first four characters, uppercased. Falls back to COMP.
func companyCode(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			if b.Len() >= 4 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "COMP"
	}
	return b.String()
}
