package entity

// Status constants for Expense
const (
	StatusDraft             = "Draft"
	StatusWaitingApproval   = "Waiting Approval"
	StatusApproved          = "Approved"
	StatusRejected          = "Rejected"
	StatusPartiallyApproved = "Partially Approved"
)

// Approval action constants for ApprovalEntry
const (
	ActionApproved = "Approved"
	ActionRejected = "Rejected"
	ActionPending  = "Pending"
)

// Expense category constants
const (
	CategoryFood           = "Food"
	CategoryTravel         = "Travel"
	CategoryAccommodation  = "Accommodation"
	CategoryOfficeSupplies = "Office Supplies"
	CategorySoftware       = "Software"
	CategoryTraining       = "Training"
	CategoryEntertainment  = "Entertainment"
	CategoryHealthcare     = "Healthcare"
	CategoryUtilities      = "Utilities"
	CategoryTransport      = "Transport"
	CategorySupplies       = "Supplies"
	CategoryOther          = "Other"
)

var validCategories = map[string]bool{
	CategoryFood:           true,
	CategoryTravel:         true,
	CategoryAccommodation:  true,
	CategoryOfficeSupplies: true,
	CategorySoftware:       true,
	CategoryTraining:       true,
	CategoryEntertainment:  true,
	CategoryHealthcare:     true,
	CategoryUtilities:      true,
	CategoryTransport:      true,
	CategorySupplies:       true,
	CategoryOther:          true,
}

// IsValidCategory reports whether the category belongs to the closed set.
func IsValidCategory(category string) bool {
	return validCategories[category]
}

// Categories returns the closed category set in display order.
func Categories() []string {
	return []string{
		CategoryFood, CategoryTravel, CategoryAccommodation, CategoryOfficeSupplies,
		CategorySoftware, CategoryTraining, CategoryEntertainment, CategoryHealthcare,
		CategoryUtilities, CategoryTransport, CategorySupplies, CategoryOther,
	}
}
