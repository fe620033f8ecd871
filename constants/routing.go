package constants

// ApproverRole is who signs off on an invoice or owns an exception.
type ApproverRole string

const (
	AutoApprove        ApproverRole = "AUTO_APPROVE"
	DeptManager        ApproverRole = "DEPT_MANAGER"
	FinanceManager     ApproverRole = "FINANCE_MANAGER"
	CFO                ApproverRole = "CFO"
	FinanceAnalyst     ApproverRole = "FINANCE_ANALYST"
	ComplianceOfficer  ApproverRole = "COMPLIANCE_OFFICER"
	APManager          ApproverRole = "AP_MANAGER"
	APCoordinator      ApproverRole = "AP_COORDINATOR"
	ProcurementManager ApproverRole = "PROCUREMENT_MANAGER"
	VendorManager      ApproverRole = "VENDOR_MANAGER"
)

// Priority of an approval or exception.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityNormal   Priority = "NORMAL"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Escalates reports whether the priority requires escalation.
func (p Priority) Escalates() bool {
	return p == PriorityHigh || p == PriorityCritical
}

// Routing thresholds in invoice currency units.
const (
	AutoApproveBelow    = 5000.0
	DeptManagerBelow    = 50000.0
	FinanceManagerUpTo  = 500000.0
	HighAmountThreshold = 100000.0
)

// IssueMissingPO is raised by routing when a large invoice carries no purchase order.
const IssueMissingPO = "MISSING_PO"

// Approval SLA per priority, in days.
var approvalSLADays = map[Priority]int{
	PriorityCritical: 1,
	PriorityHigh:     2,
	PriorityNormal:   5,
	PriorityMedium:   5,
	PriorityLow:      5,
}

// SLADays returns the approval window for the priority.
func (p Priority) SLADays() int {
	if d, ok := approvalSLADays[p]; ok {
		return d
	}
	return 5
}
