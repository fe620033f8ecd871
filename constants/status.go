package constants

// ResultStatus is the per-invoice outcome reported to callers.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// ValidationStatus is the aggregate of the validation checks.
type ValidationStatus string

const (
	ValidationPass   ValidationStatus = "PASS"
	ValidationReview ValidationStatus = "REVIEW"
	ValidationFail   ValidationStatus = "FAIL"
)

// JobStatus is the canonical status of an asynchronously submitted invoice.
// Stable values (stored as-is in the results table).
const (
	JobStatusQueued    = "QUEUED"
	JobStatusRunning   = "RUNNING"
	JobStatusCompleted = "COMPLETED"
	JobStatusFailed    = "FAILED"
)

// Validation check names.
const (
	CheckCompleteness = "completeness"
	CheckFormat       = "format"
	CheckCalculations = "calculations"
	CheckDuplicates   = "duplicates"
	CheckFraudSignals = "fraud_signals"
)

// Flag types raised by validation.
const (
	FlagDuplicate     = "DUPLICATE"
	FlagHighAmount    = "HIGH_AMOUNT"
	FlagNewVendor     = "NEW_VENDOR"
	FlagUnusualTerms  = "UNUSUAL_TERMS"
	FlagEmailMismatch = "EMAIL_MISMATCH"
)

// Severity levels for flags and exceptions.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)
