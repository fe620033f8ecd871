package constants

import (
	"strings"
)

// ExceptionKind is the closed set of exception categories.
type ExceptionKind string

const (
	ExceptionDuplicate           ExceptionKind = "DUPLICATE"
	ExceptionFraudSignal         ExceptionKind = "FRAUD_SIGNAL"
	ExceptionValidationFail      ExceptionKind = "VALIDATION_FAIL"
	ExceptionMissingPO           ExceptionKind = "MISSING_PO"
	ExceptionVendorNew           ExceptionKind = "VENDOR_NEW"
	ExceptionCalculationError    ExceptionKind = "CALCULATION_ERROR"
	ExceptionMissingRequiredData ExceptionKind = "MISSING_REQUIRED_DATA"
	ExceptionHighAmount          ExceptionKind = "HIGH_AMOUNT"
)

var allExceptionKinds = []ExceptionKind{
	ExceptionDuplicate,
	ExceptionFraudSignal,
	ExceptionValidationFail,
	ExceptionMissingPO,
	ExceptionVendorNew,
	ExceptionCalculationError,
	ExceptionMissingRequiredData,
	ExceptionHighAmount,
}

// CanonicalizeException maps a model-supplied exception label onto the closed set.
func CanonicalizeException(input string) (ExceptionKind, bool) {
	if input == "" {
		return "", false
	}

	normalized := strings.ToUpper(strings.TrimSpace(input))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)

	synonyms := map[string]ExceptionKind{
		"DUPLICATE_INVOICE":    ExceptionDuplicate,
		"POSSIBLE_DUPLICATE":   ExceptionDuplicate,
		"FRAUD":                ExceptionFraudSignal,
		"FRAUD_SIGNALS":        ExceptionFraudSignal,
		"SUSPECTED_FRAUD":      ExceptionFraudSignal,
		"VALIDATION_FAILURE":   ExceptionValidationFail,
		"VALIDATION_FAILED":    ExceptionValidationFail,
		"NO_PO":                ExceptionMissingPO,
		"MISSING_PO_NUMBER":    ExceptionMissingPO,
		"NEW_VENDOR":           ExceptionVendorNew,
		"UNKNOWN_VENDOR":       ExceptionVendorNew,
		"CALCULATION_MISMATCH": ExceptionCalculationError,
		"MATH_ERROR":           ExceptionCalculationError,
		"MISSING_DATA":         ExceptionMissingRequiredData,
		"INCOMPLETE_DATA":      ExceptionMissingRequiredData,
		"LARGE_AMOUNT":         ExceptionHighAmount,
	}

	if k, ok := synonyms[normalized]; ok {
		return k, true
	}
	for _, k := range allExceptionKinds {
		if normalized == string(k) {
			return k, true
		}
	}
	return "", false
}
