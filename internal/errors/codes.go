// Package errors provides structured error handling for suggestd.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Store errors (catalog, history)
//   - 3XX: Index / network errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
//   - 6XX: Authorization errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates relational store errors.
	CategoryStore Category = "STORE"
	// CategoryIndex indicates full-text index and network errors.
	CategoryIndex Category = "INDEX"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
	// CategoryAuth indicates authorization errors.
	CategoryAuth Category = "AUTH"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Store errors (200-299)
	ErrCodeStoreUnavailable = "ERR_201_STORE_UNAVAILABLE"
	ErrCodeStoreQuery       = "ERR_202_STORE_QUERY"
	ErrCodeProductNotFound  = "ERR_203_PRODUCT_NOT_FOUND"

	// Index / network errors (300-399)
	ErrCodeIndexUnavailable = "ERR_301_INDEX_UNAVAILABLE"
	ErrCodeIndexTimeout     = "ERR_302_INDEX_TIMEOUT"
	ErrCodeIndexCorrupt     = "ERR_303_INDEX_CORRUPT"
	ErrCodeSyncFailed       = "ERR_304_SYNC_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput  = "ERR_401_INVALID_INPUT"
	ErrCodeQueryTooShort = "ERR_402_QUERY_TOO_SHORT"
	ErrCodeNameRequired  = "ERR_403_NAME_REQUIRED"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"

	// Authorization errors (600-699)
	ErrCodeTokenMissing = "ERR_601_TOKEN_MISSING"
	ErrCodeTokenInvalid = "ERR_602_TOKEN_INVALID"
	ErrCodeAccessDenied = "ERR_603_ACCESS_DENIED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "201" from "ERR_201_STORE_UNAVAILABLE".
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategoryIndex
	case '4':
		return CategoryValidation
	case '6':
		return CategoryAuth
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	if code == ErrCodeIndexCorrupt {
		return SeverityFatal
	}

	// Index errors degrade to the relational fallback, so they only warn.
	if categoryFromCode(code) == CategoryIndex {
		return SeverityWarning
	}

	return SeverityError
}

// isRecoverableCode reports whether the error is recovered locally by the
// fusion engine (index failures fall through to the relational fallback).
func isRecoverableCode(code string) bool {
	switch code {
	case ErrCodeIndexUnavailable, ErrCodeIndexTimeout, ErrCodeSyncFailed:
		return true
	}
	return false
}
