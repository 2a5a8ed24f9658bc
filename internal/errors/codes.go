// Package errors provides structured error handling for qmd.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk)
//   - 3XX: Network errors (embedder backends)
//   - 4XX: Validation and lookup errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation and lookup errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
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

	// IO errors (200-299)
	ErrCodeFileRead     = "ERR_201_FILE_READ"
	ErrCodeCorruptStore = "ERR_202_CORRUPT_STORE"

	// Network errors (300-399)
	ErrCodeEmbedderUnavailable = "ERR_301_EMBEDDER_UNAVAILABLE"
	ErrCodeEmbedderTimeout     = "ERR_302_EMBEDDER_TIMEOUT"

	// Validation and lookup errors (400-499)
	ErrCodeInvalidInput           = "ERR_401_INVALID_INPUT"
	ErrCodeDocumentNotFound       = "ERR_402_DOCUMENT_NOT_FOUND"
	ErrCodeCollectionNotFound     = "ERR_403_COLLECTION_NOT_FOUND"
	ErrCodeVectorIndexUnavailable = "ERR_404_VECTOR_INDEX_UNAVAILABLE"

	// Internal errors (500-599)
	ErrCodeInternal          = "ERR_501_INTERNAL"
	ErrCodeStorageConstraint = "ERR_502_STORAGE_CONSTRAINT"
	ErrCodeIndexingCancelled = "ERR_503_INDEXING_CANCELLED"
	ErrCodeEmbeddingFailed   = "ERR_504_EMBEDDING_FAILED"
	ErrCodeSearchFailed      = "ERR_505_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptStore, ErrCodeStorageConstraint:
		return SeverityFatal
	case ErrCodeEmbedderUnavailable, ErrCodeEmbedderTimeout:
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbedderUnavailable, ErrCodeEmbedderTimeout:
		return true
	default:
		return false
	}
}
