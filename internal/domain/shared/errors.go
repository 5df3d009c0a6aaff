package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("VALIDATION", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// Ledger error codes. Cross-organization reads deliberately surface NOT_FOUND so a
// caller cannot distinguish "exists in another organization" from "does not
// exist".
const (
	ErrCodeValidation             = "VALIDATION"
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeOverpayment            = "OVERPAYMENT"
	ErrCodeReconciliationMismatch = "RECONCILIATION_MISMATCH"
	ErrCodeCurrencyMismatch       = "CURRENCY_MISMATCH"
	ErrCodeConflict               = "CONFLICT"
	ErrCodeInvalidState           = "INVALID_STATE"
)

// IsDomainError reports whether err is a DomainError with the given code
func IsDomainError(err error, code string) bool {
	de, ok := err.(*DomainError)
	return ok && de.Code == code
}
