// Package validation provides input validation middleware for the console.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxStringLength is the maximum length for string fields
const MaxStringLength = 10000

// invoiceIDRegex matches gateway invoice identifiers: a short alphanumeric
// token, optionally with dashes/underscores (e.g. "inv_8f3a91", "inv-1").
var invoiceIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// tokenRegex matches currency symbols and network identifiers ("USDT", "ethereum").
var tokenRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,31}$`)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidInvoiceID checks if a string is a plausible invoice identifier
func IsValidInvoiceID(id string) bool {
	return invoiceIDRegex.MatchString(id)
}

// IsValidToken checks currency symbols and network identifiers
func IsValidToken(s string) bool {
	return tokenRegex.MatchString(s)
}

// InvoiceParamMiddleware validates the :invoiceId URL parameter on routes that use it.
// A missing or malformed invoice id is rejected before any backend call is made.
func InvoiceParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("invoiceId")
		if id != "" && !IsValidInvoiceID(id) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_invoice_id",
				"message": "invoiceId must be a short alphanumeric identifier",
			})
			return
		}
		c.Next()
	}
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errs ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// ValidToken checks if a field is a plausible currency/network identifier
func ValidToken(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if !IsValidToken(value) {
			return &ValidationError{Field: field, Message: "must be a short alphanumeric identifier"}
		}
		return nil
	}
}

// ValidAmount checks if a value is a positive decimal amount
func ValidAmount(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return &ValidationError{Field: field, Message: "must be a decimal number"}
		}
		if !d.IsPositive() {
			return &ValidationError{Field: field, Message: "must be positive"}
		}
		return nil
	}
}
