package models

import (
	"strings"

	"github.com/google/uuid"
)

const (
	ProductPrefix  = "PROD-"
	CustomerPrefix = "CUST-"
	InvoicePrefix  = "INV-"
)

const idSuffixLen = 8

// NewProductID mints an identifier for a user-created product.
func NewProductID() string { return newID(ProductPrefix) }

// NewCustomerID mints an identifier for a user-created customer.
func NewCustomerID() string { return newID(CustomerPrefix) }

// NewInvoiceID mints an identifier for a user-created invoice.
func NewInvoiceID() string { return newID(InvoicePrefix) }

// HasPrefix reports whether id carries prefix followed by a non-empty suffix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix) && len(id) > len(prefix)
}

func newID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + strings.ToUpper(suffix[:idSuffixLen])
}
