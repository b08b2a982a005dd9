package models

// Invoice is a single invoice line. CustomerName and ProductName are
// denormalized copies of the referenced records' names; the entity store keeps
// them in sync when a customer or product is renamed.
type Invoice struct {
	InvoiceID    string   `json:"invoiceId" firestore:"invoiceId"`
	SerialNumber *string  `json:"serialNumber,omitempty" firestore:"serialNumber,omitempty"`
	CustomerID   string   `json:"customerId" firestore:"customerId"`
	CustomerName string   `json:"customerName" firestore:"customerName"`
	ProductID    string   `json:"productId" firestore:"productId"`
	ProductName  string   `json:"productName" firestore:"productName"`
	Quantity     *float64 `json:"quantity,omitempty" firestore:"quantity,omitempty"`
	Tax          *float64 `json:"tax,omitempty" firestore:"tax,omitempty"`
	TotalAmount  *float64 `json:"totalAmount,omitempty" firestore:"totalAmount,omitempty"`
	Date         *string  `json:"date,omitempty" firestore:"date,omitempty"`
	Currency     *string  `json:"currency,omitempty" firestore:"currency,omitempty"`
}

// Product is a catalogue entry. PriceWithTax is derived from UnitPrice and Tax.
type Product struct {
	ProductID    string   `json:"productId" firestore:"productId"`
	ProductName  string   `json:"productName" firestore:"productName"`
	Quantity     *float64 `json:"quantity,omitempty" firestore:"quantity,omitempty"`
	UnitPrice    *float64 `json:"unitPrice,omitempty" firestore:"unitPrice,omitempty"`
	Tax          *float64 `json:"tax,omitempty" firestore:"tax,omitempty"`
	PriceWithTax *float64 `json:"priceWithTax,omitempty" firestore:"priceWithTax,omitempty"`
	Discount     *float64 `json:"discount,omitempty" firestore:"discount,omitempty"`
	Currency     *string  `json:"currency,omitempty" firestore:"currency,omitempty"`
}

// Customer is a buyer referenced by invoices.
type Customer struct {
	CustomerID          string   `json:"customerId" firestore:"customerId"`
	CustomerName        string   `json:"customerName" firestore:"customerName"`
	PhoneNumber         *string  `json:"phoneNumber,omitempty" firestore:"phoneNumber,omitempty"`
	TotalPurchaseAmount *float64 `json:"totalPurchaseAmount,omitempty" firestore:"totalPurchaseAmount,omitempty"`
	Currency            *string  `json:"currency,omitempty" firestore:"currency,omitempty"`
}

// Clone returns a copy of inv that shares no pointer fields with it.
func (inv Invoice) Clone() Invoice {
	inv.SerialNumber = clonePtr(inv.SerialNumber)
	inv.Quantity = clonePtr(inv.Quantity)
	inv.Tax = clonePtr(inv.Tax)
	inv.TotalAmount = clonePtr(inv.TotalAmount)
	inv.Date = clonePtr(inv.Date)
	inv.Currency = clonePtr(inv.Currency)
	return inv
}

// Clone returns a copy of p that shares no pointer fields with it.
func (p Product) Clone() Product {
	p.Quantity = clonePtr(p.Quantity)
	p.UnitPrice = clonePtr(p.UnitPrice)
	p.Tax = clonePtr(p.Tax)
	p.PriceWithTax = clonePtr(p.PriceWithTax)
	p.Discount = clonePtr(p.Discount)
	p.Currency = clonePtr(p.Currency)
	return p
}

// Clone returns a copy of c that shares no pointer fields with it.
func (c Customer) Clone() Customer {
	c.PhoneNumber = clonePtr(c.PhoneNumber)
	c.TotalPurchaseAmount = clonePtr(c.TotalPurchaseAmount)
	c.Currency = clonePtr(c.Currency)
	return c
}

// CloneAll deep-copies a slice of entities. A nil slice stays nil.
func CloneAll[E interface{ Clone() E }](list []E) []E {
	if list == nil {
		return nil
	}
	out := make([]E, len(list))
	for i, e := range list {
		out[i] = e.Clone()
	}
	return out
}

// ExtractionResult holds the entities returned for one extraction call. Every
// collection is optional and decodes to nil when absent.
type ExtractionResult struct {
	Invoices  []Invoice  `json:"invoices,omitempty"`
	Products  []Product  `json:"products,omitempty"`
	Customers []Customer `json:"customers,omitempty"`
}

// Ptr returns a pointer to v. Nil pointers mark a value the document did not
// provide.
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return Ptr(*p)
}

// ValueOf dereferences p, resolving a missing value to the zero value.
func ValueOf[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
