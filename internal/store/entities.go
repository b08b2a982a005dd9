package store

import (
	"fmt"
	"slices"

	"github.com/Lllllllleong/autoextract/internal/models"
)

// ProductUpdate is a partial product edit. Nil fields are left unchanged.
type ProductUpdate struct {
	ProductName *string  `json:"productName"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unitPrice"`
	Tax         *float64 `json:"tax"`
	Discount    *float64 `json:"discount"`
	Currency    *string  `json:"currency"`
}

// CustomerUpdate is a partial customer edit. Nil fields are left unchanged.
type CustomerUpdate struct {
	CustomerName        *string  `json:"customerName"`
	PhoneNumber         *string  `json:"phoneNumber"`
	TotalPurchaseAmount *float64 `json:"totalPurchaseAmount"`
	Currency            *string  `json:"currency"`
}

// InvoiceUpdate is a partial invoice edit. Nil fields are left unchanged.
type InvoiceUpdate struct {
	SerialNumber *string  `json:"serialNumber"`
	CustomerName *string  `json:"customerName"`
	ProductName  *string  `json:"productName"`
	Quantity     *float64 `json:"quantity"`
	Tax          *float64 `json:"tax"`
	TotalAmount  *float64 `json:"totalAmount"`
	Date         *string  `json:"date"`
	Currency     *string  `json:"currency"`
}

// AddInvoice appends inv. Identifiers are not checked for uniqueness.
func (s *Store) AddInvoice(inv models.Invoice) error {
	return s.mutate(func(st *Snapshot) error {
		st.Invoices = append(st.Invoices, inv.Clone())
		return nil
	})
}

// AddProduct appends p. Identifiers are not checked for uniqueness.
func (s *Store) AddProduct(p models.Product) error {
	return s.mutate(func(st *Snapshot) error {
		st.Products = append(st.Products, p.Clone())
		return nil
	})
}

// AddCustomer appends c. Identifiers are not checked for uniqueness.
func (s *Store) AddCustomer(c models.Customer) error {
	return s.mutate(func(st *Snapshot) error {
		st.Customers = append(st.Customers, c.Clone())
		return nil
	})
}

// RemoveInvoice deletes every invoice with id.
func (s *Store) RemoveInvoice(id string) error {
	return s.mutate(func(st *Snapshot) error {
		n := len(st.Invoices)
		st.Invoices = slices.DeleteFunc(st.Invoices, func(inv models.Invoice) bool { return inv.InvoiceID == id })
		if len(st.Invoices) == n {
			return fmt.Errorf("invoice %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// RemoveProduct deletes every product with id. Invoices referencing it keep
// their productId and productName.
func (s *Store) RemoveProduct(id string) error {
	return s.mutate(func(st *Snapshot) error {
		n := len(st.Products)
		st.Products = slices.DeleteFunc(st.Products, func(p models.Product) bool { return p.ProductID == id })
		if len(st.Products) == n {
			return fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// RemoveCustomer deletes every customer with id. Invoices referencing it keep
// their customerId and customerName.
func (s *Store) RemoveCustomer(id string) error {
	return s.mutate(func(st *Snapshot) error {
		n := len(st.Customers)
		st.Customers = slices.DeleteFunc(st.Customers, func(c models.Customer) bool { return c.CustomerID == id })
		if len(st.Customers) == n {
			return fmt.Errorf("customer %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// UpdateProduct merges upd into the product and cascades to invoices:
//   - a new name overwrites productName on every referencing invoice;
//   - a new unit price or tax recomputes priceWithTax;
//   - a new unit price recomputes totalAmount = unitPrice*quantity + tax on
//     every referencing invoice, using the product's resolved tax.
func (s *Store) UpdateProduct(id string, upd ProductUpdate) error {
	return s.mutate(func(st *Snapshot) error {
		found := false
		var resolvedTax float64
		for i := range st.Products {
			p := &st.Products[i]
			if p.ProductID != id {
				continue
			}
			upd.applyTo(p)
			if upd.UnitPrice != nil || upd.Tax != nil {
				p.PriceWithTax = models.Ptr(models.ValueOf(p.UnitPrice) + models.ValueOf(p.Tax))
			}
			if !found {
				resolvedTax = models.ValueOf(p.Tax)
			}
			found = true
		}
		if !found {
			return fmt.Errorf("product %s: %w", id, ErrNotFound)
		}

		for i := range st.Invoices {
			inv := &st.Invoices[i]
			if inv.ProductID != id {
				continue
			}
			if upd.ProductName != nil {
				inv.ProductName = *upd.ProductName
			}
			if upd.UnitPrice != nil {
				inv.TotalAmount = models.Ptr(*upd.UnitPrice*models.ValueOf(inv.Quantity) + resolvedTax)
			}
		}
		return nil
	})
}

// UpdateCustomer merges upd into the customer. A new name overwrites
// customerName on every invoice with the same customerId.
func (s *Store) UpdateCustomer(id string, upd CustomerUpdate) error {
	return s.mutate(func(st *Snapshot) error {
		found := false
		for i := range st.Customers {
			c := &st.Customers[i]
			if c.CustomerID != id {
				continue
			}
			upd.applyTo(c)
			found = true
		}
		if !found {
			return fmt.Errorf("customer %s: %w", id, ErrNotFound)
		}

		if upd.CustomerName == nil {
			return nil
		}
		for i := range st.Invoices {
			if st.Invoices[i].CustomerID == id {
				st.Invoices[i].CustomerName = *upd.CustomerName
			}
		}
		return nil
	})
}

// UpdateInvoice merges upd into the invoice only.
func (s *Store) UpdateInvoice(id string, upd InvoiceUpdate) error {
	return s.mutate(func(st *Snapshot) error {
		found := false
		for i := range st.Invoices {
			if st.Invoices[i].InvoiceID == id {
				upd.applyTo(&st.Invoices[i])
				found = true
			}
		}
		if !found {
			return fmt.Errorf("invoice %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// SetInvoices replaces the invoice collection.
func (s *Store) SetInvoices(list []models.Invoice) error {
	return s.mutate(func(st *Snapshot) error {
		st.Invoices = models.CloneAll(list)
		return nil
	})
}

// SetProducts replaces the product collection.
func (s *Store) SetProducts(list []models.Product) error {
	return s.mutate(func(st *Snapshot) error {
		st.Products = models.CloneAll(list)
		return nil
	})
}

// SetCustomers replaces the customer collection.
func (s *Store) SetCustomers(list []models.Customer) error {
	return s.mutate(func(st *Snapshot) error {
		st.Customers = models.CloneAll(list)
		return nil
	})
}

func (u ProductUpdate) applyTo(p *models.Product) {
	if u.ProductName != nil {
		p.ProductName = *u.ProductName
	}
	setIfPresent(&p.Quantity, u.Quantity)
	setIfPresent(&p.UnitPrice, u.UnitPrice)
	setIfPresent(&p.Tax, u.Tax)
	setIfPresent(&p.Discount, u.Discount)
	setIfPresent(&p.Currency, u.Currency)
}

func (u CustomerUpdate) applyTo(c *models.Customer) {
	if u.CustomerName != nil {
		c.CustomerName = *u.CustomerName
	}
	setIfPresent(&c.PhoneNumber, u.PhoneNumber)
	setIfPresent(&c.TotalPurchaseAmount, u.TotalPurchaseAmount)
	setIfPresent(&c.Currency, u.Currency)
}

func (u InvoiceUpdate) applyTo(inv *models.Invoice) {
	if u.CustomerName != nil {
		inv.CustomerName = *u.CustomerName
	}
	if u.ProductName != nil {
		inv.ProductName = *u.ProductName
	}
	setIfPresent(&inv.SerialNumber, u.SerialNumber)
	setIfPresent(&inv.Quantity, u.Quantity)
	setIfPresent(&inv.Tax, u.Tax)
	setIfPresent(&inv.TotalAmount, u.TotalAmount)
	setIfPresent(&inv.Date, u.Date)
	setIfPresent(&inv.Currency, u.Currency)
}

// setIfPresent copies *src into a fresh pointer so the store never aliases
// caller memory.
func setIfPresent[T any](dst **T, src *T) {
	if src != nil {
		*dst = models.Ptr(*src)
	}
}
