package ledger

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// UnknownSupplierName names the supplier used for receipts whose supplier
// could not be read
const UnknownSupplierName = "ספק לא ידוע"

func validateParty(p *Party) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("name is required: %w", ErrInvalidInput)
	}
	return nil
}

// CreateCustomer stores a new customer
func (s *Service) CreateCustomer(c *Customer) (*Customer, error) {
	if err := validateParty((*Party)(c)); err != nil {
		return nil, err
	}
	now := s.timeSource.Now()
	c.ID = s.idGenerator.Generate()
	c.CreatedAt, c.UpdatedAt = now, now
	if err := s.db.SaveCustomer(c); err != nil {
		return nil, fmt.Errorf("saving customer: %w", err)
	}
	return c, nil
}

// UpdateCustomer replaces a customer's details
func (s *Service) UpdateCustomer(id string, c *Customer) (*Customer, error) {
	existing, err := s.db.GetCustomer(id)
	if err != nil {
		return nil, fmt.Errorf("getting customer: %w", err)
	}
	if err := validateParty((*Party)(c)); err != nil {
		return nil, err
	}
	c.ID, c.CreatedAt, c.UpdatedAt = id, existing.CreatedAt, s.timeSource.Now()
	if err := s.db.SaveCustomer(c); err != nil {
		return nil, fmt.Errorf("saving customer: %w", err)
	}
	return c, nil
}

// GetCustomer retrieves a customer by ID
func (s *Service) GetCustomer(id string) (*Customer, error) {
	c, err := s.db.GetCustomer(id)
	if err != nil {
		return nil, fmt.Errorf("getting customer: %w", err)
	}
	return c, nil
}

// ListCustomers returns all customers sorted by name
func (s *Service) ListCustomers() ([]*Customer, error) {
	customers, err := s.db.ListCustomers()
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	sortByName(customers, func(c *Customer) string { return c.Name })
	return customers, nil
}

// DeleteCustomer removes a customer
func (s *Service) DeleteCustomer(id string) error {
	if err := s.db.DeleteCustomer(id); err != nil {
		return fmt.Errorf("deleting customer: %w", err)
	}
	return nil
}

// CreateSupplier stores a new supplier
func (s *Service) CreateSupplier(sup *Supplier) (*Supplier, error) {
	if err := validateParty((*Party)(sup)); err != nil {
		return nil, err
	}
	now := s.timeSource.Now()
	sup.ID = s.idGenerator.Generate()
	sup.CreatedAt, sup.UpdatedAt = now, now
	if err := s.db.SaveSupplier(sup); err != nil {
		return nil, fmt.Errorf("saving supplier: %w", err)
	}
	return sup, nil
}

// UpdateSupplier replaces a supplier's details
func (s *Service) UpdateSupplier(id string, sup *Supplier) (*Supplier, error) {
	existing, err := s.db.GetSupplier(id)
	if err != nil {
		return nil, fmt.Errorf("getting supplier: %w", err)
	}
	if err := validateParty((*Party)(sup)); err != nil {
		return nil, err
	}
	sup.ID, sup.CreatedAt, sup.UpdatedAt = id, existing.CreatedAt, s.timeSource.Now()
	if err := s.db.SaveSupplier(sup); err != nil {
		return nil, fmt.Errorf("saving supplier: %w", err)
	}
	return sup, nil
}

// GetSupplier retrieves a supplier by ID
func (s *Service) GetSupplier(id string) (*Supplier, error) {
	sup, err := s.db.GetSupplier(id)
	if err != nil {
		return nil, fmt.Errorf("getting supplier: %w", err)
	}
	return sup, nil
}

// ListSuppliers returns all suppliers sorted by name
func (s *Service) ListSuppliers() ([]*Supplier, error) {
	suppliers, err := s.db.ListSuppliers()
	if err != nil {
		return nil, fmt.Errorf("listing suppliers: %w", err)
	}
	sortByName(suppliers, func(sup *Supplier) string { return sup.Name })
	return suppliers, nil
}

// DeleteSupplier removes a supplier
func (s *Service) DeleteSupplier(id string) error {
	if err := s.db.DeleteSupplier(id); err != nil {
		return fmt.Errorf("deleting supplier: %w", err)
	}
	return nil
}

// ResolveSupplier finds the supplier a scanned name refers to, creating one
// when none is close enough. An exact (case-insensitive) name wins; otherwise
// the closest name within the configured edit distance is used. A blank name
// resolves to the unknown-supplier placeholder.
func (s *Service) ResolveSupplier(name string) (*Supplier, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		name = UnknownSupplierName
	}

	suppliers, err := s.db.ListSuppliers()
	if err != nil {
		return nil, fmt.Errorf("listing suppliers: %w", err)
	}

	for _, sup := range suppliers {
		if strings.EqualFold(sup.Name, name) {
			return sup, nil
		}
	}

	if name != UnknownSupplierName {
		if sup := closestSupplier(name, suppliers, s.config.SupplierMatchDistance); sup != nil {
			slog.Info("Matched scanned supplier to existing supplier",
				"scanned", name,
				"supplier", sup.Name,
				"supplier_id", sup.ID,
			)
			return sup, nil
		}
	}

	return s.CreateSupplier(&Supplier{Name: name})
}

// closestSupplier returns the supplier whose name is nearest to name, if any
// is within maxDistance edits. Names the scanned text is a fuzzy subsequence
// of are also considered.
func closestSupplier(name string, suppliers []*Supplier, maxDistance int) *Supplier {
	if maxDistance <= 0 || len(suppliers) == 0 {
		return nil
	}

	names := make([]string, len(suppliers))
	for i, sup := range suppliers {
		names[i] = sup.Name
	}

	best, bestDistance := -1, maxDistance+1
	for _, rank := range fuzzy.RankFindNormalizedFold(name, names) {
		if rank.Distance < bestDistance {
			best, bestDistance = rank.OriginalIndex, rank.Distance
		}
	}
	folded := strings.ToLower(name)
	for i, n := range names {
		if d := fuzzy.LevenshteinDistance(folded, strings.ToLower(n)); d < bestDistance {
			best, bestDistance = i, d
		}
	}

	if best < 0 {
		return nil
	}
	return suppliers[best]
}
