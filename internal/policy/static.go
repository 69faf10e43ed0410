package policy

import (
	"context"
	"sync"

	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/models"
)

// Static serves policies from memory. With a template set, any policy
// number not registered resolves to a copy of the template.
type Static struct {
	mu       sync.RWMutex
	records  map[string]models.PolicyRecord
	template *models.PolicyRecord
}

func NewStatic(records ...models.PolicyRecord) *Static {
	s := &Static{records: make(map[string]models.PolicyRecord, len(records))}
	for _, r := range records {
		s.Put(r)
	}
	return s
}

// WithTemplate makes unknown policy numbers resolve to tmpl.
func (s *Static) WithTemplate(tmpl models.PolicyRecord) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.template = &tmpl
	return s
}

func (s *Static) Put(r models.PolicyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.PolicyNumber = Normalize(r.PolicyNumber)
	s.records[r.PolicyNumber] = r
}

func (s *Static) LookupPolicy(_ context.Context, number string) (*models.PolicyRecord, error) {
	number = Normalize(number)
	if number == "" {
		return nil, apperrors.NewValidationFailedError("policyNumber", "policy number is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.records[number]; ok {
		if !r.Active {
			return nil, notFound(number)
		}
		return &r, nil
	}
	if s.template != nil {
		r := *s.template
		r.PolicyNumber = number
		return &r, nil
	}
	return nil, notFound(number)
}

// DemoTemplate is the policy holder used when no policy database is
// configured.
func DemoTemplate() models.PolicyRecord {
	return models.PolicyRecord{
		CustomerName:  "John Smith",
		CustomerEmail: "john.smith@example.com",
		CustomerPhone: "+15555550123",
		Vehicle: models.Vehicle{
			Make:         "Toyota",
			Model:        "Camry",
			Year:         2022,
			VIN:          "1HGBH41JXMN109186",
			LicensePlate: "ABC-1234",
		},
		Active: true,
	}
}
