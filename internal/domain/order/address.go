package order

import (
	"strings"

	"github.com/dropship/backend/internal/domain/shared"
)

// Address is the delivery address of an order
type Address struct {
	Name        string
	Phone       string
	Line1       string
	Line2       string
	City        string
	Province    string
	PostalCode  string
	CountryCode string
}

// Validate checks the fields the supplier requires for order creation
func (a Address) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return shared.NewDomainError("INVALID_ADDRESS", "Recipient name is required")
	}
	if strings.TrimSpace(a.Line1) == "" {
		return shared.NewDomainError("INVALID_ADDRESS", "Address line is required")
	}
	if strings.TrimSpace(a.City) == "" {
		return shared.NewDomainError("INVALID_ADDRESS", "City is required")
	}
	if len(strings.TrimSpace(a.CountryCode)) != 2 {
		return shared.NewDomainError("INVALID_ADDRESS", "Country code must be ISO 3166-1 alpha-2")
	}
	return nil
}

// Normalized returns a copy with trimmed fields and an upper-case country
func (a Address) Normalized() Address {
	return Address{
		Name:        strings.TrimSpace(a.Name),
		Phone:       strings.TrimSpace(a.Phone),
		Line1:       strings.TrimSpace(a.Line1),
		Line2:       strings.TrimSpace(a.Line2),
		City:        strings.TrimSpace(a.City),
		Province:    strings.TrimSpace(a.Province),
		PostalCode:  strings.TrimSpace(a.PostalCode),
		CountryCode: strings.ToUpper(strings.TrimSpace(a.CountryCode)),
	}
}
