package checkout

import (
	"strings"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-playground/validator/v10"
)

type addressRule struct {
	field   string
	tag     string
	message string
	value   func(domain.ShippingAddressDraft) string
}

// addressRules are checked in this order; the first failure is reported.
var addressRules = []addressRule{
	{"name", "required,min=3", "Full name must be at least 3 characters",
		func(a domain.ShippingAddressDraft) string { return a.Name }},
	{"email", "required,email", "Please enter a valid email address",
		func(a domain.ShippingAddressDraft) string { return a.Email }},
	{"phone", "len=10,number", "Phone number must be exactly 10 digits",
		func(a domain.ShippingAddressDraft) string { return a.Phone }},
	{"houseNumber", "required", "House/Flat number is required",
		func(a domain.ShippingAddressDraft) string { return a.HouseNumber }},
	{"flatOrSociety", "required", "Society/Building name is required",
		func(a domain.ShippingAddressDraft) string { return a.FlatOrSociety }},
	{"street", "required", "Street/Area is required",
		func(a domain.ShippingAddressDraft) string { return a.Street }},
	{"city", "required", "City is required",
		func(a domain.ShippingAddressDraft) string { return a.City }},
	{"state", "required", "State is required",
		func(a domain.ShippingAddressDraft) string { return a.State }},
	{"postalCode", "len=6,number", "Postal code must be exactly 6 digits",
		func(a domain.ShippingAddressDraft) string { return a.PostalCode }},
	{"landmark", "required", "Landmark is required",
		func(a domain.ShippingAddressDraft) string { return a.Landmark }},
}

// AddressValidator checks a shipping address draft field by field.
type AddressValidator struct {
	v *validator.Validate
}

func NewAddressValidator() *AddressValidator {
	return &AddressValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate returns a validation error for the first failing field, or nil.
// Surrounding whitespace is ignored.
func (av *AddressValidator) Validate(addr domain.ShippingAddressDraft) error {
	for _, r := range addressRules {
		if err := av.v.Var(strings.TrimSpace(r.value(addr)), r.tag); err != nil {
			return apperr.Validation(r.field, r.message)
		}
	}
	return nil
}

// Normalize trims every field.
func Normalize(addr domain.ShippingAddressDraft) domain.ShippingAddressDraft {
	return domain.ShippingAddressDraft{
		Name:          strings.TrimSpace(addr.Name),
		Email:         strings.TrimSpace(addr.Email),
		Phone:         strings.TrimSpace(addr.Phone),
		HouseNumber:   strings.TrimSpace(addr.HouseNumber),
		FlatOrSociety: strings.TrimSpace(addr.FlatOrSociety),
		Street:        strings.TrimSpace(addr.Street),
		City:          strings.TrimSpace(addr.City),
		State:         strings.TrimSpace(addr.State),
		PostalCode:    strings.TrimSpace(addr.PostalCode),
		Landmark:      strings.TrimSpace(addr.Landmark),
	}
}
