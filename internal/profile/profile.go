package profile

import (
	"fmt"
	"strings"
)

const notSpecified = "Not specified"

// Address is the registered postal address from the account store.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Pincode string `json:"pincode,omitempty"`
}

// User is the caller-supplied profile. Every field is optional.
type User struct {
	UserID            string   `json:"userId,omitempty"`
	Name              string   `json:"name,omitempty"`
	Phone             string   `json:"phone,omitempty"`
	Address           *Address `json:"address,omitempty"`
	PreferredLanguage string   `json:"preferredLanguage,omitempty"`
}

// Extracted is the profile derived from a transcript. It is advisory and rebuilt per request.
type Extracted struct {
	Demographics      map[string]any `json:"demographics,omitempty" mapstructure:"demographics"`
	Occupation        string         `json:"occupation,omitempty" mapstructure:"occupation"`
	EstimatedIncome   string         `json:"estimatedIncome,omitempty" mapstructure:"estimatedIncome"`
	Needs             []string       `json:"needs" mapstructure:"needs"`
	FamilyComposition map[string]any `json:"familyComposition,omitempty" mapstructure:"familyComposition"`
	Assets            map[string]any `json:"assets,omitempty" mapstructure:"assets"`
}

// City returns the trimmed city or an empty string.
func (u *User) City() string {
	if u == nil || u.Address == nil {
		return ""
	}
	return strings.TrimSpace(u.Address.City)
}

// State returns the trimmed state or an empty string.
func (u *User) State() string {
	if u == nil || u.Address == nil {
		return ""
	}
	return strings.TrimSpace(u.Address.State)
}

// Location renders "city, state", or "Not specified" without an address.
func (u *User) Location() string {
	if u == nil || u.Address == nil {
		return notSpecified
	}
	return fmt.Sprintf("%s, %s", u.City(), u.State())
}

// RegisteredAddress renders the full address line used in extracted profiles.
func (u *User) RegisteredAddress() string {
	if u == nil || u.Address == nil {
		return "Not available"
	}
	a := u.Address
	return fmt.Sprintf("%s, %s, %s - %s", a.Street, a.City, a.State, a.Pincode)
}

// DisplayOr returns value when it is not blank, otherwise fallback.
func DisplayOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
