package models

import (
	id "covenant/pkg/domain"
)

// Purpose is a static catalog entry: a named reason for processing personal
// data. Immutable at runtime. Required purposes cannot be withdrawn.
type Purpose struct {
	ID          id.PurposeID
	Name        string
	Description string
	Required    bool
	Version     string
}

// Catalog is the fixed set of purposes the ledger manages records for.
type Catalog []Purpose

// Lookup returns the purpose for the given ID, or false when unknown.
func (c Catalog) Lookup(purposeID id.PurposeID) (Purpose, bool) {
	for _, p := range c {
		if p.ID == purposeID {
			return p, true
		}
	}
	return Purpose{}, false
}

// DefaultCatalog returns the purposes the service ships with. The catalog is
// data, not behavior; deployments can supply their own.
func DefaultCatalog() Catalog {
	return Catalog{
		{
			ID:          "service_delivery",
			Name:        "Service Delivery",
			Description: "Processing necessary to operate the account and deliver the core service",
			Required:    true,
			Version:     "1",
		},
		{
			ID:          "marketing_email",
			Name:        "Marketing Email",
			Description: "Product updates and promotional email",
			Required:    false,
			Version:     "1",
		},
		{
			ID:          "analytics",
			Name:        "Usage Analytics",
			Description: "Aggregated product usage measurement",
			Required:    false,
			Version:     "1",
		},
		{
			ID:          "personalization",
			Name:        "Personalization",
			Description: "Tailoring content and recommendations to the principal",
			Required:    false,
			Version:     "1",
		},
		{
			ID:          "third_party_sharing",
			Name:        "Third Party Sharing",
			Description: "Sharing profile data with vetted partners",
			Required:    false,
			Version:     "1",
		},
	}
}
