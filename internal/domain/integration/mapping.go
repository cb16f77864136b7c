// Package integration contains the domain model for keeping an upstream
// inventory system and a downstream marketplace consistent: product and order
// identifier mappings, stock levels, marketplace orders, and the gateway
// ports the synchronizers depend on.
package integration

import (
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// ProductMapping
// ---------------------------------------------------------------------------

// ProductMapping links an internal product identifier (assigned by the
// inventory system) to an external one (assigned by the marketplace).
// The full set of mappings forms a bijection: no internal id maps to two
// external ids and no external id maps to two internal ids.
type ProductMapping struct {
	InternalID string `json:"internalId"`
	ExternalID string `json:"externalId"`
}

// Validate checks that both sides of the mapping are non-empty.
func (m ProductMapping) Validate() error {
	if strings.TrimSpace(m.InternalID) == "" {
		return ErrMappingFileStructure
	}
	if strings.TrimSpace(m.ExternalID) == "" {
		return ErrMappingFileStructure
	}
	return nil
}

// IsValid reports whether both sides of the mapping are usable identifiers.
// Unlike Validate it is tolerant: it is used to filter individual records
// during a load without failing the whole table.
func (m ProductMapping) IsValid() bool {
	return strings.TrimSpace(m.InternalID) != "" && strings.TrimSpace(m.ExternalID) != ""
}

// ---------------------------------------------------------------------------
// OrderMapping
// ---------------------------------------------------------------------------

// OrderMapping records which inventory order was created for a marketplace
// order. ExternalOrderID is unique; a repeated save updates the record in
// place rather than duplicating it.
type OrderMapping struct {
	ExternalOrderID string     `json:"externalOrderId"`
	InternalOrderID string     `json:"internalOrderId"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

// Validate checks that both order ids are present.
func (m OrderMapping) Validate() error {
	if strings.TrimSpace(m.ExternalOrderID) == "" || strings.TrimSpace(m.InternalOrderID) == "" {
		return ErrMappingFileStructure
	}
	return nil
}
