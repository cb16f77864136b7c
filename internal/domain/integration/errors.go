package integration

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Sentinel Errors
// ---------------------------------------------------------------------------

var (
	// ErrStoreNotLoaded indicates a lookup was attempted before the mapping
	// table was loaded from disk.
	ErrStoreNotLoaded = errors.New("integration: mapping store not loaded")

	// ErrLockTimeout indicates the exclusive file lock could not be acquired
	// within the configured wait. The guarded mutation did not happen.
	ErrLockTimeout = errors.New("integration: timed out waiting for mapping file lock")

	// ErrMappingFileCorrupt indicates the mapping file exists but is not
	// parseable as the expected document. Fatal on the startup load path.
	ErrMappingFileCorrupt = errors.New("integration: mapping file is corrupt")

	// ErrMappingFileStructure indicates the mapping file parsed as JSON but
	// is missing a required top-level field.
	ErrMappingFileStructure = errors.New("integration: mapping file has invalid structure")

	// ErrMarketplaceUnavailable indicates the marketplace API could not be
	// reached or returned a server error after retries were exhausted.
	ErrMarketplaceUnavailable = errors.New("integration: marketplace unavailable")

	// ErrInventoryUnavailable indicates the inventory API could not be
	// reached or rejected the request.
	ErrInventoryUnavailable = errors.New("integration: inventory unavailable")

	// ErrPriceNotRepresentable indicates a marketplace price does not convert
	// exactly to the minor currency unit.
	ErrPriceNotRepresentable = errors.New("integration: price not representable in minor currency unit")
)

// ---------------------------------------------------------------------------
// UnmappableOrderError
// ---------------------------------------------------------------------------

// UnmappableOrderError is returned when none of an order's line items can be
// translated to internal product identifiers. The order is left untouched so
// the next poll offers it again once mappings are repaired.
type UnmappableOrderError struct {
	ExternalOrderID string
	ItemCount       int
}

// Error implements the error interface.
func (e *UnmappableOrderError) Error() string {
	return fmt.Sprintf("integration: order %s has no mappable line items (%d items)", e.ExternalOrderID, e.ItemCount)
}

// IsUnmappableOrder reports whether err wraps an UnmappableOrderError.
func IsUnmappableOrder(err error) bool {
	var target *UnmappableOrderError
	return errors.As(err, &target)
}
