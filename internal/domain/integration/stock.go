package integration

import "time"

// ---------------------------------------------------------------------------
// Stock
// ---------------------------------------------------------------------------

// StockLevel is the inventory system's view of one product's stock.
type StockLevel struct {
	InternalID string
	OnHand     int
	Reserved   int
}

// Available returns the sellable quantity pushed to the marketplace.
func (s StockLevel) Available() int {
	return s.OnHand - s.Reserved
}

// StockUpdate is one marketplace-bound stock change.
type StockUpdate struct {
	ExternalID string
	Quantity   int
	UpdatedAt  time.Time
}

// ---------------------------------------------------------------------------
// Sweep Statistics
// ---------------------------------------------------------------------------

// SyncItemError records a single item failure inside a sweep.
type SyncItemError struct {
	InternalID string `json:"internalId"`
	Message    string `json:"message"`
}

// SyncStats summarizes a stock sweep. Every item ends up in exactly one
// bucket, so Synced + Skipped + len(Errors) == Total holds for every run.
type SyncStats struct {
	Total   int             `json:"total"`
	Synced  int             `json:"synced"`
	Skipped int             `json:"skipped"`
	Errors  []SyncItemError `json:"errors"`
}

// Complete reports whether every item is accounted for.
func (s SyncStats) Complete() bool {
	return s.Synced+s.Skipped+len(s.Errors) == s.Total
}

// OrderSyncError records a single order failure inside a poll run.
type OrderSyncError struct {
	ExternalOrderID string `json:"externalOrderId"`
	Message         string `json:"message"`
}

// OrderSyncStats summarizes one order poll run. Processed counts the orders
// actually worked on this run; orders already handled in a previous run are
// counted as Skipped.
type OrderSyncStats struct {
	Processed  int              `json:"processed"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	Errors     []OrderSyncError `json:"errors"`
}

// Complete reports whether every processed order is accounted for. Unlike
// SyncStats.Complete, Skipped stays outside the sum: skipped orders were
// never part of Processed.
func (s OrderSyncStats) Complete() bool {
	return s.Successful+s.Failed == s.Processed
}
