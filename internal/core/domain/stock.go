package domain

import "github.com/shopspring/decimal"

// StockItem is one entry of the external catalog. The transaction core only
// ever holds read-only snapshots of these; quantities are authoritative on
// the catalog side.
type StockItem struct {
	ID                string          `json:"id"`
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	QuantityAvailable int             `json:"quantity_available"`
	MinQuantity       int             `json:"min_quantity"`
}

// StockSnapshot is a point-in-time view of the catalog, keyed by item ID.
type StockSnapshot map[string]StockItem

// SnapshotFrom indexes a catalog listing by item ID.
func SnapshotFrom(items []StockItem) StockSnapshot {
	snap := make(StockSnapshot, len(items))
	for _, it := range items {
		snap[it.ID] = it
	}
	return snap
}

// Available returns the quantity available for an item, or 0 if the item is
// not part of the snapshot.
func (s StockSnapshot) Available(itemID string) int {
	return s[itemID].QuantityAvailable
}
