package model

// InventoryItem is one sellable credential pair held in the remote queue.
// No local copy is kept outside a completed Purchase receipt.
type InventoryItem struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}
