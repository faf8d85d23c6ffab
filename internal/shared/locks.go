package shared

import "strings"

// ListingLockKey builds the redis key holding the exclusive lock of a SKU.
func ListingLockKey(sku string) string {
	return "listing:sku:" + strings.TrimSpace(sku) + ":lock"
}

// ReferenceSnapshotKey is the redis key for the cached reference tables.
const ReferenceSnapshotKey = "reference:snapshot:v1"
